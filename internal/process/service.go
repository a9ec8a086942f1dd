package process

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/kazz187/delegate/pkg/connectjson"
)

const ServiceName = "delegate.v1.ProcessService"

const (
	StartProcessProcedure     = "/" + ServiceName + "/StartProcess"
	ListProcessesProcedure    = "/" + ServiceName + "/ListProcesses"
	GetProcessReportProcedure = "/" + ServiceName + "/GetProcessReport"
	ParseReportProcedure      = "/" + ServiceName + "/ParseReport"
)

type ServiceHandler interface {
	StartProcess(context.Context, *connect.Request[StartProcessRequest]) (*connect.Response[StartProcessResponse], error)
	ListProcesses(context.Context, *connect.Request[ListProcessesRequest]) (*connect.Response[ListProcessesResponse], error)
	GetProcessReport(context.Context, *connect.Request[GetProcessReportRequest]) (*connect.Response[GetProcessReportResponse], error)
	ParseReport(context.Context, *connect.Request[ParseReportRequest]) (*connect.Response[ParseReportResponse], error)
}

func NewServiceHandler(svc ServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(opts, connectjson.HandlerOption())
	mux := http.NewServeMux()
	mux.Handle(StartProcessProcedure, connect.NewUnaryHandler(StartProcessProcedure, svc.StartProcess, opts...))
	mux.Handle(ListProcessesProcedure, connect.NewUnaryHandler(ListProcessesProcedure, svc.ListProcesses, opts...))
	mux.Handle(GetProcessReportProcedure, connect.NewUnaryHandler(GetProcessReportProcedure, svc.GetProcessReport, opts...))
	mux.Handle(ParseReportProcedure, connect.NewUnaryHandler(ParseReportProcedure, svc.ParseReport, opts...))
	return "/" + ServiceName + "/", mux
}

type Client struct {
	startProcess     *connect.Client[StartProcessRequest, StartProcessResponse]
	listProcesses    *connect.Client[ListProcessesRequest, ListProcessesResponse]
	getProcessReport *connect.Client[GetProcessReportRequest, GetProcessReportResponse]
	parseReport      *connect.Client[ParseReportRequest, ParseReportResponse]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append(opts, connectjson.ClientOption())
	return &Client{
		startProcess:     connect.NewClient[StartProcessRequest, StartProcessResponse](httpClient, baseURL+StartProcessProcedure, opts...),
		listProcesses:    connect.NewClient[ListProcessesRequest, ListProcessesResponse](httpClient, baseURL+ListProcessesProcedure, opts...),
		getProcessReport: connect.NewClient[GetProcessReportRequest, GetProcessReportResponse](httpClient, baseURL+GetProcessReportProcedure, opts...),
		parseReport:      connect.NewClient[ParseReportRequest, ParseReportResponse](httpClient, baseURL+ParseReportProcedure, opts...),
	}
}

func (c *Client) StartProcess(ctx context.Context, req *connect.Request[StartProcessRequest]) (*connect.Response[StartProcessResponse], error) {
	return c.startProcess.CallUnary(ctx, req)
}

func (c *Client) ListProcesses(ctx context.Context, req *connect.Request[ListProcessesRequest]) (*connect.Response[ListProcessesResponse], error) {
	return c.listProcesses.CallUnary(ctx, req)
}

func (c *Client) GetProcessReport(ctx context.Context, req *connect.Request[GetProcessReportRequest]) (*connect.Response[GetProcessReportResponse], error) {
	return c.getProcessReport.CallUnary(ctx, req)
}

func (c *Client) ParseReport(ctx context.Context, req *connect.Request[ParseReportRequest]) (*connect.Response[ParseReportResponse], error) {
	return c.parseReport.CallUnary(ctx, req)
}
