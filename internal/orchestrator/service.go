package orchestrator

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/kazz187/delegate/pkg/connectjson"
)

const ServiceName = "delegate.v1.OrchestratorService"

const (
	ListTasksProcedure      = "/" + ServiceName + "/ListTasks"
	TerminateTasksProcedure = "/" + ServiceName + "/TerminateTasks"
	GetTaskOutputProcedure  = "/" + ServiceName + "/GetTaskOutput"
	CompleteTaskProcedure   = "/" + ServiceName + "/CompleteTask"
)

type ServiceHandler interface {
	ListTasks(context.Context, *connect.Request[ListTasksRequest]) (*connect.Response[ListTasksResponse], error)
	TerminateTasks(context.Context, *connect.Request[TerminateTasksRequest]) (*connect.Response[TerminateTasksResponse], error)
	GetTaskOutput(context.Context, *connect.Request[GetTaskOutputRequest]) (*connect.Response[GetTaskOutputResponse], error)
	CompleteTask(context.Context, *connect.Request[CompleteTaskRequest]) (*connect.Response[CompleteTaskResponse], error)
}

func NewServiceHandler(svc ServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(opts, connectjson.HandlerOption())
	mux := http.NewServeMux()
	mux.Handle(ListTasksProcedure, connect.NewUnaryHandler(ListTasksProcedure, svc.ListTasks, opts...))
	mux.Handle(TerminateTasksProcedure, connect.NewUnaryHandler(TerminateTasksProcedure, svc.TerminateTasks, opts...))
	mux.Handle(GetTaskOutputProcedure, connect.NewUnaryHandler(GetTaskOutputProcedure, svc.GetTaskOutput, opts...))
	mux.Handle(CompleteTaskProcedure, connect.NewUnaryHandler(CompleteTaskProcedure, svc.CompleteTask, opts...))
	return "/" + ServiceName + "/", mux
}

type Client struct {
	listTasks      *connect.Client[ListTasksRequest, ListTasksResponse]
	terminateTasks *connect.Client[TerminateTasksRequest, TerminateTasksResponse]
	getTaskOutput  *connect.Client[GetTaskOutputRequest, GetTaskOutputResponse]
	completeTask   *connect.Client[CompleteTaskRequest, CompleteTaskResponse]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append(opts, connectjson.ClientOption())
	return &Client{
		listTasks:      connect.NewClient[ListTasksRequest, ListTasksResponse](httpClient, baseURL+ListTasksProcedure, opts...),
		terminateTasks: connect.NewClient[TerminateTasksRequest, TerminateTasksResponse](httpClient, baseURL+TerminateTasksProcedure, opts...),
		getTaskOutput:  connect.NewClient[GetTaskOutputRequest, GetTaskOutputResponse](httpClient, baseURL+GetTaskOutputProcedure, opts...),
		completeTask:   connect.NewClient[CompleteTaskRequest, CompleteTaskResponse](httpClient, baseURL+CompleteTaskProcedure, opts...),
	}
}

func (c *Client) ListTasks(ctx context.Context, req *connect.Request[ListTasksRequest]) (*connect.Response[ListTasksResponse], error) {
	return c.listTasks.CallUnary(ctx, req)
}

func (c *Client) TerminateTasks(ctx context.Context, req *connect.Request[TerminateTasksRequest]) (*connect.Response[TerminateTasksResponse], error) {
	return c.terminateTasks.CallUnary(ctx, req)
}

func (c *Client) GetTaskOutput(ctx context.Context, req *connect.Request[GetTaskOutputRequest]) (*connect.Response[GetTaskOutputResponse], error) {
	return c.getTaskOutput.CallUnary(ctx, req)
}

func (c *Client) CompleteTask(ctx context.Context, req *connect.Request[CompleteTaskRequest]) (*connect.Response[CompleteTaskResponse], error) {
	return c.completeTask.CallUnary(ctx, req)
}
