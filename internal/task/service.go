package task

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/kazz187/delegate/pkg/connectjson"
)

const ServiceName = "delegate.v1.TaskService"

const (
	CreateTaskProcedure       = "/" + ServiceName + "/CreateTask"
	GetTaskProcedure          = "/" + ServiceName + "/GetTask"
	UpdateTaskStatusProcedure = "/" + ServiceName + "/UpdateTaskStatus"
)

type ServiceHandler interface {
	CreateTask(context.Context, *connect.Request[CreateTaskRequest]) (*connect.Response[CreateTaskResponse], error)
	GetTask(context.Context, *connect.Request[GetTaskRequest]) (*connect.Response[GetTaskResponse], error)
	UpdateTaskStatus(context.Context, *connect.Request[UpdateTaskStatusRequest]) (*connect.Response[UpdateTaskStatusResponse], error)
}

func NewServiceHandler(svc ServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(opts, connectjson.HandlerOption())
	mux := http.NewServeMux()
	mux.Handle(CreateTaskProcedure, connect.NewUnaryHandler(CreateTaskProcedure, svc.CreateTask, opts...))
	mux.Handle(GetTaskProcedure, connect.NewUnaryHandler(GetTaskProcedure, svc.GetTask, opts...))
	mux.Handle(UpdateTaskStatusProcedure, connect.NewUnaryHandler(UpdateTaskStatusProcedure, svc.UpdateTaskStatus, opts...))
	return "/" + ServiceName + "/", mux
}

type Client struct {
	createTask       *connect.Client[CreateTaskRequest, CreateTaskResponse]
	getTask          *connect.Client[GetTaskRequest, GetTaskResponse]
	updateTaskStatus *connect.Client[UpdateTaskStatusRequest, UpdateTaskStatusResponse]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append(opts, connectjson.ClientOption())
	return &Client{
		createTask:       connect.NewClient[CreateTaskRequest, CreateTaskResponse](httpClient, baseURL+CreateTaskProcedure, opts...),
		getTask:          connect.NewClient[GetTaskRequest, GetTaskResponse](httpClient, baseURL+GetTaskProcedure, opts...),
		updateTaskStatus: connect.NewClient[UpdateTaskStatusRequest, UpdateTaskStatusResponse](httpClient, baseURL+UpdateTaskStatusProcedure, opts...),
	}
}

func (c *Client) CreateTask(ctx context.Context, req *connect.Request[CreateTaskRequest]) (*connect.Response[CreateTaskResponse], error) {
	return c.createTask.CallUnary(ctx, req)
}

func (c *Client) GetTask(ctx context.Context, req *connect.Request[GetTaskRequest]) (*connect.Response[GetTaskResponse], error) {
	return c.getTask.CallUnary(ctx, req)
}

func (c *Client) UpdateTaskStatus(ctx context.Context, req *connect.Request[UpdateTaskStatusRequest]) (*connect.Response[UpdateTaskStatusResponse], error) {
	return c.updateTaskStatus.CallUnary(ctx, req)
}
