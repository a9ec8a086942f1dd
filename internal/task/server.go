package task

import (
	"context"

	"connectrpc.com/connect"

	"github.com/kazz187/delegate/pkg/cerr"
)

var _ ServiceHandler = (*Server)(nil)

type Server struct {
	registry *Registry
}

func NewServer(registry *Registry) *Server {
	if registry == nil {
		panic("task: nil registry")
	}
	return &Server{registry: registry}
}

func (s *Server) CreateTask(ctx context.Context, req *connect.Request[CreateTaskRequest]) (*connect.Response[CreateTaskResponse], error) {
	if req.Msg.Title == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "title is required", nil)
	}
	t, err := s.registry.Create(ctx, req.Msg.ParentWorkspaceID, req.Msg.Title)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&CreateTaskResponse{Task: ToInfo(t)}), nil
}

func (s *Server) GetTask(ctx context.Context, req *connect.Request[GetTaskRequest]) (*connect.Response[GetTaskResponse], error) {
	t, err := s.registry.Get(req.Msg.TaskID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&GetTaskResponse{Task: ToInfo(t)}), nil
}

func (s *Server) UpdateTaskStatus(ctx context.Context, req *connect.Request[UpdateTaskStatusRequest]) (*connect.Response[UpdateTaskStatusResponse], error) {
	status, err := ParseStatus(req.Msg.Status)
	if err != nil {
		return nil, err
	}
	t, err := s.registry.UpdateStatus(ctx, req.Msg.TaskID, status)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&UpdateTaskStatusResponse{Task: ToInfo(t)}), nil
}
