package orchestrator

import (
	"context"
	"time"

	"connectrpc.com/connect"

	"github.com/kazz187/delegate/internal/schema"
	"github.com/kazz187/delegate/internal/task"
	"github.com/kazz187/delegate/pkg/clog"
)

var _ ServiceHandler = (*Server)(nil)

type Server struct {
	orchestrator *Orchestrator
	validator    *schema.Validator
}

func NewServer(orchestrator *Orchestrator, validator *schema.Validator) *Server {
	if orchestrator == nil {
		panic("orchestrator: nil orchestrator")
	}
	if validator == nil {
		validator = schema.NewValidator()
	}
	return &Server{orchestrator: orchestrator, validator: validator}
}

func (s *Server) ListTasks(ctx context.Context, req *connect.Request[ListTasksRequest]) (*connect.Response[ListTasksResponse], error) {
	statuses := make([]task.Status, 0, len(req.Msg.Statuses))
	for _, raw := range req.Msg.Statuses {
		st, err := task.ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	tasks, err := s.orchestrator.ListTasks(ctx, req.Msg.WorkspaceID, statuses)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&ListTasksResponse{Tasks: tasks}), nil
}

func (s *Server) TerminateTasks(ctx context.Context, req *connect.Request[TerminateTasksRequest]) (*connect.Response[TerminateTasksResponse], error) {
	if err := s.validator.Validate(terminateTasksSchema, req.Msg); err != nil {
		return nil, err
	}
	clog.AddAttribute(ctx, "workspace_id", req.Msg.WorkspaceID)
	results, err := s.orchestrator.TerminateTasks(ctx, req.Msg.WorkspaceID, req.Msg.TaskIDs)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&TerminateTasksResponse{Results: results}), nil
}

func (s *Server) GetTaskOutput(ctx context.Context, req *connect.Request[GetTaskOutputRequest]) (*connect.Response[GetTaskOutputResponse], error) {
	if err := s.validator.Validate(getTaskOutputSchema, req.Msg); err != nil {
		return nil, err
	}
	res, err := s.orchestrator.GetTaskOutput(ctx, req.Msg.WorkspaceID, OutputQuery{
		TaskID:  req.Msg.TaskID,
		Include: req.Msg.Include,
		Exclude: req.Msg.Exclude,
		Timeout: time.Duration(req.Msg.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	output := res.Lines
	if output == nil {
		output = []string{}
	}
	return connect.NewResponse(&GetTaskOutputResponse{
		Output:   output,
		Status:   res.Status,
		ExitCode: res.ExitCode,
		TimedOut: res.TimedOut,
	}), nil
}

func (s *Server) CompleteTask(ctx context.Context, req *connect.Request[CompleteTaskRequest]) (*connect.Response[CompleteTaskResponse], error) {
	t, err := s.orchestrator.CompleteTask(ctx, req.Msg.TaskID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&CompleteTaskResponse{Task: task.ToInfo(t)}), nil
}
