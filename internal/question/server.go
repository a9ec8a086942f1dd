package question

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/delegate/internal/schema"
	"github.com/kazz187/delegate/pkg/cerr"
	"github.com/kazz187/delegate/pkg/clog"
)

const defaultCancelReason = "Cancelled"

var _ ServiceHandler = (*Server)(nil)

type Server struct {
	broker    *Broker
	validator *schema.Validator
}

func NewServer(broker *Broker, validator *schema.Validator) *Server {
	if broker == nil {
		panic("question: nil broker")
	}
	if validator == nil {
		validator = schema.NewValidator()
	}
	return &Server{broker: broker, validator: validator}
}

// AskQuestions blocks until the questions are answered or cancelled. A
// client that disconnects cancels them with the "Interrupted" reason.
func (s *Server) AskQuestions(ctx context.Context, req *connect.Request[AskQuestionsRequest]) (*connect.Response[AskQuestionsResponse], error) {
	if err := s.validator.Validate(askQuestionsSchema, req.Msg); err != nil {
		return nil, err
	}
	callID := req.Msg.CallID
	if callID == "" {
		callID = ulid.Make().String()
	}
	clog.AddAttributes(ctx, map[string]any{"workspace_id": req.Msg.WorkspaceID, "call_id": callID})

	answers, err := s.broker.Ask(ctx, req.Msg.WorkspaceID, callID, req.Msg.Questions)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&AskQuestionsResponse{CallID: callID, Answers: answers}), nil
}

func (s *Server) AnswerQuestions(ctx context.Context, req *connect.Request[AnswerQuestionsRequest]) (*connect.Response[AnswerQuestionsResponse], error) {
	if err := s.validator.Validate(answerQuestionsSchema, req.Msg); err != nil {
		return nil, err
	}
	if p, ok := s.broker.Get(req.Msg.WorkspaceID, req.Msg.CallID); ok {
		if err := checkAnswers(p.Questions, req.Msg.Answers); err != nil {
			return nil, err
		}
	}
	resolved := s.broker.Resolve(req.Msg.WorkspaceID, req.Msg.CallID, req.Msg.Answers)
	return connect.NewResponse(&AnswerQuestionsResponse{Resolved: resolved}), nil
}

func checkAnswers(questions []Question, answers Answers) error {
	known := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		known[q.Question] = struct{}{}
	}
	for q := range answers {
		if _, ok := known[q]; !ok {
			return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("answer for unknown question %q", q), nil)
		}
	}
	return nil
}

func (s *Server) CancelQuestions(ctx context.Context, req *connect.Request[CancelQuestionsRequest]) (*connect.Response[CancelQuestionsResponse], error) {
	reason := req.Msg.Reason
	if reason == "" {
		reason = defaultCancelReason
	}
	cancelled := s.broker.Cancel(req.Msg.WorkspaceID, req.Msg.CallID, reason)
	return connect.NewResponse(&CancelQuestionsResponse{Cancelled: cancelled}), nil
}

func (s *Server) ListPendingQuestions(ctx context.Context, req *connect.Request[ListPendingQuestionsRequest]) (*connect.Response[ListPendingQuestionsResponse], error) {
	return connect.NewResponse(&ListPendingQuestionsResponse{
		Pending: s.broker.List(req.Msg.WorkspaceID),
	}), nil
}
