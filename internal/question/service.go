package question

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/kazz187/delegate/pkg/connectjson"
)

const ServiceName = "delegate.v1.QuestionService"

const (
	AskQuestionsProcedure         = "/" + ServiceName + "/AskQuestions"
	AnswerQuestionsProcedure      = "/" + ServiceName + "/AnswerQuestions"
	CancelQuestionsProcedure      = "/" + ServiceName + "/CancelQuestions"
	ListPendingQuestionsProcedure = "/" + ServiceName + "/ListPendingQuestions"
)

type ServiceHandler interface {
	AskQuestions(context.Context, *connect.Request[AskQuestionsRequest]) (*connect.Response[AskQuestionsResponse], error)
	AnswerQuestions(context.Context, *connect.Request[AnswerQuestionsRequest]) (*connect.Response[AnswerQuestionsResponse], error)
	CancelQuestions(context.Context, *connect.Request[CancelQuestionsRequest]) (*connect.Response[CancelQuestionsResponse], error)
	ListPendingQuestions(context.Context, *connect.Request[ListPendingQuestionsRequest]) (*connect.Response[ListPendingQuestionsResponse], error)
}

func NewServiceHandler(svc ServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(opts, connectjson.HandlerOption())
	mux := http.NewServeMux()
	mux.Handle(AskQuestionsProcedure, connect.NewUnaryHandler(AskQuestionsProcedure, svc.AskQuestions, opts...))
	mux.Handle(AnswerQuestionsProcedure, connect.NewUnaryHandler(AnswerQuestionsProcedure, svc.AnswerQuestions, opts...))
	mux.Handle(CancelQuestionsProcedure, connect.NewUnaryHandler(CancelQuestionsProcedure, svc.CancelQuestions, opts...))
	mux.Handle(ListPendingQuestionsProcedure, connect.NewUnaryHandler(ListPendingQuestionsProcedure, svc.ListPendingQuestions, opts...))
	return "/" + ServiceName + "/", mux
}

type Client struct {
	askQuestions         *connect.Client[AskQuestionsRequest, AskQuestionsResponse]
	answerQuestions      *connect.Client[AnswerQuestionsRequest, AnswerQuestionsResponse]
	cancelQuestions      *connect.Client[CancelQuestionsRequest, CancelQuestionsResponse]
	listPendingQuestions *connect.Client[ListPendingQuestionsRequest, ListPendingQuestionsResponse]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append(opts, connectjson.ClientOption())
	return &Client{
		askQuestions:         connect.NewClient[AskQuestionsRequest, AskQuestionsResponse](httpClient, baseURL+AskQuestionsProcedure, opts...),
		answerQuestions:      connect.NewClient[AnswerQuestionsRequest, AnswerQuestionsResponse](httpClient, baseURL+AnswerQuestionsProcedure, opts...),
		cancelQuestions:      connect.NewClient[CancelQuestionsRequest, CancelQuestionsResponse](httpClient, baseURL+CancelQuestionsProcedure, opts...),
		listPendingQuestions: connect.NewClient[ListPendingQuestionsRequest, ListPendingQuestionsResponse](httpClient, baseURL+ListPendingQuestionsProcedure, opts...),
	}
}

func (c *Client) AskQuestions(ctx context.Context, req *connect.Request[AskQuestionsRequest]) (*connect.Response[AskQuestionsResponse], error) {
	return c.askQuestions.CallUnary(ctx, req)
}

func (c *Client) AnswerQuestions(ctx context.Context, req *connect.Request[AnswerQuestionsRequest]) (*connect.Response[AnswerQuestionsResponse], error) {
	return c.answerQuestions.CallUnary(ctx, req)
}

func (c *Client) CancelQuestions(ctx context.Context, req *connect.Request[CancelQuestionsRequest]) (*connect.Response[CancelQuestionsResponse], error) {
	return c.cancelQuestions.CallUnary(ctx, req)
}

func (c *Client) ListPendingQuestions(ctx context.Context, req *connect.Request[ListPendingQuestionsRequest]) (*connect.Response[ListPendingQuestionsResponse], error) {
	return c.listPendingQuestions.CallUnary(ctx, req)
}
