package main

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/kazz187/delegate/internal/config"
	"github.com/kazz187/delegate/internal/event"
	"github.com/kazz187/delegate/internal/orchestrator"
	"github.com/kazz187/delegate/internal/process"
	"github.com/kazz187/delegate/internal/question"
	"github.com/kazz187/delegate/internal/task"
)

// apiKeyInterceptor attaches the API key to every outgoing request.
type apiKeyInterceptor struct {
	apiKey string
}

func (i *apiKeyInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if i.apiKey != "" {
			req.Header().Set("X-API-Key", i.apiKey)
		}
		return next(ctx, req)
	}
}

func (i *apiKeyInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		if i.apiKey != "" {
			conn.RequestHeader().Set("X-API-Key", i.apiKey)
		}
		return conn
	}
}

func (i *apiKeyInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

type clients struct {
	orchestrator *orchestrator.Client
	task         *task.Client
	process      *process.Client
	question     *question.Client
	event        *event.Client
}

func newClients(env *config.ClientEnv) *clients {
	opt := connect.WithInterceptors(&apiKeyInterceptor{apiKey: env.APIKey})
	httpClient := http.DefaultClient
	return &clients{
		orchestrator: orchestrator.NewClient(httpClient, env.ServerURL, opt),
		task:         task.NewClient(httpClient, env.ServerURL, opt),
		process:      process.NewClient(httpClient, env.ServerURL, opt),
		question:     question.NewClient(httpClient, env.ServerURL, opt),
		event:        event.NewClient(httpClient, env.ServerURL, opt),
	}
}
