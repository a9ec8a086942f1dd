package question

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/delegate/pkg/cerr"
)

func newTestClient(t *testing.T, broker *Broker) *Client {
	t.Helper()
	path, handler := NewServiceHandler(NewServer(broker, nil),
		connect.WithInterceptors(cerr.NewConvertConnectErrorInterceptor()))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return NewClient(ts.Client(), ts.URL)
}

func TestServerAskAndAnswer(t *testing.T) {
	broker := NewBroker(nil)
	client := newTestClient(t, broker)
	ctx := context.Background()

	type result struct {
		resp *AskQuestionsResponse
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		resp, err := client.AskQuestions(ctx, connect.NewRequest(&AskQuestionsRequest{
			WorkspaceID: "W",
			CallID:      "call1",
			Questions:   sampleQuestions,
		}))
		if err != nil {
			resCh <- result{err: err}
			return
		}
		resCh <- result{resp: resp.Msg}
	}()

	require.Eventually(t, func() bool { return len(broker.List("W")) == 1 }, 5*time.Second, 5*time.Millisecond)

	pending, err := client.ListPendingQuestions(ctx, connect.NewRequest(&ListPendingQuestionsRequest{WorkspaceID: "W"}))
	require.NoError(t, err)
	require.Len(t, pending.Msg.Pending, 1)
	assert.Equal(t, "call1", pending.Msg.Pending[0].CallID)

	_, err = client.AnswerQuestions(ctx, connect.NewRequest(&AnswerQuestionsRequest{
		WorkspaceID: "W",
		CallID:      "call1",
		Answers:     Answers{"Unknown?": "x"},
	}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	answered, err := client.AnswerQuestions(ctx, connect.NewRequest(&AnswerQuestionsRequest{
		WorkspaceID: "W",
		CallID:      "call1",
		Answers:     Answers{"Which database?": "sqlite"},
	}))
	require.NoError(t, err)
	assert.True(t, answered.Msg.Resolved)

	res := <-resCh
	require.NoError(t, res.err)
	assert.Equal(t, "call1", res.resp.CallID)
	assert.Equal(t, "sqlite", res.resp.Answers["Which database?"])

	again, err := client.AnswerQuestions(ctx, connect.NewRequest(&AnswerQuestionsRequest{
		WorkspaceID: "W",
		CallID:      "call1",
		Answers:     Answers{},
	}))
	require.NoError(t, err)
	assert.False(t, again.Msg.Resolved)
}

func TestServerCancel(t *testing.T) {
	broker := NewBroker(nil)
	client := newTestClient(t, broker)
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		_, err := client.AskQuestions(ctx, connect.NewRequest(&AskQuestionsRequest{
			WorkspaceID: "W",
			CallID:      "call1",
			Questions:   sampleQuestions,
		}))
		errCh <- err
	}()
	require.Eventually(t, func() bool { return len(broker.List("W")) == 1 }, 5*time.Second, 5*time.Millisecond)

	resp, err := client.CancelQuestions(ctx, connect.NewRequest(&CancelQuestionsRequest{
		WorkspaceID: "W",
		CallID:      "call1",
		Reason:      "Interrupted",
	}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Cancelled)

	err = <-errCh
	require.Error(t, err)
	assert.Equal(t, connect.CodeCanceled, connect.CodeOf(err))
	assert.Equal(t, "Interrupted", cerr.Message(err))

	resp, err = client.CancelQuestions(ctx, connect.NewRequest(&CancelQuestionsRequest{WorkspaceID: "W", CallID: "call1"}))
	require.NoError(t, err)
	assert.False(t, resp.Msg.Cancelled)
}

func TestServerClientDisconnectCancelsQuestion(t *testing.T) {
	broker := NewBroker(nil)
	client := newTestClient(t, broker)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := client.AskQuestions(ctx, connect.NewRequest(&AskQuestionsRequest{
			WorkspaceID: "W",
			Questions:   sampleQuestions,
		}))
		errCh <- err
	}()
	require.Eventually(t, func() bool { return len(broker.List("W")) == 1 }, 5*time.Second, 5*time.Millisecond)
	callID := broker.List("W")[0].CallID
	assert.NotEmpty(t, callID)

	cancel()
	assert.Error(t, <-errCh)
	assert.Eventually(t, func() bool { return len(broker.List("W")) == 0 }, 5*time.Second, 5*time.Millisecond)
	assert.False(t, broker.Resolve("W", callID, Answers{}))
}

func TestServerAskValidation(t *testing.T) {
	srv := NewServer(NewBroker(nil), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *AskQuestionsRequest
		code cerr.Code
	}{
		{
			name: "no questions",
			req:  &AskQuestionsRequest{WorkspaceID: "W", Questions: []Question{}},
			code: cerr.InvalidArgument,
		},
		{
			name: "empty question text",
			req:  &AskQuestionsRequest{WorkspaceID: "W", Questions: []Question{{Question: ""}}},
			code: cerr.InvalidArgument,
		},
		{
			name: "option without label",
			req: &AskQuestionsRequest{WorkspaceID: "W", Questions: []Question{{
				Question: "q",
				Options:  []Option{{Description: "no label"}},
			}}},
			code: cerr.InvalidArgument,
		},
		{
			name: "missing workspace",
			req:  &AskQuestionsRequest{Questions: sampleQuestions},
			code: cerr.FailedPrecondition,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.AskQuestions(ctx, connect.NewRequest(tt.req))
			require.Error(t, err)
			assert.Equal(t, tt.code, cerr.CodeOf(err))
		})
	}
}
