package event

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/kazz187/delegate/internal/eventbus"
	"github.com/kazz187/delegate/pkg/connectjson"
)

const ServiceName = "delegate.v1.EventService"

const WatchEventsProcedure = "/" + ServiceName + "/WatchEvents"

type ServiceHandler interface {
	WatchEvents(context.Context, *connect.Request[WatchEventsRequest], *connect.ServerStream[eventbus.Event]) error
}

func NewServiceHandler(svc ServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(opts, connectjson.HandlerOption())
	mux := http.NewServeMux()
	mux.Handle(WatchEventsProcedure, connect.NewServerStreamHandler(WatchEventsProcedure, svc.WatchEvents, opts...))
	return "/" + ServiceName + "/", mux
}

type Client struct {
	watchEvents *connect.Client[WatchEventsRequest, eventbus.Event]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append(opts, connectjson.ClientOption())
	return &Client{
		watchEvents: connect.NewClient[WatchEventsRequest, eventbus.Event](httpClient, baseURL+WatchEventsProcedure, opts...),
	}
}

func (c *Client) WatchEvents(ctx context.Context, req *connect.Request[WatchEventsRequest]) (*connect.ServerStreamForClient[eventbus.Event], error) {
	return c.watchEvents.CallServerStream(ctx, req)
}
