package clog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/proto"
)

const healthCheckProcedure = "/grpc.health.v1.Health/Check"

type connectConfig struct {
	filter func(spec connect.Spec) bool
}

type ConnectOption func(*connectConfig)

// WithConnectFilter logs only the procedures filter returns true for. The
// default skips the gRPC health check.
func WithConnectFilter(filter func(connect.Spec) bool) ConnectOption {
	return func(cfg *connectConfig) { cfg.filter = filter }
}

func skipHealthCheck(spec connect.Spec) bool {
	return spec.Procedure != healthCheckProcedure
}

type slogConnectInterceptor struct {
	cfg connectConfig
}

// NewSlogConnectInterceptor logs every handled RPC once it finishes.
// Streams additionally log when they connect, since they may stay open for
// the lifetime of a client.
func NewSlogConnectInterceptor(opts ...ConnectOption) connect.Interceptor {
	cfg := connectConfig{filter: skipHealthCheck}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &slogConnectInterceptor{cfg: cfg}
}

func (s *slogConnectInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		start := time.Now()
		ctx = s.begin(ctx, req.Spec())
		AddAttributes(ctx, map[string]any{
			"method": req.HTTPMethod(),
			"peer":   req.Peer().Addr,
		})
		resp, err := next(ctx, req)
		s.finish(ctx, req.Spec(), start, err)
		return resp, err
	}
}

func (s *slogConnectInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (s *slogConnectInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		start := time.Now()
		ctx = s.begin(ctx, conn.Spec())
		AddAttribute(ctx, "peer", conn.Peer().Addr)
		if s.logged(conn.Spec()) {
			slog.InfoContext(ctx, "Connected")
		}
		err := next(ctx, conn)
		s.finish(ctx, conn.Spec(), start, err)
		return err
	}
}

func (s *slogConnectInterceptor) begin(ctx context.Context, spec connect.Spec) context.Context {
	ctx = ContextWithSlog(ctx)
	AddAttributes(ctx, map[string]any{
		"procedure":   spec.Procedure,
		"stream_type": spec.StreamType.String(),
	})
	return ctx
}

func (s *slogConnectInterceptor) logged(spec connect.Spec) bool {
	return s.cfg.filter == nil || s.cfg.filter(spec)
}

func (s *slogConnectInterceptor) finish(ctx context.Context, spec connect.Spec, start time.Time, err error) {
	if !s.logged(spec) {
		return
	}
	AddAttribute(ctx, "duration", time.Since(start))
	if err == nil {
		AddAttribute(ctx, "code", "ok")
		slog.InfoContext(ctx, "Finished")
		return
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		connectErr = connect.NewError(connect.CodeUnknown, err)
	}
	AddAttribute(ctx, "code", connectErr.Code().String())
	logConnectError(ctx, connectErr)
}

func logConnectError(ctx context.Context, connectErr *connect.Error) {
	if errDetails := connectErr.Details(); len(errDetails) > 0 {
		details := make([]proto.Message, 0, len(errDetails))
		for _, detail := range errDetails {
			val, err := detail.Value()
			if err != nil {
				slog.ErrorContext(ctx, "failed to convert detail value", ErrorAttributeKey, err)
				continue
			}
			details = append(details, val)
		}
		AddAttribute(ctx, "err_details", details)
	}
	logAt(ctx, ConnectCodeLevel(connectErr.Code()), connectErr.Message())
}
