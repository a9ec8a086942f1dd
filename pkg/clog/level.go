package clog

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
)

// statusClientClosedRequest is the nginx convention for a caller that went
// away before the response was written.
const statusClientClosedRequest = 499

// HTTPStatusLevel picks the level a finished HTTP request is logged at.
func HTTPStatusLevel(status int) slog.Level {
	switch {
	case status == statusClientClosedRequest:
		return slog.LevelInfo
	case status >= 100 && status < http.StatusBadRequest:
		return slog.LevelInfo
	case status == http.StatusUnauthorized:
		return slog.LevelWarn
	case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
		return slog.LevelInfo
	default:
		return slog.LevelError
	}
}

// ConnectCodeLevel picks the level a failed RPC is logged at. Codes caused
// by the caller (bad ids, scope violations, interrupted waits) stay at info;
// codes that point at the server are errors.
func ConnectCodeLevel(code connect.Code) slog.Level {
	switch code {
	case connect.CodeCanceled,
		connect.CodeInvalidArgument,
		connect.CodeDeadlineExceeded,
		connect.CodeNotFound,
		connect.CodeAlreadyExists,
		connect.CodePermissionDenied,
		connect.CodeFailedPrecondition,
		connect.CodeAborted,
		connect.CodeOutOfRange:
		return slog.LevelInfo
	case connect.CodeUnauthenticated:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func logAt(ctx context.Context, level slog.Level, msg string) {
	slog.Default().Log(ctx, level, msg)
}
