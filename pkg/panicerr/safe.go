// Package panicerr turns panics in long-running goroutines into errors so a
// single failing component cannot take the whole server down silently.
package panicerr

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc/panics"

	"github.com/kazz187/delegate/pkg/cerr"
)

// Safe wraps fn so that a panic is returned as an Internal error carrying
// the panic value and stack.
func Safe(fn func() error) func() error {
	return func() error {
		var (
			catcher panics.Catcher
			err     error
		)
		catcher.Try(func() {
			err = fn()
		})
		if err != nil {
			return err
		}
		return recoveredError(catcher.Recovered())
	}
}

// SafeContext is Safe for functions that take a context, such as the tasks
// of a conc pool.ContextPool.
func SafeContext(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return Safe(func() error { return fn(ctx) })()
	}
}

// Go runs fn in a new goroutine and logs a panic instead of crashing.
func Go(ctx context.Context, name string, fn func(context.Context)) {
	go func() {
		err := SafeContext(func(ctx context.Context) error {
			fn(ctx)
			return nil
		})(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "goroutine panicked", "goroutine", name, "error", err)
		}
	}()
}

func recoveredError(r *panics.Recovered) error {
	if r == nil {
		return nil
	}
	e := cerr.NewError(cerr.Internal, "server error", r.AsError())
	e.Stack = string(r.Stack)
	return e
}
