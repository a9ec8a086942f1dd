package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/kazz187/delegate/pkg/sentinel"
)

// runSentinel supervises "delegate-server run" until SIGINT or SIGTERM.
func runSentinel(binary string, gracePeriod, drainTimeout time.Duration) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// SIGUSR1 is meant for the child; a stray one must not stop the sentinel.
	signal.Ignore(syscall.SIGUSR1)

	opts := []sentinel.Option{
		sentinel.WithGracePeriod(gracePeriod),
		sentinel.WithDrainTimeout(drainTimeout),
	}
	if binary != "" {
		opts = append(opts, sentinel.WithBinary(binary))
	}
	return sentinel.New(opts...).Run(ctx)
}
