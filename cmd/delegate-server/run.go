package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/pool"

	server "github.com/kazz187/delegate/internal"
	"github.com/kazz187/delegate/internal/config"
	"github.com/kazz187/delegate/internal/event"
	"github.com/kazz187/delegate/internal/eventbus"
	"github.com/kazz187/delegate/internal/orchestrator"
	"github.com/kazz187/delegate/internal/process"
	"github.com/kazz187/delegate/internal/pushnotification"
	pushsubrepo "github.com/kazz187/delegate/internal/pushsubscription/repositoryimpl"
	"github.com/kazz187/delegate/internal/question"
	"github.com/kazz187/delegate/internal/schema"
	"github.com/kazz187/delegate/internal/task"
	taskrepo "github.com/kazz187/delegate/internal/task/repositoryimpl"
	"github.com/kazz187/delegate/pkg/panicerr"
	"github.com/kazz187/delegate/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

// errDrained ends the component pool after a graceful drain requested by the
// sentinel.
var errDrained = errors.New("drained")

func newStorage(ctx context.Context, env *config.StorageEnv) (storage.Storage, error) {
	switch env.Type {
	case "s3":
		return storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "local", "":
		return storage.NewLocalStorage(env.BaseDir)
	default:
		return nil, fmt.Errorf("unknown storage type %q", env.Type)
	}
}

func run(env *config.Env) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	store, err := newStorage(ctx, config.StorageEnvFromEnv(env))
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}

	bus := eventbus.New()

	registry := task.NewRegistry(taskrepo.NewYAMLRepository(store), bus)
	if err := registry.Load(ctx); err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	supervisorEnv := config.SupervisorEnvFromEnv(env)
	archive := process.NewArchive(store)
	supervisor := process.NewSupervisor(
		process.WithShell(supervisorEnv.Shell),
		process.WithMaxProcesses(supervisorEnv.MaxProcesses),
		process.WithGracePeriod(supervisorEnv.GracePeriod),
		process.WithRetainFinished(supervisorEnv.RetainFinished),
		process.WithExitHandler(process.ArchiveOnExit(archive)),
		process.WithExitHandler(process.PublishOnExit(bus)),
	)

	broker := question.NewBroker(bus)
	validator := schema.NewValidator()
	orch := orchestrator.New(registry,
		orchestrator.WithSupervisor(supervisor),
		orchestrator.WithOutputWait(supervisorEnv.DefaultOutputWait, supervisorEnv.MaxOutputWait),
	)

	// Setup push notification
	vapidEnv := config.VAPIDEnvFromEnv(env)
	pushSubRepo := pushsubrepo.NewYAMLRepository(store)
	pushSender := pushnotification.NewSender(vapidEnv, pushSubRepo)
	pushDispatcher := pushnotification.NewDispatcher(bus, broker, registry, pushSender)

	srv := server.NewServer(
		env,
		orchestrator.NewServer(orch, validator),
		task.NewServer(registry),
		process.NewServer(supervisor, archive, bus),
		question.NewServer(broker, validator),
		event.NewServer(bus, registry),
		pushnotification.NewServer(vapidEnv, pushSubRepo, pushSender),
	)

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(panicerr.SafeContext(func(ctx context.Context) error {
		return serve(ctx, srv)
	}))
	p.Go(panicerr.SafeContext(func(ctx context.Context) error {
		pushDispatcher.Start(ctx)
		return nil
	}))
	p.Go(panicerr.SafeContext(func(ctx context.Context) error {
		return waitDrain(ctx, supervisor)
	}))

	err = p.Wait()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if serr := supervisor.Shutdown(shutdownCtx); serr != nil {
		slog.Error("failed to stop processes", "error", serr)
	}

	if errors.Is(err, errDrained) {
		return nil
	}
	return err
}

func serve(ctx context.Context, srv *server.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return nil
}

// waitDrain handles SIGUSR1 from the sentinel: stop accepting processes, let
// the running ones finish, then stop the server so the new binary can start.
func waitDrain(ctx context.Context, supervisor *process.Supervisor) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		return nil
	case <-sigCh:
	}

	slog.Info("drain requested, waiting for running processes")
	if err := supervisor.Drain(ctx); err != nil {
		return nil
	}
	slog.Info("drain complete")
	return errDrained
}
