package process

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/delegate/pkg/cerr"
)

const testWait = 5 * time.Second

func startProcess(t *testing.T, s *Supervisor, workspaceID, script string) *Process {
	t.Helper()
	p, err := s.Start(context.Background(), workspaceID, script, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Terminate(p.ID) })
	return p
}

func waitProcess(t *testing.T, s *Supervisor, id string) *Process {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testWait)
	defer cancel()
	p, err := s.Wait(ctx, id)
	require.NoError(t, err)
	return p
}

func TestSupervisorStartAndWait(t *testing.T) {
	s := NewSupervisor()
	p := startProcess(t, s, "ws-1", "echo hello; echo world >&2; exit 3")
	assert.Equal(t, StatusRunning, p.Status)
	assert.Equal(t, "ws-1", p.WorkspaceID)
	assert.NotEmpty(t, p.ID)
	assert.Nil(t, p.ExitCode)

	done := waitProcess(t, s, p.ID)
	assert.Equal(t, StatusExited, done.Status)
	require.NotNil(t, done.ExitCode)
	assert.Equal(t, 3, *done.ExitCode)
	require.NotNil(t, done.ExitTime)
	assert.Equal(t, done.ExitTime.Sub(done.StartTime), done.Uptime(time.Now().Add(time.Hour)))

	lines, err := s.Output(p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"hello", "world"}, lines)
}

func TestSupervisorStartValidation(t *testing.T) {
	s := NewSupervisor()
	tests := []struct {
		name        string
		workspaceID string
		script      string
		code        cerr.Code
	}{
		{name: "missing workspace", workspaceID: "", script: "true", code: cerr.FailedPrecondition},
		{name: "empty script", workspaceID: "ws", script: "  ", code: cerr.InvalidArgument},
		{name: "unparsable script", workspaceID: "ws", script: "if then fi (", code: cerr.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Start(context.Background(), tt.workspaceID, tt.script, "")
			require.Error(t, err)
			assert.Equal(t, tt.code, cerr.CodeOf(err))
		})
	}
	assert.Empty(t, s.List(""))
}

func TestSupervisorGetOutputIncremental(t *testing.T) {
	s := NewSupervisor()
	p := startProcess(t, s, "ws", "echo a; sleep 0.3; echo b")
	ctx := context.Background()
	req := OutputRequest{CallerID: "ws", Timeout: testWait}

	first, err := s.GetOutput(ctx, p.ID, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, first.Lines)
	assert.False(t, first.TimedOut)

	second, err := s.GetOutput(ctx, p.ID, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, second.Lines)

	// Nothing left: returns once the process is finished, without timing out.
	start := time.Now()
	third, err := s.GetOutput(ctx, p.ID, req)
	require.NoError(t, err)
	assert.Empty(t, third.Lines)
	assert.False(t, third.TimedOut)
	assert.Equal(t, StatusExited, third.Status)
	require.NotNil(t, third.ExitCode)
	assert.Equal(t, 0, *third.ExitCode)
	assert.Less(t, time.Since(start), testWait)

	fourth, err := s.GetOutput(ctx, p.ID, OutputRequest{CallerID: "ws", Timeout: time.Hour})
	require.NoError(t, err)
	assert.Empty(t, fourth.Lines)
	assert.Equal(t, StatusExited, fourth.Status)
}

func TestSupervisorGetOutputWatermarkPerCaller(t *testing.T) {
	s := NewSupervisor()
	p := startProcess(t, s, "ws", "echo one; echo two")
	waitProcess(t, s, p.ID)
	ctx := context.Background()

	a, err := s.GetOutput(ctx, p.ID, OutputRequest{CallerID: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, a.Lines)

	b, err := s.GetOutput(ctx, p.ID, OutputRequest{CallerID: "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, b.Lines)

	again, err := s.GetOutput(ctx, p.ID, OutputRequest{CallerID: "a"})
	require.NoError(t, err)
	assert.Empty(t, again.Lines)
}

func TestSupervisorGetOutputFilters(t *testing.T) {
	s := NewSupervisor()
	p := startProcess(t, s, "ws", "echo keep 1; echo drop 2; echo keep 3")
	waitProcess(t, s, p.ID)
	ctx := context.Background()

	res, err := s.GetOutput(ctx, p.ID, OutputRequest{
		CallerID: "ws",
		Include:  regexp.MustCompile(`^keep`),
		Exclude:  regexp.MustCompile(`3$`),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep 1"}, res.Lines)

	// Filtered lines were consumed as well.
	res, err = s.GetOutput(ctx, p.ID, OutputRequest{CallerID: "ws"})
	require.NoError(t, err)
	assert.Empty(t, res.Lines)
}

func TestSupervisorGetOutputTimeout(t *testing.T) {
	s := NewSupervisor()
	p := startProcess(t, s, "ws", "sleep 30")
	ctx := context.Background()

	res, err := s.GetOutput(ctx, p.ID, OutputRequest{CallerID: "ws", Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Empty(t, res.Lines)
	assert.Equal(t, StatusRunning, res.Status)

	res, err = s.GetOutput(ctx, p.ID, OutputRequest{CallerID: "ws"})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
}

func TestSupervisorGetOutputCancelled(t *testing.T) {
	s := NewSupervisor()
	p := startProcess(t, s, "ws", "sleep 30")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := s.GetOutput(ctx, p.ID, OutputRequest{CallerID: "ws", Timeout: time.Hour})
		errCh <- err
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.True(t, cerr.IsInterrupted(err))
		assert.Equal(t, "Interrupted", cerr.Message(err))
	case <-time.After(testWait):
		t.Fatal("GetOutput did not return after cancellation")
	}
}

func TestSupervisorGetOutputSerializesCaller(t *testing.T) {
	s := NewSupervisor()
	p := startProcess(t, s, "ws", "for i in 1 2 3 4 5 6 7 8 9 10; do echo $i; done")
	waitProcess(t, s, p.ID)

	var (
		mu  sync.Mutex
		all []string
		wg  sync.WaitGroup
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.GetOutput(context.Background(), p.ID, OutputRequest{CallerID: "ws"})
			if err != nil {
				return
			}
			mu.Lock()
			all = append(all, res.Lines...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}, all)
}

func TestSupervisorGetOutputUnknown(t *testing.T) {
	s := NewSupervisor()
	_, err := s.GetOutput(context.Background(), "missing", OutputRequest{})
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestSupervisorTerminate(t *testing.T) {
	s := NewSupervisor(WithGracePeriod(time.Second))
	p := startProcess(t, s, "ws", "sleep 30")

	require.NoError(t, s.Terminate(p.ID))
	done := waitProcess(t, s, p.ID)
	assert.Equal(t, StatusTerminated, done.Status)
	require.NotNil(t, done.ExitCode)
	exitTime := *done.ExitTime

	err := s.Terminate(p.ID)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	err = s.Terminate("unknown")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	// Exit metadata does not change after the transition.
	again := s.Get(p.ID)
	require.NotNil(t, again)
	assert.Equal(t, exitTime, *again.ExitTime)
	assert.Equal(t, *done.ExitCode, *again.ExitCode)
}

func TestSupervisorTerminateKillsAfterGracePeriod(t *testing.T) {
	s := NewSupervisor(WithGracePeriod(200 * time.Millisecond))
	p := startProcess(t, s, "ws", "trap '' TERM; echo ready; while true; do sleep 0.05; done")

	res, err := s.GetOutput(context.Background(), p.ID, OutputRequest{CallerID: "ws", Timeout: testWait})
	require.NoError(t, err)
	require.Equal(t, []string{"ready"}, res.Lines)

	require.NoError(t, s.Terminate(p.ID))
	// The process ignores SIGTERM, so it is still running here.
	err = s.Terminate(p.ID)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	done := waitProcess(t, s, p.ID)
	assert.Equal(t, StatusTerminated, done.Status)
}

func TestSupervisorListAndGet(t *testing.T) {
	s := NewSupervisor()
	p1 := startProcess(t, s, "ws-1", "sleep 30")
	p2 := startProcess(t, s, "ws-2", "sleep 30")

	assert.Len(t, s.List(""), 2)

	only := s.List("ws-1")
	require.Len(t, only, 1)
	assert.Equal(t, p1.ID, only[0].ID)

	got := s.Get(p2.ID)
	require.NotNil(t, got)
	assert.Equal(t, "ws-2", got.WorkspaceID)
	assert.Nil(t, s.Get("missing"))
}

func TestSupervisorMaxProcesses(t *testing.T) {
	s := NewSupervisor(WithMaxProcesses(1))
	p := startProcess(t, s, "ws", "sleep 30")

	_, err := s.Start(context.Background(), "ws", "sleep 30", "")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.ResourceExhausted))

	require.NoError(t, s.Terminate(p.ID))
	waitProcess(t, s, p.ID)

	startProcess(t, s, "ws", "true")
}

func TestSupervisorShutdown(t *testing.T) {
	s := NewSupervisor(WithGracePeriod(time.Second))
	p := startProcess(t, s, "ws", "sleep 30")

	ctx, cancel := context.WithTimeout(context.Background(), testWait)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.True(t, s.IsDraining())
	assert.Equal(t, StatusTerminated, s.Get(p.ID).Status)

	_, err := s.Start(context.Background(), "ws", "true", "")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Unavailable))
}

func TestSupervisorDrain(t *testing.T) {
	s := NewSupervisor()
	p := startProcess(t, s, "ws", "sleep 0.2; echo finished")

	ctx, cancel := context.WithTimeout(context.Background(), testWait)
	defer cancel()
	require.NoError(t, s.Drain(ctx))
	assert.True(t, s.IsDraining())

	// Drained processes finish on their own.
	got := s.Get(p.ID)
	require.NotNil(t, got)
	assert.Equal(t, StatusExited, got.Status)
	out, err := s.Output(p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"finished"}, out)

	_, err = s.Start(context.Background(), "ws", "true", "")
	assert.True(t, cerr.IsCode(err, cerr.Unavailable))
}

func TestSupervisorDrainTimeout(t *testing.T) {
	s := NewSupervisor(WithGracePeriod(time.Second))
	startProcess(t, s, "ws", "sleep 30")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testWait)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Drain(ctx), context.DeadlineExceeded)
}

func TestSupervisorExitHandlerAndPrune(t *testing.T) {
	type exited struct {
		p      Process
		output []string
	}
	ch := make(chan exited, 1)
	s := NewSupervisor(
		WithRetainFinished(50*time.Millisecond),
		WithExitHandler(func(p Process, output []string) { ch <- exited{p: p, output: output} }),
	)
	p := startProcess(t, s, "ws", "echo done")

	select {
	case e := <-ch:
		assert.Equal(t, p.ID, e.p.ID)
		assert.Equal(t, StatusExited, e.p.Status)
		assert.Equal(t, []string{"done"}, e.output)
	case <-time.After(testWait):
		t.Fatal("exit handler was not called")
	}

	assert.Eventually(t, func() bool { return s.Get(p.ID) == nil }, testWait, 10*time.Millisecond)
}
