package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc"

	"github.com/kazz187/delegate/pkg/cerr"
)

const (
	defaultShell         = "/bin/sh"
	defaultGracePeriod   = 10 * time.Second
	outputDrainTimeout   = 2 * time.Second
	maxLineSize          = 1024 * 1024
	exitCodeStartFailure = -1
	signalExitCodeBase   = 128
)

// ExitHandler is called once per process, after it has left the running
// status and all of its output has been captured.
type ExitHandler func(p Process, output []string)

// Supervisor starts shell scripts as background processes and keeps their
// combined output in memory for incremental retrieval.
//
// Supervisor is safe for concurrent use.
type Supervisor struct {
	mu        sync.RWMutex
	processes map[string]*managedProcess
	draining  bool

	// monitors tracks one goroutine per started process.
	monitors conc.WaitGroup

	shell          string
	maxProcesses   int
	gracePeriod    time.Duration
	retainFinished time.Duration
	onExit         []ExitHandler
	now            func() time.Time
}

type Option func(*Supervisor)

func WithShell(shell string) Option {
	return func(s *Supervisor) {
		if shell != "" {
			s.shell = shell
		}
	}
}

// WithMaxProcesses limits the number of running processes. 0 means unlimited.
func WithMaxProcesses(n int) Option {
	return func(s *Supervisor) { s.maxProcesses = n }
}

// WithGracePeriod sets how long a terminated process gets between SIGTERM
// and SIGKILL.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.gracePeriod = d
		}
	}
}

// WithRetainFinished drops finished processes from memory after d.
// 0 keeps them until the supervisor is discarded.
func WithRetainFinished(d time.Duration) Option {
	return func(s *Supervisor) { s.retainFinished = d }
}

func WithExitHandler(fn ExitHandler) Option {
	return func(s *Supervisor) { s.onExit = append(s.onExit, fn) }
}

func NewSupervisor(opts ...Option) *Supervisor {
	s := &Supervisor{
		processes:   make(map[string]*managedProcess),
		shell:       defaultShell,
		gracePeriod: defaultGracePeriod,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type managedProcess struct {
	mu   sync.Mutex
	info Process
	cmd  *exec.Cmd

	lines []string
	// dataCh is closed and replaced whenever lines grow or the process exits.
	dataCh chan struct{}
	done   chan struct{}

	terminateRequested bool

	// watermarks holds the number of lines delivered per caller.
	watermarks map[string]int
	// readers serializes GetOutput calls of one caller.
	readers map[string]chan struct{}
}

func (m *managedProcess) snapshot() Process {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *managedProcess) snapshotLocked() Process {
	p := m.info
	if m.info.ExitTime != nil {
		t := *m.info.ExitTime
		p.ExitTime = &t
	}
	if m.info.ExitCode != nil {
		c := *m.info.ExitCode
		p.ExitCode = &c
	}
	return p
}

func (m *managedProcess) notifyLocked() {
	close(m.dataCh)
	m.dataCh = make(chan struct{})
}

func (m *managedProcess) appendLine(line string) {
	m.mu.Lock()
	m.lines = append(m.lines, line)
	m.notifyLocked()
	m.mu.Unlock()
}

func (m *managedProcess) readerLock(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.readers[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.readers[key] = ch
	}
	return ch
}

// Start runs script with the configured shell in a new process group owned
// by workspaceID.
func (s *Supervisor) Start(ctx context.Context, workspaceID, script, displayName string) (*Process, error) {
	if workspaceID == "" {
		return nil, cerr.NewError(cerr.FailedPrecondition, "workspace id is required", nil)
	}
	if err := ValidateScript(script); err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = DisplayName(script)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draining {
		return nil, cerr.NewError(cerr.Unavailable, "supervisor is shutting down", nil)
	}
	if s.maxProcesses > 0 && s.runningCountLocked() >= s.maxProcesses {
		return nil, cerr.NewError(cerr.ResourceExhausted, fmt.Sprintf("process limit reached: %d", s.maxProcesses), nil)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "failed to create output pipe", err)
	}

	cmd := exec.Command(s.shell, "-c", script)
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, cerr.NewError(cerr.Internal, "failed to start process", err)
	}
	// The child holds its own copy of the write end.
	_ = w.Close()

	m := &managedProcess{
		info: Process{
			ID:          ulid.Make().String(),
			WorkspaceID: workspaceID,
			Status:      StatusRunning,
			Script:      script,
			DisplayName: displayName,
			StartTime:   s.now(),
		},
		cmd:        cmd,
		dataCh:     make(chan struct{}),
		done:       make(chan struct{}),
		watermarks: make(map[string]int),
		readers:    make(map[string]chan struct{}),
	}
	s.processes[m.info.ID] = m

	s.monitors.Go(func() { s.monitor(m, r) })

	slog.InfoContext(ctx, "process started",
		"process_id", m.info.ID,
		"workspace_id", workspaceID,
		"pid", cmd.Process.Pid,
	)
	p := m.snapshot()
	return &p, nil
}

func (s *Supervisor) runningCountLocked() int {
	n := 0
	for _, m := range s.processes {
		m.mu.Lock()
		if m.info.Status == StatusRunning {
			n++
		}
		m.mu.Unlock()
	}
	return n
}

// monitor captures output until the pipe closes, waits for the process and
// records its terminal status.
func (s *Supervisor) monitor(m *managedProcess, r *os.File) {
	var readers conc.WaitGroup
	readers.Go(func() {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			m.appendLine(scanner.Text())
		}
	})

	waitErr := m.cmd.Wait()
	exitTime := s.now()

	// Background children may keep the pipe open after the shell exits.
	readDone := make(chan struct{})
	go func() {
		readers.Wait()
		close(readDone)
	}()
	timer := time.NewTimer(outputDrainTimeout)
	select {
	case <-readDone:
	case <-timer.C:
		_ = r.Close()
		<-readDone
	}
	timer.Stop()
	_ = r.Close()

	status, code := exitStatus(waitErr)

	m.mu.Lock()
	if m.terminateRequested {
		status = StatusTerminated
	}
	m.info.Status = status
	m.info.ExitTime = &exitTime
	m.info.ExitCode = &code
	close(m.done)
	m.notifyLocked()
	snapshot := m.snapshotLocked()
	output := make([]string, len(m.lines))
	copy(output, m.lines)
	m.mu.Unlock()

	slog.Info("process finished",
		"process_id", snapshot.ID,
		"workspace_id", snapshot.WorkspaceID,
		"status", snapshot.Status,
		"exit_code", code,
	)

	for _, fn := range s.onExit {
		fn(snapshot, output)
	}

	if s.retainFinished > 0 {
		time.AfterFunc(s.retainFinished, func() { s.prune(snapshot.ID) })
	}
}

func exitStatus(err error) (Status, int) {
	if err == nil {
		return StatusExited, 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return StatusError, exitCodeStartFailure
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return StatusExited, signalExitCodeBase + int(ws.Signal())
	}
	return StatusExited, exitErr.ExitCode()
}

func (s *Supervisor) prune(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.processes[id]; ok {
		select {
		case <-m.done:
			delete(s.processes, id)
		default:
		}
	}
}

func (s *Supervisor) lookup(id string) (*managedProcess, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.processes[id]
	return m, ok
}

// List returns a snapshot of all processes, or of those owned by workspaceID
// when it is not empty.
func (s *Supervisor) List(workspaceID string) []Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Process, 0, len(s.processes))
	for _, m := range s.processes {
		p := m.snapshot()
		if workspaceID != "" && p.WorkspaceID != workspaceID {
			continue
		}
		result = append(result, p)
	}
	return result
}

// Get returns nil if the process is unknown.
func (s *Supervisor) Get(id string) *Process {
	m, ok := s.lookup(id)
	if !ok {
		return nil
	}
	p := m.snapshot()
	return &p
}

// Output returns every captured line of a process.
func (s *Supervisor) Output(id string) ([]string, error) {
	m, ok := s.lookup(id)
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "process not found: "+id, nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out, nil
}

type OutputRequest struct {
	// CallerID owns the watermark. Callers sharing an id share one cursor.
	CallerID string
	Include  *regexp.Regexp
	Exclude  *regexp.Regexp
	// Timeout <= 0 returns whatever is available without waiting.
	Timeout time.Duration
}

type OutputResult struct {
	Lines    []string
	Status   Status
	ExitCode *int
	TimedOut bool
}

func (r OutputRequest) keep(line string) bool {
	if r.Include != nil && !r.Include.MatchString(line) {
		return false
	}
	if r.Exclude != nil && r.Exclude.MatchString(line) {
		return false
	}
	return true
}

// GetOutput returns the lines appended since the caller's watermark. It
// waits for new lines until the timeout elapses or ctx is done. Lines
// removed by the filters still advance the watermark.
//
// A finished process with nothing left to read returns at once with its
// terminal status.
func (s *Supervisor) GetOutput(ctx context.Context, id string, req OutputRequest) (*OutputResult, error) {
	m, ok := s.lookup(id)
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "process not found: "+id, nil)
	}

	lock := m.readerLock(req.CallerID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return nil, cerr.Interrupted(ctx.Err())
	}
	defer func() { <-lock }()

	var timeout <-chan time.Time
	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		m.mu.Lock()
		pending := m.lines[m.watermarks[req.CallerID]:]
		m.watermarks[req.CallerID] = len(m.lines)
		snapshot := m.snapshotLocked()
		dataCh := m.dataCh
		m.mu.Unlock()

		var lines []string
		for _, line := range pending {
			if req.keep(line) {
				lines = append(lines, line)
			}
		}

		result := &OutputResult{
			Lines:    lines,
			Status:   snapshot.Status,
			ExitCode: snapshot.ExitCode,
		}
		if len(lines) > 0 || snapshot.Status.IsTerminal() {
			return result, nil
		}
		if timeout == nil {
			result.TimedOut = true
			return result, nil
		}

		select {
		case <-dataCh:
		case <-timeout:
			result.TimedOut = true
			return result, nil
		case <-ctx.Done():
			return nil, cerr.Interrupted(ctx.Err())
		}
	}
}

// Terminate sends SIGTERM to the process group and SIGKILL after the grace
// period. Unknown and already finished processes, and processes that were
// already asked to terminate, yield a NotFound error.
func (s *Supervisor) Terminate(id string) error {
	m, ok := s.lookup(id)
	if !ok {
		return cerr.NewError(cerr.NotFound, "process not found: "+id, nil)
	}

	m.mu.Lock()
	if m.info.Status.IsTerminal() {
		m.mu.Unlock()
		return cerr.NewError(cerr.NotFound, "process already finished: "+id, nil)
	}
	if m.terminateRequested {
		m.mu.Unlock()
		return cerr.NewError(cerr.NotFound, "termination already requested: "+id, nil)
	}
	m.terminateRequested = true
	pid := m.cmd.Process.Pid
	m.mu.Unlock()

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return cerr.NewError(cerr.Internal, "failed to signal process "+id, err)
	}

	go func() {
		timer := time.NewTimer(s.gracePeriod)
		defer timer.Stop()
		select {
		case <-m.done:
		case <-timer.C:
			slog.Warn("grace period expired, killing process group", "process_id", id, "pid", pid)
			_ = syscall.Kill(-pid, syscall.SIGKILL)
		}
	}()
	return nil
}

// Wait blocks until the process finishes or ctx is done.
func (s *Supervisor) Wait(ctx context.Context, id string) (*Process, error) {
	m, ok := s.lookup(id)
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "process not found: "+id, nil)
	}
	select {
	case <-m.done:
		p := m.snapshot()
		return &p, nil
	case <-ctx.Done():
		return nil, cerr.Interrupted(ctx.Err())
	}
}

func (s *Supervisor) IsDraining() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draining
}

// Shutdown stops accepting new processes, terminates the running ones and
// waits for them to finish or for ctx to be done.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	ids := make([]string, 0, len(s.processes))
	for id := range s.processes {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.Terminate(id); err != nil && !cerr.IsCode(err, cerr.NotFound) {
			slog.Warn("failed to terminate process on shutdown", "process_id", id, "error", err)
		}
	}
	return s.waitMonitors(ctx)
}

// Drain stops accepting new processes and waits for the running ones to
// exit on their own or for ctx to be done.
func (s *Supervisor) Drain(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	return s.waitMonitors(ctx)
}

func (s *Supervisor) waitMonitors(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.monitors.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
