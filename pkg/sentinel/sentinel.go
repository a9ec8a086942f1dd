// Package sentinel keeps a child copy of the current binary running. It
// restarts the child with exponential backoff when it exits and asks it to
// restart gracefully (SIGUSR1) when the binary on disk changes.
package sentinel

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	DefaultGracePeriod    = 10 * time.Second
	DefaultInitialBackoff = 5 * time.Second
	DefaultMaxBackoff     = 10 * time.Minute
	DefaultDrainTimeout   = 6 * time.Minute

	backoffFactor = 2.0
	// successRunTime is how long the child must run before backoff resets.
	successRunTime   = 30 * time.Second
	debounceInterval = 100 * time.Millisecond
	cleanExitDelay   = time.Second
)

type Option func(*Sentinel)

// WithBinary supervises path instead of the running executable.
func WithBinary(path string) Option {
	return func(s *Sentinel) { s.binaryPath = path }
}

// WithArgs sets the child's arguments. The default is "run".
func WithArgs(args ...string) Option {
	return func(s *Sentinel) { s.args = args }
}

func WithGracePeriod(d time.Duration) Option {
	return func(s *Sentinel) { s.gracePeriod = d }
}

func WithBackoff(initial, max time.Duration) Option {
	return func(s *Sentinel) {
		s.initialBackoff = initial
		s.maxBackoff = max
	}
}

// WithDrainTimeout bounds how long a child may take to exit after SIGUSR1
// before it is stopped with SIGTERM.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Sentinel) { s.drainTimeout = d }
}

type Sentinel struct {
	binaryPath     string
	args           []string
	gracePeriod    time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	drainTimeout   time.Duration
	logger         *slog.Logger

	hashMu   sync.Mutex
	lastHash [sha256.Size]byte
	backoff  time.Duration
}

func New(opts ...Option) *Sentinel {
	s := &Sentinel{
		args:           []string{"run"},
		gracePeriod:    DefaultGracePeriod,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		drainTimeout:   DefaultDrainTimeout,
		logger:         slog.Default().With("component", "sentinel"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.backoff = s.initialBackoff
	return s
}

type child struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// Run supervises the child until ctx is done, then stops the child and
// returns.
func (s *Sentinel) Run(ctx context.Context) error {
	if s.binaryPath == "" {
		p, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve executable path: %w", err)
		}
		s.binaryPath = p
	}
	// Watch the real file so symlinked installs are followed.
	p, err := filepath.EvalSymlinks(s.binaryPath)
	if err != nil {
		return fmt.Errorf("resolve symlinks for %s: %w", s.binaryPath, err)
	}
	s.binaryPath = p

	h, err := HashFile(s.binaryPath)
	if err != nil {
		return err
	}
	s.setHash(h)
	s.logger.Info("starting sentinel", "binary", s.binaryPath, "hash", fmt.Sprintf("%x", h[:8]))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()
	// Watch the directory: atomic deploys rename a new file over the binary.
	if err := watcher.Add(filepath.Dir(s.binaryPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.binaryPath), err)
	}

	updateCh := make(chan struct{}, 1)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		s.watchBinary(ctx, watcher, updateCh)
	}()
	defer func() { <-watchDone }()

	s.mainLoop(ctx, updateCh)
	return nil
}

func (s *Sentinel) mainLoop(ctx context.Context, updateCh <-chan struct{}) {
	for {
		if ctx.Err() != nil {
			return
		}

		c, err := s.startChild()
		if err != nil {
			s.logger.Error("failed to start child", "error", err)
			if !s.sleep(ctx, s.backoff) {
				return
			}
			s.increaseBackoff()
			continue
		}
		startTime := time.Now()

		select {
		case <-c.done:
			elapsed := time.Since(startTime)
			if c.err != nil {
				s.logger.Warn("child exited with error", "elapsed", elapsed, "error", c.err)
				if elapsed >= successRunTime {
					s.backoff = s.initialBackoff
				}
				s.logger.Info("waiting before restart", "backoff", s.backoff)
				if !s.sleep(ctx, s.backoff) {
					return
				}
				s.increaseBackoff()
			} else {
				// run never returns on its own, so a clean exit still restarts.
				s.logger.Info("child exited cleanly", "elapsed", elapsed)
				s.backoff = s.initialBackoff
				if !s.sleep(ctx, cleanExitDelay) {
					return
				}
			}

		case <-updateCh:
			s.logger.Info("binary update detected, requesting graceful restart", "pid", c.cmd.Process.Pid)
			s.signal(c, syscall.SIGUSR1)
			timer := time.NewTimer(s.drainTimeout)
			select {
			case <-c.done:
				s.logger.Info("child exited for restart")
			case <-timer.C:
				s.logger.Warn("timeout waiting for child to drain, stopping it")
				s.stopChild(c)
			case <-ctx.Done():
				timer.Stop()
				s.stopChild(c)
				return
			}
			timer.Stop()
			s.backoff = s.initialBackoff

		case <-ctx.Done():
			s.logger.Info("stopping child and exiting")
			s.stopChild(c)
			return
		}
	}
}

func (s *Sentinel) startChild() (*child, error) {
	cmd := exec.Command(s.binaryPath, s.args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("exec %s: %w", s.binaryPath, err)
	}
	s.logger.Info("started child process", "pid", cmd.Process.Pid)

	c := &child{cmd: cmd, done: make(chan struct{})}
	go func() {
		c.err = cmd.Wait()
		close(c.done)
	}()
	return c, nil
}

func (s *Sentinel) signal(c *child, sig syscall.Signal) {
	if err := c.cmd.Process.Signal(sig); err != nil {
		s.logger.Warn("failed to signal child", "signal", sig, "error", err)
	}
}

// stopChild sends SIGTERM, then SIGKILL once the grace period has passed,
// and returns after the child has exited.
func (s *Sentinel) stopChild(c *child) {
	s.signal(c, syscall.SIGTERM)
	timer := time.NewTimer(s.gracePeriod)
	defer timer.Stop()
	select {
	case <-c.done:
	case <-timer.C:
		s.logger.Warn("grace period expired, killing child", "pid", c.cmd.Process.Pid)
		s.signal(c, syscall.SIGKILL)
		<-c.done
	}
}

func (s *Sentinel) watchBinary(ctx context.Context, watcher *fsnotify.Watcher, updateCh chan<- struct{}) {
	binaryName := filepath.Base(s.binaryPath)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != binaryName {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, func() {
				s.checkBinary(updateCh)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("fsnotify error", "error", err)
		}
	}
}

func (s *Sentinel) checkBinary(updateCh chan<- struct{}) {
	h, err := HashFile(s.binaryPath)
	if err != nil {
		// Mid-deploy; the next event retries.
		s.logger.Warn("failed to hash binary", "error", err)
		return
	}
	s.hashMu.Lock()
	changed := h != s.lastHash
	s.lastHash = h
	s.hashMu.Unlock()
	if !changed {
		return
	}
	s.logger.Info("binary checksum changed", "hash", fmt.Sprintf("%x", h[:8]))
	select {
	case updateCh <- struct{}{}:
	default:
	}
}

func (s *Sentinel) setHash(h [sha256.Size]byte) {
	s.hashMu.Lock()
	s.lastHash = h
	s.hashMu.Unlock()
}

// sleep reports false when ctx ended the wait.
func (s *Sentinel) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Sentinel) increaseBackoff() {
	s.backoff = time.Duration(float64(s.backoff) * backoffFactor)
	if s.backoff > s.maxBackoff {
		s.backoff = s.maxBackoff
	}
}

// HashFile computes the SHA256 hash of the file at path.
func HashFile(path string) ([sha256.Size]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("hash %s: %w", path, err)
	}
	var result [sha256.Size]byte
	copy(result[:], h.Sum(nil))
	return result, nil
}
