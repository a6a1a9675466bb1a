// Package supervisor owns the OS-level lifecycle of the compositor under test.
package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	herrors "github.com/wfharness/wst/internal/errors"
	"github.com/wfharness/wst/internal/waiter"
)

// reapTimeout bounds how long Cleanup waits for the killed leader to be reaped.
const reapTimeout = 5 * time.Second

// Jitter is a settle interval of Base plus a uniform offset in [0, Spread).
// A zero Spread makes the interval deterministic.
type Jitter struct {
	Base   time.Duration
	Spread time.Duration
}

// Pick returns an interval using rnd, which must return values in [0, 1).
func (j Jitter) Pick(rnd func() float64) time.Duration {
	if j.Spread <= 0 {
		return j.Base
	}
	if rnd == nil {
		rnd = rand.Float64
	}
	return j.Base + time.Duration(rnd()*float64(j.Spread))
}

// Options describes how to launch the compositor.
type Options struct {
	Executable string
	Args       []string
	// Dir is the working directory; config paths in Args resolve against it.
	Dir string

	// SocketEnv names the variable that carries SocketPath to the child.
	SocketEnv  string
	SocketPath string
	// Env holds extra KEY=VALUE pairs appended after the socket variable.
	Env []string

	// LogPath receives the child's stdout and stderr. It is truncated.
	LogPath string

	Settle Jitter
	// Rand and Sleeper make the settle interval deterministic in tests.
	Rand    func() float64
	Sleeper waiter.Sleeper
	Logger  *slog.Logger
}

// Process is a running compositor leading its own process group.
type Process struct {
	cmd    *exec.Cmd
	pid    int
	pgid   int
	logger *slog.Logger

	// exited is closed once the leader has been reaped.
	exited  chan struct{}
	exitErr error

	mu      sync.Mutex
	cleaned bool
}

// Start spawns the compositor as a new session leader, then sleeps the
// jittered settle interval before returning.
func Start(opts Options) (*Process, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "supervisor")

	logFile, err := os.Create(opts.LogPath)
	if err != nil {
		return nil, herrors.LogFileFailed(opts.LogPath, err)
	}
	// The child holds its own descriptor.
	defer logFile.Close()

	cmd := exec.Command(opts.Executable, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = os.Environ()
	if opts.SocketEnv != "" {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", opts.SocketEnv, opts.SocketPath))
	}
	cmd.Env = append(cmd.Env, opts.Env...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	// New session so the compositor and every client it spawns share a group.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		return nil, herrors.SpawnFailed(opts.Executable, err)
	}

	p := &Process{
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		pgid:   cmd.Process.Pid,
		logger: logger.With("pid", cmd.Process.Pid),
		exited: make(chan struct{}),
	}
	if pgid, err := syscall.Getpgid(p.pid); err == nil {
		p.pgid = pgid
	}

	go func() {
		p.exitErr = cmd.Wait()
		close(p.exited)
	}()

	delay := opts.Settle.Pick(opts.Rand)
	p.logger.Info("compositor started", "executable", opts.Executable, "socket", opts.SocketPath, "settle", delay)

	if delay > 0 {
		sleeper := opts.Sleeper
		if sleeper == nil {
			sleeper = waiter.RealClock
		}
		sleeper.Sleep(delay)
	}

	return p, nil
}

// Pid returns the leader's process id.
func (p *Process) Pid() int {
	return p.pid
}

// Pgid returns the process group id resolved at start.
func (p *Process) Pgid() int {
	return p.pgid
}

// Exited reports whether the leader has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

// Done is closed when the leader has exited.
func (p *Process) Done() <-chan struct{} {
	return p.exited
}

// Wait blocks until the leader exits and returns its exit error.
func (p *Process) Wait() error {
	<-p.exited
	return p.exitErr
}

// Cleanup kills the whole process group with SIGKILL and reaps the leader.
// It is a no-op on a nil Process and on repeated calls.
func (p *Process) Cleanup() error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	if p.cleaned {
		p.mu.Unlock()
		return nil
	}
	p.cleaned = true
	p.mu.Unlock()

	pgid := p.pgid
	if !p.Exited() {
		if current, err := syscall.Getpgid(p.pid); err == nil {
			pgid = current
		}
	}

	var killErr error
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		killErr = herrors.KillFailed(pgid, err)
		p.logger.Error("killing process group", "pgid", pgid, "error", err)
	}

	select {
	case <-p.exited:
	case <-time.After(reapTimeout):
		p.logger.Warn("compositor not reaped after kill", "pgid", pgid)
	}

	p.logger.Debug("process group killed", "pgid", pgid)
	return killErr
}

// Cleanup is the nil-safe function form of Process.Cleanup.
func Cleanup(p *Process) error {
	return p.Cleanup()
}
