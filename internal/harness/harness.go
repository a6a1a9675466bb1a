// Package harness runs a single scenario against a freshly started
// compositor and maps every way the run can end to an Outcome.
package harness

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"github.com/wfharness/wst/internal/config"
	"github.com/wfharness/wst/internal/ipc"
	"github.com/wfharness/wst/internal/screenshot"
	"github.com/wfharness/wst/internal/status"
	"github.com/wfharness/wst/internal/supervisor"
	"github.com/wfharness/wst/internal/waiter"
)

const (
	// PingFailedMessage is reported when the compositor is unresponsive after a run.
	PingFailedMessage = "Wayfire failed to respond to ping"
	// CrashPrefix starts the message of every CRASHED outcome.
	CrashPrefix = "Wayfire or client socket crashed, "
)

var errNotConnected = errors.New("control channel not connected")

// Harness executes scenarios. It is safe to use from several goroutines;
// each execution gets its own Context.
type Harness struct {
	cfg      *config.Config
	logger   *slog.Logger
	dial     Dialer
	shots    screenshot.Service
	clock    waiter.Sleeper
	rand     func() float64
	lookPath func(string) (string, error)
	env      []string
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithDialer replaces the control channel dialer.
func WithDialer(d Dialer) Option {
	return func(h *Harness) { h.dial = d }
}

// WithScreenshots replaces the screenshot service.
func WithScreenshots(s screenshot.Service) Option {
	return func(h *Harness) { h.shots = s }
}

// WithClock replaces the sleeper used for settles and polls.
func WithClock(s waiter.Sleeper) Option {
	return func(h *Harness) { h.clock = s }
}

// WithRand replaces the random source of the launch jitter.
func WithRand(r func() float64) Option {
	return func(h *Harness) { h.rand = r }
}

// WithLookPath replaces the PATH lookup used by RequireClients.
func WithLookPath(f func(string) (string, error)) Option {
	return func(h *Harness) { h.lookPath = f }
}

// WithEnv adds KEY=VALUE pairs to the compositor environment.
func WithEnv(env ...string) Option {
	return func(h *Harness) { h.env = append(h.env, env...) }
}

// New creates a Harness from cfg.
func New(cfg *config.Config, opts ...Option) *Harness {
	h := &Harness{
		cfg:      cfg,
		clock:    waiter.RealClock,
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.dial == nil {
		h.dial = func(socketPath string) (Channel, error) {
			c, err := ipc.Dial(socketPath, cfg.IPC.Timeout, h.logger)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	if h.shots == nil {
		shots := screenshot.NewGrim(h.logger)
		shots.Sleeper = h.clock
		h.shots = shots
	}
	return h
}

// RunOption sets per-execution parameters.
type RunOption func(*runParams)

type runParams struct {
	name   string
	dir    string
	prefix string
}

// InDir sets the test working directory. The compositor config resolves against it.
func InDir(dir string) RunOption {
	return func(p *runParams) { p.dir = dir }
}

// Named sets the test name used in logs.
func Named(name string) RunOption {
	return func(p *runParams) { p.name = name }
}

// WithScreenshotPrefix sets the screenshot filename prefix.
func WithScreenshotPrefix(prefix string) RunOption {
	return func(p *runParams) { p.prefix = prefix }
}

// NewContext allocates a Context with a unique socket path under the runtime
// directory, creating the directory if needed. Nothing is started.
func (h *Harness) NewContext(opts ...RunOption) (*Context, error) {
	var p runParams
	for _, opt := range opts {
		opt(&p)
	}

	runtimeDir := h.cfg.Harness.RuntimeDir
	if err := os.MkdirAll(runtimeDir, 0755); err != nil {
		return nil, fmt.Errorf("creating runtime dir: %w", err)
	}

	socketPath := filepath.Join(runtimeDir, fmt.Sprintf("%s-%s.socket", h.cfg.Harness.SocketPrefix, uuid.NewString()))

	logger := h.logger.With("component", "harness", "socket", socketPath)
	if p.name != "" {
		logger = logger.With("test", p.name)
	}

	return &Context{
		SocketPath:       socketPath,
		Dir:              p.dir,
		ScreenshotPrefix: p.prefix,
		Logger:           logger,
		configFile:       h.cfg.Harness.ConfigFile,
		wait:             h.cfg.Wait,
		waiter: waiter.New(waiter.Options{
			Settle:    h.cfg.Harness.SettleDuration,
			EarlyExit: h.cfg.Wait.EarlyExit,
			Clock:     h.clock,
			Logger:    logger,
		}),
		shots:    h.shots,
		lookPath: h.lookPath,
	}, nil
}

// Execute runs sc against the compositor at compositorPath, logging its
// output to logPath. It never panics; every fault becomes CRASHED, and the
// compositor process group is killed on every path.
func (h *Harness) Execute(sc Scenario, compositorPath, logPath string, opts ...RunOption) (out status.Outcome) {
	ctx, err := h.NewContext(opts...)
	if err != nil {
		return crashed(err.Error())
	}
	defer func() {
		if err := ctx.Close(); err != nil {
			ctx.Logger.Error("cleanup failed", "error", err)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			ctx.Logger.Error("scenario panicked", "panic", r)
			out = crashed(fmt.Sprintf("panic: %v\n%s", r, debug.Stack()))
		}
	}()

	out, stage, err := h.execute(ctx, sc, compositorPath, logPath)
	if err != nil {
		ctx.Logger.Error("run faulted", "stage", stage, "error", err)
		return crashed(err.Error() + "\n" + faultTrace(stage, err))
	}
	ctx.Logger.Info("run finished", "status", out.Status, "message", out.Message)
	return out
}

// Stages of an execution, reported in the trace of a fault.
const (
	stageStart   = "start"
	stageConnect = "connect"
	stageRun     = "run"
)

// execute is the sequential part of Execute: prepare, start, connect, run, ping.
// On a fault it also returns the stage that failed.
func (h *Harness) execute(ctx *Context, sc Scenario, compositorPath, logPath string) (status.Outcome, string, error) {
	if out := sc.Prepare(ctx); !out.OK() {
		ctx.Logger.Info("prepare declined", "status", out.Status, "message", out.Message)
		return out, "", nil
	}

	proc, err := supervisor.Start(supervisor.Options{
		Executable: compositorPath,
		Args:       []string{"-c", ctx.ConfigFile()},
		Dir:        ctx.Dir,
		SocketEnv:  h.cfg.Harness.SocketEnv,
		SocketPath: ctx.SocketPath,
		Env:        h.env,
		LogPath:    logPath,
		Settle: supervisor.Jitter{
			Base:   h.cfg.Launch.SettleBase,
			Spread: h.cfg.Launch.SettleJitter,
		},
		Rand:    h.rand,
		Sleeper: h.clock,
		Logger:  ctx.Logger,
	})
	if err != nil {
		return status.Outcome{}, stageStart, err
	}
	ctx.Process = proc

	ch, err := h.dial(ctx.SocketPath)
	if err != nil {
		return status.Outcome{}, stageConnect, err
	}
	ctx.Channel = ch

	out, err := sc.Run(ctx)
	if err != nil {
		return status.Outcome{}, stageRun, err
	}
	if !out.OK() {
		return out, "", nil
	}

	if !ctx.Channel.Ping() {
		return status.Fail(PingFailedMessage), "", nil
	}
	return status.Pass(), "", nil
}

// faultTrace names the failed stage and walks the wrapped error chain.
func faultTrace(stage string, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "stage: %s", stage)
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&b, "\ncaused by: %v", e)
	}
	return b.String()
}

func crashed(trace string) status.Outcome {
	return status.New(status.Crashed, CrashPrefix+strings.TrimRight(trace, "\n"))
}
