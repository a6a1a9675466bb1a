package harness

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfharness/wst/internal/config"
	"github.com/wfharness/wst/internal/fakecomp"
	"github.com/wfharness/wst/internal/ipc"
	"github.com/wfharness/wst/internal/logging"
	"github.com/wfharness/wst/internal/status"
	"github.com/wfharness/wst/internal/testutil"
)

// fixture wires a Harness to the re-executed test binary acting as compositor.
type fixture struct {
	cfg        *config.Config
	h          *Harness
	compositor string
	logPath    string
	dir        string
}

func newFixture(t *testing.T, behaviour fakecomp.Config, opts ...Option) *fixture {
	t.Helper()

	cfg := testutil.NewTestConfig(t)
	// The fake compositor needs a moment to create its socket.
	cfg.Launch.SettleBase = 300 * time.Millisecond

	dir := t.TempDir()
	behaviourPath := filepath.Join(dir, "fake.yaml")
	require.NoError(t, fakecomp.WriteConfig(behaviourPath, behaviour))

	self, err := os.Executable()
	require.NoError(t, err)

	base := []Option{
		WithLogger(logging.NewForTest()),
		WithEnv(fakeCompositorEnv+"=1", fakecomp.ConfigEnv+"="+behaviourPath),
	}
	return &fixture{
		cfg:        cfg,
		h:          New(cfg, append(base, opts...)...),
		compositor: self,
		logPath:    filepath.Join(dir, "compositor.log"),
		dir:        dir,
	}
}

func (f *fixture) execute(sc Scenario) status.Outcome {
	return f.h.Execute(sc, f.compositor, f.logPath, InDir(f.dir), Named("fixture"))
}

func TestNewContext_UniqueSocketPaths(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	h := New(cfg, WithLogger(logging.NewForTest()))

	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		ctx, err := h.NewContext()
		require.NoError(t, err)

		require.False(t, seen[ctx.SocketPath], "duplicate socket path %s", ctx.SocketPath)
		seen[ctx.SocketPath] = true

		assert.Equal(t, cfg.Harness.RuntimeDir, filepath.Dir(ctx.SocketPath))
		assert.True(t, strings.HasPrefix(filepath.Base(ctx.SocketPath), "wayfire-"))
		assert.True(t, strings.HasSuffix(ctx.SocketPath, ".socket"))
	}
}

func TestNewContext_CreatesRuntimeDir(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	cfg.Harness.RuntimeDir = filepath.Join(cfg.Harness.RuntimeDir, "nested", "wst")

	_, err := New(cfg, WithLogger(logging.NewForTest())).NewContext()
	require.NoError(t, err)

	info, err := os.Stat(cfg.Harness.RuntimeDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExecute_PrepareSkippedNeverRuns(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	h := New(cfg, WithLogger(logging.NewForTest()))
	logPath := filepath.Join(t.TempDir(), "compositor.log")

	var runs atomic.Int32
	sc := Funcs{
		PrepareFunc: func(*Context) status.Outcome { return status.Skip("no display") },
		RunFunc: func(*Context) (status.Outcome, error) {
			runs.Add(1)
			return status.Pass(), nil
		},
	}

	out := h.Execute(sc, "/nonexistent/wayfire", logPath)

	assert.Equal(t, status.Skip("no display"), out)
	assert.Zero(t, runs.Load())
	_, err := os.Stat(logPath)
	assert.True(t, os.IsNotExist(err), "compositor must not be started")
}

// End-to-end C: a missing client binary skips the test without spawning anything.
func TestExecute_MissingClientSkips(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	lookPath := func(name string) (string, error) {
		if name == "wleird-subsurfaces" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + name, nil
	}
	h := New(cfg, WithLogger(logging.NewForTest()), WithLookPath(lookPath))
	logPath := filepath.Join(t.TempDir(), "compositor.log")

	sc := Funcs{PrepareFunc: func(ctx *Context) status.Outcome {
		return ctx.RequireClients("gedit", "wleird-subsurfaces", "weston-terminal")
	}}

	out := h.Execute(sc, "/nonexistent/wayfire", logPath)

	assert.Equal(t, status.Skipped, out.Status)
	assert.Equal(t, "Missing wleird-subsurfaces (Did you compile test clients?)", out.Message)
	_, err := os.Stat(logPath)
	assert.True(t, os.IsNotExist(err))
}

// End-to-end A: a healthy compositor and a passing run give OK with no message.
func TestExecute_OK(t *testing.T) {
	f := newFixture(t, fakecomp.DefaultConfig())

	var sawContext atomic.Bool
	out := f.execute(Funcs{RunFunc: func(ctx *Context) (status.Outcome, error) {
		sawContext.Store(ctx.Process != nil && ctx.Channel != nil)
		return status.Pass(), nil
	}})

	assert.Equal(t, status.Outcome{Status: status.OK}, out)
	assert.True(t, sawContext.Load())
}

// End-to-end B: the compositor dies before the liveness probe.
func TestExecute_CompositorExitsBeforePing(t *testing.T) {
	behaviour := fakecomp.DefaultConfig()
	// Outlives the launch settle so the exit lands inside Run.
	behaviour.ExitAfter = 700 * time.Millisecond
	f := newFixture(t, behaviour)
	require.Greater(t, behaviour.ExitAfter, f.cfg.Launch.SettleBase+f.cfg.Launch.SettleJitter)

	out := f.execute(Funcs{RunFunc: func(ctx *Context) (status.Outcome, error) {
		if ctx.Channel == nil {
			return status.Fail("channel not connected before run"), nil
		}
		select {
		case <-ctx.Process.Done():
		case <-time.After(10 * time.Second):
			return status.Fail("compositor never exited"), nil
		}
		return status.Pass(), nil
	}})

	assert.Equal(t, status.Fail(PingFailedMessage), out)
}

func TestExecute_UnresponsiveCompositor(t *testing.T) {
	behaviour := fakecomp.DefaultConfig()
	behaviour.Unresponsive = true
	f := newFixture(t, behaviour)

	out := f.execute(Funcs{RunFunc: func(*Context) (status.Outcome, error) {
		return status.Pass(), nil
	}})
	assert.Equal(t, status.Fail(PingFailedMessage), out)
}

func TestExecute_RunFailureSkipsPing(t *testing.T) {
	behaviour := fakecomp.DefaultConfig()
	behaviour.Unresponsive = true
	f := newFixture(t, behaviour)

	out := f.execute(Funcs{RunFunc: func(*Context) (status.Outcome, error) {
		return status.Fail("Popup menu did not open!"), nil
	}})
	assert.Equal(t, status.Fail("Popup menu did not open!"), out)
}

func TestExecute_DefaultRunIsNotImplemented(t *testing.T) {
	f := newFixture(t, fakecomp.DefaultConfig())

	out := f.execute(Base{})
	assert.Equal(t, status.Skip(NotImplemented), out)
}

func TestExecute_PanicCrashesAndCleansUp(t *testing.T) {
	f := newFixture(t, fakecomp.DefaultConfig())

	var compositorPid, clientPid int
	out := f.execute(Funcs{RunFunc: func(ctx *Context) (status.Outcome, error) {
		compositorPid = ctx.Process.Pid()
		pid, err := ctx.Channel.Run("sleep 60")
		if err != nil {
			return status.Outcome{}, err
		}
		clientPid = pid
		panic("scenario bug")
	}})

	assert.Equal(t, status.Crashed, out.Status)
	assert.True(t, strings.HasPrefix(out.Message, CrashPrefix), out.Message)
	assert.Contains(t, out.Message, "panic: scenario bug")
	assert.Contains(t, out.Message, "goroutine", "message should carry a stack trace")

	require.NotZero(t, compositorPid)
	require.NotZero(t, clientPid)
	assert.True(t, testutil.WaitGone(compositorPid, 5*time.Second), "compositor survived")
	assert.True(t, testutil.WaitGone(clientPid, 5*time.Second), "client in the compositor's group survived")
}

func TestExecute_RunErrorCrashesAndCleansUp(t *testing.T) {
	f := newFixture(t, fakecomp.DefaultConfig())

	var compositorPid int
	out := f.execute(Funcs{RunFunc: func(ctx *Context) (status.Outcome, error) {
		compositorPid = ctx.Process.Pid()
		return status.Outcome{}, fmt.Errorf("socket closed unexpectedly")
	}})

	assert.Equal(t, status.New(status.Crashed, CrashPrefix+"socket closed unexpectedly\nstage: run"), out)
	assert.True(t, testutil.WaitGone(compositorPid, 5*time.Second))
}

func TestExecute_FaultTraceWalksErrorChain(t *testing.T) {
	f := newFixture(t, fakecomp.DefaultConfig())

	out := f.execute(Funcs{RunFunc: func(ctx *Context) (status.Outcome, error) {
		_, err := ctx.Channel.Run("")
		return status.Outcome{}, fmt.Errorf("step 1 (run): %w", err)
	}})

	require.Equal(t, status.Crashed, out.Status)
	lines := strings.Split(out.Message, "\n")
	require.GreaterOrEqual(t, len(lines), 3, out.Message)
	assert.True(t, strings.HasPrefix(lines[0], CrashPrefix+"step 1 (run): "), lines[0])
	assert.Equal(t, "stage: run", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "caused by: "), lines[2])
	assert.Contains(t, lines[2], "IPC_003")
}

func TestExecute_SpawnFailureCrashes(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	h := New(cfg, WithLogger(logging.NewForTest()))

	out := h.Execute(Base{}, filepath.Join(t.TempDir(), "no-wayfire"), filepath.Join(t.TempDir(), "log"))

	assert.Equal(t, status.Crashed, out.Status)
	assert.Contains(t, out.Message, "failed to start compositor")
	assert.Contains(t, out.Message, "\nstage: start")
}

func TestExecute_ConnectFailureCrashesAndKills(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "pid")
	// Never opens a socket.
	exe := testutil.WriteExecutable(t, dir, "silent-compositor", "echo $$ > "+pidFile+"\nexec sleep 60\n")
	h := New(cfg, WithLogger(logging.NewForTest()))

	out := h.Execute(Base{}, exe, filepath.Join(dir, "log"))

	assert.Equal(t, status.Crashed, out.Status)
	assert.Contains(t, out.Message, "failed to connect to compositor socket")
	assert.Contains(t, out.Message, "\nstage: connect")

	data, err := os.ReadFile(pidFile)
	if err == nil {
		var pid int
		fmt.Sscanf(string(data), "%d", &pid)
		assert.True(t, testutil.WaitGone(pid, 5*time.Second))
	}
}

// The socket file is not unlinked when the compositor is killed.
func TestExecute_LeavesSocketFile(t *testing.T) {
	f := newFixture(t, fakecomp.DefaultConfig())

	var socket string
	out := f.execute(Funcs{RunFunc: func(ctx *Context) (status.Outcome, error) {
		socket = ctx.SocketPath
		return status.Pass(), nil
	}})
	require.Equal(t, status.OK, out.Status)

	_, err := os.Stat(socket)
	assert.NoError(t, err, "socket file is expected to leak after SIGKILL")
}

func TestExecute_ClientsAndLayout(t *testing.T) {
	behaviour := fakecomp.DefaultConfig()
	behaviour.Apps = map[string]string{"sleep": "sleeper"}
	f := newFixture(t, behaviour)

	out := f.execute(Funcs{RunFunc: func(ctx *Context) (status.Outcome, error) {
		if _, err := ctx.Channel.Run("sleep 30"); err != nil {
			return status.Outcome{}, err
		}
		if _, err := ctx.Channel.Run("sleep 31"); err != nil {
			return status.Outcome{}, err
		}
		ok, err := ctx.WaitForClientCount(2)
		if err != nil {
			return status.Outcome{}, err
		}
		if !ok {
			return status.Fail("clients did not open"), nil
		}
		if err := ctx.Channel.LayoutViews(map[string]ipc.Rect{"sleeper": {Width: 500, Height: 500}}); err != nil {
			return status.Outcome{}, err
		}
		ctx.Settle(1)
		ids, err := ctx.AppIDs()
		if err != nil {
			return status.Outcome{}, err
		}
		if strings.Join(ids, ",") != "sleeper,sleeper" {
			return status.Failf("unexpected views %v", ids), nil
		}
		return status.Pass(), nil
	}})

	assert.Equal(t, status.Pass(), out)
}

func TestIsGUI(t *testing.T) {
	assert.False(t, IsGUI(Base{}))
	assert.True(t, IsGUI(Funcs{GUI: true}))
}
