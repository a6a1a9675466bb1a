// Package fakecomp is a stub compositor serving the control channel. It
// lets the harness be exercised end to end without a display server.
package fakecomp

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfharness/wst/internal/config"
	"github.com/wfharness/wst/internal/ipc"
	"github.com/wfharness/wst/internal/logging"
)

const (
	// SocketEnv carries the control socket path, as for the real compositor.
	SocketEnv = "_WAYFIRE_SOCKET"
	// ConfigEnv points at an optional YAML behaviour file.
	ConfigEnv = "WST_FAKECOMP_CONFIG"
)

// Main runs the fake compositor with command-line args and returns an exit code.
func Main(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("wst-fakecomp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	compositorConfig := fs.String("c", "", "Compositor config file (accepted for compatibility)")
	behaviourPath := fs.String("behaviour", "", "Path to behaviour config YAML")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if envConfig := os.Getenv(ConfigEnv); envConfig != "" && *behaviourPath == "" {
		*behaviourPath = envConfig
	}

	cfg := DefaultConfig()
	if *behaviourPath != "" {
		var err error
		cfg, err = LoadConfig(*behaviourPath)
		if err != nil {
			fmt.Fprintf(stderr, "loading behaviour config %s: %v\n", *behaviourPath, err)
			return 1
		}
	}

	logger := setupLogger(cfg.LogLevel, stderr)

	socketPath := os.Getenv(SocketEnv)
	if socketPath == "" {
		logger.Error("socket variable not set", "env", SocketEnv)
		return 1
	}

	logger.Info("fake compositor starting", "config", *compositorConfig, "socket", socketPath, "pid", os.Getpid())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := Serve(ctx, socketPath, cfg, logger); err != nil {
		logger.Error("fake compositor failed", "error", err)
		return 1
	}
	return 0
}

// Serve answers control requests on socketPath until ctx is done or the
// configured ExitAfter elapses.
func Serve(ctx context.Context, socketPath string, cfg Config, logger *slog.Logger) error {
	if cfg.StartupDelay > 0 {
		select {
		case <-time.After(cfg.StartupDelay):
		case <-ctx.Done():
			return nil
		}
	}

	comp := NewCompositor(cfg, logger)
	server := ipc.NewServer(socketPath, comp, logger)
	if err := server.StartAsync(ctx); err != nil {
		return err
	}

	var exitTimer <-chan time.Time
	if cfg.ExitAfter > 0 {
		exitTimer = time.After(cfg.ExitAfter)
	}

	select {
	case <-ctx.Done():
		logger.Info("fake compositor stopping")
	case <-exitTimer:
		logger.Warn("fake compositor exiting early", "after", cfg.ExitAfter)
	}
	return server.Shutdown()
}

func setupLogger(level string, w io.Writer) *slog.Logger {
	cfg := config.Default()
	cfg.Logging.Level = config.LogLevel(level)
	cfg.Logging.Format = config.LogFormatJSON
	return logging.NewWithWriter(cfg, w)
}
