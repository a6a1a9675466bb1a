// Package logging builds the structured loggers used across the harness.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wfharness/wst/internal/config"
)

// NewFromConfig creates a logger writing to stderr and, when configured, to a file.
// The returned closer is nil when no file is open.
func NewFromConfig(cfg *config.Config, baseDir string) (*slog.Logger, io.Closer, error) {
	level := parseLevel(cfg.Logging.Level)
	handler := newHandler(cfg.Logging.Format, os.Stderr, level)

	var closer io.Closer
	if cfg.Logging.File != "" {
		logPath := cfg.LogFile(baseDir)

		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return nil, nil, err
		}

		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, err
		}
		closer = file

		handler = newHandler(cfg.Logging.Format, io.MultiWriter(os.Stderr, file), level)
	}

	return slog.New(handler), closer, nil
}

// NewWithWriter creates a logger using the configured level and format on w.
func NewWithWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	return slog.New(newHandler(cfg.Logging.Format, w, parseLevel(cfg.Logging.Level)))
}

// NewForTest creates a silent logger for tests.
func NewForTest() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func parseLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(format config.LogFormat, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	if format == config.LogFormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// OrDefault returns logger, or slog.Default() when logger is nil.
func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// WithComponent tags a logger with the emitting component.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return OrDefault(logger).With("component", component)
}

// WithTest returns a logger with test context.
func WithTest(logger *slog.Logger, name string) *slog.Logger {
	return OrDefault(logger).With("test", name)
}

// WithSocket returns a logger with compositor socket context.
func WithSocket(logger *slog.Logger, socketPath string) *slog.Logger {
	return OrDefault(logger).With("socket", socketPath)
}
