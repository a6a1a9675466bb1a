// Package screenshot captures the compositor output to image files.
package screenshot

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wfharness/wst/internal/waiter"
)

// Launcher starts a command inside the compositor session.
type Launcher interface {
	Run(cmd string) (int, error)
}

// Service captures the current compositor output into path.
type Service interface {
	Capture(l Launcher, path string) error
}

// Grim captures screenshots by asking the compositor to run grim.
type Grim struct {
	// Command is the capture tool. Defaults to "grim".
	Command string
	// Attempts and Interval bound the wait for the file to appear.
	Attempts int
	Interval time.Duration
	Sleeper  waiter.Sleeper
	Logger   *slog.Logger
}

// NewGrim returns a Grim service with default polling.
func NewGrim(logger *slog.Logger) *Grim {
	return &Grim{
		Command:  "grim",
		Attempts: 50,
		Interval: 100 * time.Millisecond,
		Logger:   logger,
	}
}

// Capture runs the capture tool and waits until a non-empty file exists at path.
func (g *Grim) Capture(l Launcher, path string) error {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleeper := g.Sleeper
	if sleeper == nil {
		sleeper = waiter.RealClock
	}
	command := g.Command
	if command == "" {
		command = "grim"
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving screenshot path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("creating screenshot directory: %w", err)
	}
	// A stale file from an earlier run would satisfy the poll below.
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale screenshot: %w", err)
	}

	if _, err := l.Run(command + " " + shellQuote(abs)); err != nil {
		return fmt.Errorf("starting %s: %w", command, err)
	}

	for i := 0; i < g.Attempts; i++ {
		if info, err := os.Stat(abs); err == nil && info.Size() > 0 {
			logger.Debug("screenshot captured", "component", "screenshot", "path", abs)
			return nil
		}
		sleeper.Sleep(g.Interval)
	}
	return fmt.Errorf("screenshot %s was not written", abs)
}

// shellQuote wraps s in single quotes for sh -c.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
