// Package testutil provides test infrastructure, fixtures, and helpers for the harness.
package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/wfharness/wst/internal/config"
)

// ShortTempDir creates a temp directory under os.TempDir with a short name.
// Unix socket paths are limited to about 100 bytes, which t.TempDir can exceed.
func ShortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "wst")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// NewTestConfig returns a config with sockets in a private runtime dir,
// no launch jitter, and short waits.
func NewTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Harness.RuntimeDir = ShortTempDir(t)
	cfg.Harness.SettleDuration = 10 * time.Millisecond
	cfg.Launch.SettleBase = 0
	cfg.Launch.SettleJitter = 0
	cfg.Wait.Interval = 10 * time.Millisecond
	cfg.IPC.Timeout = 2 * time.Second
	cfg.Runner.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Level = config.LogLevelDebug
	return cfg
}

// WriteFile writes content to dir/name, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// WriteTestDir creates a test directory holding a scenario file and an empty compositor config.
func WriteTestDir(t *testing.T, root, name, scenario string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	WriteFile(t, dir, "scenario.yaml", scenario)
	WriteFile(t, dir, "wayfire.ini", "[core]\nplugins = stipc\n")
	return dir
}

// WriteExecutable writes a shell script and marks it executable.
func WriteExecutable(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := WriteFile(t, dir, name, "#!/bin/sh\n"+script)
	if err := os.Chmod(path, 0755); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	return path
}

// ProcessAlive reports whether pid still exists and is not a zombie.
func ProcessAlive(pid int) bool {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return false
	}
	// Format: pid (comm) state ...
	for i := len(data) - 1; i >= 0; i-- {
		if data[i] == ')' {
			if i+2 < len(data) {
				return data[i+2] != 'Z' && data[i+2] != 'X'
			}
			break
		}
	}
	return true
}

// WaitGone polls until pid no longer runs or timeout expires.
func WaitGone(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !ProcessAlive(pid) {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return !ProcessAlive(pid)
}
