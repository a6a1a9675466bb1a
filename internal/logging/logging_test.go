package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wfharness/wst/internal/config"
)

func TestNewFromConfig_DefaultsToStderr(t *testing.T) {
	cfg := config.Default()

	logger, closer, err := NewFromConfig(cfg, "/tmp")
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if closer != nil {
		t.Error("Expected no closer when no file configured")
	}
	if logger == nil {
		t.Fatal("Expected logger to be non-nil")
	}
}

func TestNewFromConfig_WritesFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Logging.Format = config.LogFormatJSON
	cfg.Logging.File = "logs/wst.log"

	logger, closer, err := NewFromConfig(cfg, dir)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if closer == nil {
		t.Fatal("Expected closer when file configured")
	}

	logger.Info("compositor started", "pid", 42)
	closer.Close()

	data, err := os.ReadFile(filepath.Join(dir, "logs", "wst.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	if entry["msg"] != "compositor started" {
		t.Errorf("msg = %v, want compositor started", entry["msg"])
	}
}

func TestNewWithWriter_Level(t *testing.T) {
	tests := []struct {
		level     config.LogLevel
		wantDebug bool
		wantWarn  bool
	}{
		{config.LogLevelDebug, true, true},
		{config.LogLevelInfo, false, true},
		{config.LogLevelError, false, false},
		{"bogus", false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			var buf bytes.Buffer
			cfg := config.Default()
			cfg.Logging.Level = tt.level
			logger := NewWithWriter(cfg, &buf)

			logger.Debug("debug line")
			logger.Warn("warn line")

			if got := strings.Contains(buf.String(), "debug line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(buf.String(), "warn line"); got != tt.wantWarn {
				t.Errorf("warn logged = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	logger := NewWithWriter(cfg, &buf)

	WithSocket(WithTest(WithComponent(logger, "harness"), "xdg-shell/wayfire-1720"), "/tmp/wst/w.socket").Info("ping")

	out := buf.String()
	for _, want := range []string{"component=harness", "test=xdg-shell/wayfire-1720", "socket=/tmp/wst/w.socket"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestOrDefault(t *testing.T) {
	if OrDefault(nil) == nil {
		t.Error("OrDefault(nil) returned nil")
	}
	l := NewForTest()
	if OrDefault(l) != l {
		t.Error("OrDefault() replaced a non-nil logger")
	}
}
