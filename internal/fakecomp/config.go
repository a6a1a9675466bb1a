package fakecomp

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wfharness/wst/internal/ipc"
)

// Config controls how the fake compositor behaves.
type Config struct {
	// StartupDelay postpones creating the control socket.
	StartupDelay time.Duration `yaml:"startup_delay,omitempty"`
	// ExitAfter makes the compositor quit on its own, simulating a crash.
	ExitAfter time.Duration `yaml:"exit_after,omitempty"`
	// Unresponsive makes ping report failure.
	Unresponsive bool `yaml:"unresponsive"`
	// Apps maps the first word of a launched command to the app-id of its view.
	// Commands without an entry use the first word itself.
	Apps map[string]string `yaml:"apps,omitempty"`
	// Windowless lists commands that run without creating a view.
	Windowless []string `yaml:"windowless,omitempty"`
	// Views exist from startup.
	Views []ViewConfig `yaml:"views,omitempty"`
	// Output is the initial output size used for new views.
	Output ipc.Rect `yaml:"output"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// ViewConfig declares a view present from startup.
type ViewConfig struct {
	AppID    string   `yaml:"app_id"`
	Title    string   `yaml:"title"`
	Geometry ipc.Rect `yaml:"geometry"`
}

// DefaultConfig returns a responsive compositor with no views.
func DefaultConfig() Config {
	return Config{
		Output:   ipc.Rect{Width: 1280, Height: 720},
		LogLevel: "info",
	}
}

// LoadConfig loads a behaviour file, filling unset fields from DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// WriteConfig writes cfg as YAML, for tests that launch the fake compositor.
func WriteConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
