package e2e

import (
	"time"

	"github.com/wfharness/wst/internal/fakecomp"
	"github.com/wfharness/wst/internal/ipc"
)

// FakeConfigBuilder provides a fluent API for fake compositor behaviour.
type FakeConfigBuilder struct {
	cfg fakecomp.Config
}

// NewFakeConfigBuilder starts from the fake compositor defaults.
func NewFakeConfigBuilder() *FakeConfigBuilder {
	return &FakeConfigBuilder{cfg: fakecomp.DefaultConfig()}
}

// WithApp maps a command's first word to the app-id of its view.
func (b *FakeConfigBuilder) WithApp(command, appID string) *FakeConfigBuilder {
	if b.cfg.Apps == nil {
		b.cfg.Apps = make(map[string]string)
	}
	b.cfg.Apps[command] = appID
	return b
}

// WithWindowless marks commands that never open a view.
func (b *FakeConfigBuilder) WithWindowless(commands ...string) *FakeConfigBuilder {
	b.cfg.Windowless = append(b.cfg.Windowless, commands...)
	return b
}

// WithView adds a view present from startup.
func (b *FakeConfigBuilder) WithView(appID, title string, geometry ipc.Rect) *FakeConfigBuilder {
	b.cfg.Views = append(b.cfg.Views, fakecomp.ViewConfig{AppID: appID, Title: title, Geometry: geometry})
	return b
}

// WithStartupDelay delays socket creation.
func (b *FakeConfigBuilder) WithStartupDelay(d time.Duration) *FakeConfigBuilder {
	b.cfg.StartupDelay = d
	return b
}

// WithExitAfter makes the compositor exit on its own after d.
func (b *FakeConfigBuilder) WithExitAfter(d time.Duration) *FakeConfigBuilder {
	b.cfg.ExitAfter = d
	return b
}

// Unresponsive makes every ping fail.
func (b *FakeConfigBuilder) Unresponsive() *FakeConfigBuilder {
	b.cfg.Unresponsive = true
	return b
}

// Build returns the configuration.
func (b *FakeConfigBuilder) Build() fakecomp.Config {
	return b.cfg
}
