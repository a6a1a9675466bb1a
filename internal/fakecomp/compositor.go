package fakecomp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/wfharness/wst/internal/ipc"
)

// Compositor is an in-memory stand-in for a Wayland compositor. Launched
// clients become views and disappear when their process exits.
type Compositor struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	views   map[uint64]*ipc.View
	nextID  uint64
	cursorX int
	cursorY int
	events  []string
}

var _ ipc.Handler = (*Compositor)(nil)

// NewCompositor creates a compositor with the configured startup views.
func NewCompositor(cfg Config, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Compositor{
		cfg:    cfg,
		logger: logger.With("component", "fakecomp"),
		views:  make(map[uint64]*ipc.View),
		nextID: 1,
	}
	for _, v := range cfg.Views {
		c.addView(0, v.AppID, v.Title, v.Geometry)
	}
	return c
}

func (c *Compositor) addView(pid int, appID, title string, geom ipc.Rect) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	if geom.Width == 0 || geom.Height == 0 {
		geom = ipc.Rect{Width: c.cfg.Output.Width / 2, Height: c.cfg.Output.Height / 2}
	}
	c.views[id] = &ipc.View{
		ID:       id,
		PID:      pid,
		AppID:    appID,
		Title:    title,
		Role:     "toplevel",
		Mapped:   true,
		Geometry: geom,
	}
	return id
}

func (c *Compositor) removeView(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, id)
}

// Ping reports health unless configured as unresponsive.
func (c *Compositor) Ping(context.Context) bool {
	return !c.cfg.Unresponsive
}

// ListViews returns views ordered by id.
func (c *Compositor) ListViews(context.Context) []ipc.View {
	c.mu.Lock()
	defer c.mu.Unlock()

	views := make([]ipc.View, 0, len(c.views))
	for _, v := range c.views {
		views = append(views, *v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

// Run launches cmd with sh in the compositor's process group.
func (c *Compositor) Run(_ context.Context, cmd string) (int, error) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty command")
	}

	proc := exec.Command("/bin/sh", "-c", cmd)
	proc.Stdout = os.Stdout
	proc.Stderr = os.Stderr
	if err := proc.Start(); err != nil {
		return 0, fmt.Errorf("launching %q: %w", cmd, err)
	}
	pid := proc.Process.Pid

	var viewID uint64
	if !slices.Contains(c.cfg.Windowless, fields[0]) {
		viewID = c.addView(pid, c.appID(fields[0]), cmd, ipc.Rect{})
	}
	c.logger.Info("client launched", "cmd", cmd, "pid", pid, "view", viewID)

	go func() {
		err := proc.Wait()
		if viewID != 0 {
			c.removeView(viewID)
		}
		c.logger.Info("client exited", "pid", pid, "error", err)
	}()

	return pid, nil
}

func (c *Compositor) appID(command string) string {
	if id, ok := c.cfg.Apps[command]; ok {
		return id
	}
	return command
}

// MoveCursor records the pointer position.
func (c *Compositor) MoveCursor(_ context.Context, x, y int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursorX, c.cursorY = x, y
	c.events = append(c.events, fmt.Sprintf("motion %d,%d", x, y))
	return nil
}

// FeedButton records a button event at the pointer position.
func (c *Compositor) FeedButton(_ context.Context, button string, mode ipc.ButtonMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, fmt.Sprintf("button %s %s at %d,%d", button, mode, c.cursorX, c.cursorY))
	return nil
}

// FeedKey records a key event.
func (c *Compositor) FeedKey(_ context.Context, key string, mode ipc.ButtonMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, fmt.Sprintf("key %s %s", key, mode))
	return nil
}

// LayoutViews applies geometry; unknown view ids are an error.
func (c *Compositor) LayoutViews(_ context.Context, entries []ipc.LayoutEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range entries {
		if _, ok := c.views[e.ID]; !ok {
			return fmt.Errorf("no view with id %d", e.ID)
		}
	}
	for _, e := range entries {
		c.views[e.ID].Geometry = ipc.Rect{X: e.X, Y: e.Y, Width: e.Width, Height: e.Height}
	}
	return nil
}

// Events returns the input events received so far.
func (c *Compositor) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.events)
}
