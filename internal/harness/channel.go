package harness

import "github.com/wfharness/wst/internal/ipc"

// Channel is the compositor control surface consumed by scenarios.
// *ipc.Client implements it.
type Channel interface {
	Ping() bool
	ListViews() ([]ipc.View, error)
	Run(cmd string) (int, error)
	MoveCursor(x, y int) error
	ClickButton(button string, mode ipc.ButtonMode) error
	PressKey(key string) error
	LayoutViews(layout map[string]ipc.Rect) error
	Close() error
}

// Dialer connects a Channel to a compositor socket.
type Dialer func(socketPath string) (Channel, error)

var _ Channel = (*ipc.Client)(nil)
