package harness

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/wfharness/wst/internal/config"
	"github.com/wfharness/wst/internal/ipc"
	"github.com/wfharness/wst/internal/screenshot"
	"github.com/wfharness/wst/internal/status"
	"github.com/wfharness/wst/internal/supervisor"
	"github.com/wfharness/wst/internal/waiter"
)

// dragSteps is the number of interpolation segments in ClickAndDrag.
const dragSteps = 10

// Context is the state of one test execution. Process and Channel are nil
// until the compositor has been started and connected.
type Context struct {
	// SocketPath is unique per execution.
	SocketPath string
	// Dir is the test's working directory.
	Dir string
	// ScreenshotPrefix is prepended to every stage name.
	ScreenshotPrefix string
	// Screenshots lists every capture path in the order taken.
	Screenshots []string

	Process *supervisor.Process
	Channel Channel
	Logger  *slog.Logger

	configFile string
	wait       config.WaitConfig
	waiter     *waiter.Waiter
	shots      screenshot.Service
	lookPath   func(string) (string, error)

	closeOnce sync.Once
}

// ConfigFile returns the compositor config path for this test.
func (c *Context) ConfigFile() string {
	if c.Dir == "" || filepath.IsAbs(c.configFile) {
		return c.configFile
	}
	return filepath.Join(c.Dir, c.configFile)
}

// SettleDuration returns the IPC settle duration of this context.
func (c *Context) SettleDuration() time.Duration {
	return c.waiter.SettleDuration()
}

// RequireClients returns SKIPPED for the first client not found on PATH.
func (c *Context) RequireClients(clients ...string) status.Outcome {
	for _, client := range clients {
		if _, err := c.lookPath(client); err != nil {
			return status.Skip(fmt.Sprintf("Missing %s (Did you compile test clients?)", client))
		}
	}
	return status.Pass()
}

// Settle waits n settle durations for clients to start or process events.
func (c *Context) Settle(n int) {
	c.waiter.Settle(n)
}

// SettleMillis waits ms milliseconds scaled by the settle duration.
func (c *Context) SettleMillis(ms int) {
	c.waiter.SettleMillis(ms)
}

// WaitForClientCount polls with the configured attempts and interval.
func (c *Context) WaitForClientCount(expected int) (bool, error) {
	return c.WaitForClientCountN(expected, c.wait.Attempts, c.wait.Interval)
}

// WaitForClientCountN polls the view list until it has expected entries.
// Zero attempts or interval fall back to the configured values.
func (c *Context) WaitForClientCountN(expected, attempts int, interval time.Duration) (bool, error) {
	if c.Channel == nil {
		return false, errNotConnected
	}
	if attempts == 0 {
		attempts = c.wait.Attempts
	}
	if interval == 0 {
		interval = c.wait.Interval
	}
	return c.waiter.WaitForClientCount(c.Channel, expected, attempts, interval)
}

// AppIDs returns the sorted app-ids of all views.
func (c *Context) AppIDs() ([]string, error) {
	if c.Channel == nil {
		return nil, errNotConnected
	}
	views, err := c.Channel.ListViews()
	if err != nil {
		return nil, err
	}
	return ipc.AppIDs(views), nil
}

// CaptureStage records and captures the screenshot {prefix}-{stage}.png.
// The capture service's error is returned unchanged.
func (c *Context) CaptureStage(stage string) error {
	path := c.ScreenshotPrefix + "-" + stage + ".png"
	c.Screenshots = append(c.Screenshots, path)
	if c.Channel == nil {
		return errNotConnected
	}
	return c.shots.Capture(c.Channel, path)
}

// ClickAndDrag presses button at the start point, moves to the end point in
// even steps and releases unless release is false.
func (c *Context) ClickAndDrag(button string, startX, startY, endX, endY int, release bool) error {
	if c.Channel == nil {
		return errNotConnected
	}
	dx := endX - startX
	dy := endY - startY

	if err := c.Channel.MoveCursor(startX, startY); err != nil {
		return err
	}
	if err := c.Channel.ClickButton(button, ipc.ModePress); err != nil {
		return err
	}
	for i := 0; i <= dragSteps; i++ {
		if err := c.Channel.MoveCursor(startX+floorDiv(dx*i, dragSteps), startY+floorDiv(dy*i, dragSteps)); err != nil {
			return err
		}
	}
	if release {
		return c.Channel.ClickButton(button, ipc.ModeRelease)
	}
	return nil
}

// Close releases the channel and kills the compositor process group.
// It is safe to call more than once and before anything was started.
func (c *Context) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.Channel != nil {
			if cerr := c.Channel.Close(); cerr != nil {
				c.Logger.Debug("closing channel", "error", cerr)
			}
		}
		err = c.Process.Cleanup()
	})
	return err
}

// floorDiv divides rounding toward negative infinity, so drags to the left
// step the same way as drags to the right.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

