package ipc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	herrors "github.com/wfharness/wst/internal/errors"
)

// DefaultTimeout bounds dialing and each request round trip.
const DefaultTimeout = 5 * time.Second

// Client is a persistent connection to a compositor control socket.
// Requests are serialized; a Client is safe for concurrent use.
type Client struct {
	socketPath string
	timeout    time.Duration
	logger     *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the control socket at socketPath.
func Dial(socketPath string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, herrors.ConnectFailed(socketPath, err)
	}

	return &Client{
		socketPath: socketPath,
		timeout:    timeout,
		logger:     logger.With("component", "ipc-client"),
		conn:       conn,
	}, nil
}

// SocketPath returns the path the client is connected to.
func (c *Client) SocketPath() string {
	return c.socketPath
}

// Close closes the connection. Closing twice is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Call sends one request and decodes the reply into reply (which may be nil).
func (c *Client) Call(method Method, data any, reply any) error {
	req := Request{Method: method}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshaling %s data: %w", method, err)
		}
		req.Data = raw
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return herrors.RequestFailed(string(method), net.ErrClosed)
	}

	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return herrors.RequestFailed(string(method), err)
	}
	if err := WriteFrame(c.conn, &req); err != nil {
		return herrors.RequestFailed(string(method), err)
	}
	body, err := ReadFrame(c.conn)
	if err != nil {
		return herrors.RequestFailed(string(method), err)
	}

	c.logger.Debug("ipc round trip", "method", method, "reply_bytes", len(body))

	if msg, ok := remoteError(body); ok {
		return herrors.RemoteError(string(method), msg)
	}
	if reply == nil {
		return nil
	}
	if err := json.Unmarshal(body, reply); err != nil {
		return herrors.RequestFailed(string(method), fmt.Errorf("decoding reply: %w", err))
	}
	return nil
}

// Ping reports whether the compositor answers a liveness probe.
func (c *Client) Ping() bool {
	var reply ResultReply
	if err := c.Call(MethodPing, nil, &reply); err != nil {
		c.logger.Warn("ping failed", "socket", c.socketPath, "error", err)
		return false
	}
	return reply.Result == ResultOK
}

// ListViews returns every view the compositor tracks.
func (c *Client) ListViews() ([]View, error) {
	var views []View
	if err := c.Call(MethodListViews, nil, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// Run launches a client command inside the compositor session and returns its pid.
func (c *Client) Run(cmd string) (int, error) {
	var reply RunReply
	if err := c.Call(MethodRun, RunData{Cmd: cmd}, &reply); err != nil {
		return 0, err
	}
	return reply.PID, nil
}

// MoveCursor moves the pointer to (x, y).
func (c *Client) MoveCursor(x, y int) error {
	return c.Call(MethodMoveCursor, CursorData{X: x, Y: y}, nil)
}

// ClickButton feeds a pointer button, e.g. BTN_LEFT.
func (c *Client) ClickButton(button string, mode ButtonMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid button mode %q", mode)
	}
	return c.Call(MethodFeedButton, ButtonData{Button: button, Mode: mode}, nil)
}

// PressKey feeds a full press and release of a key, e.g. KEY_2.
func (c *Client) PressKey(key string) error {
	return c.Call(MethodFeedKey, KeyData{Key: key, Mode: ModeFull}, nil)
}

// LayoutViews places views by app-id. Every app-id must match a view.
func (c *Client) LayoutViews(layout map[string]Rect) error {
	views, err := c.ListViews()
	if err != nil {
		return err
	}

	entries, err := resolveLayout(views, layout)
	if err != nil {
		return err
	}
	return c.Call(MethodLayoutViews, LayoutData{Views: entries}, nil)
}

// resolveLayout maps app-ids to view ids. The first view with a matching
// app-id wins. Entries are ordered by app-id.
func resolveLayout(views []View, layout map[string]Rect) ([]LayoutEntry, error) {
	appIDs := make([]string, 0, len(layout))
	for id := range layout {
		appIDs = append(appIDs, id)
	}
	sort.Strings(appIDs)

	var missing []string
	entries := make([]LayoutEntry, 0, len(layout))
	for _, appID := range appIDs {
		r := layout[appID]
		found := false
		for _, v := range views {
			if v.AppID == appID {
				entries = append(entries, LayoutEntry{ID: v.ID, X: r.X, Y: r.Y, Width: r.Width, Height: r.Height})
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, appID)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("layout: no view with app-id %s", strings.Join(missing, ", "))
	}
	return entries, nil
}

// AppIDs returns the sorted app-ids of views.
func AppIDs(views []View) []string {
	ids := make([]string, len(views))
	for i, v := range views {
		ids[i] = v.AppID
	}
	sort.Strings(ids)
	return ids
}
