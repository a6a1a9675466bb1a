// Package ipc implements the compositor control channel.
//
// Each message is a 4-byte little-endian length followed by a JSON object.
// Requests carry a method name and a data object. A reply containing an
// "error" field signals failure.
package ipc

import (
	"encoding/json"
	"fmt"
)

// Method identifies a control channel request.
type Method string

const (
	MethodPing        Method = "stipc/ping"
	MethodListViews   Method = "window-rules/list-views"
	MethodRun         Method = "stipc/run"
	MethodMoveCursor  Method = "stipc/move_cursor"
	MethodFeedButton  Method = "stipc/feed_button"
	MethodFeedKey     Method = "stipc/feed_key"
	MethodLayoutViews Method = "stipc/layout_views"
)

// Valid returns true if this is a recognized method.
func (m Method) Valid() bool {
	switch m {
	case MethodPing, MethodListViews, MethodRun, MethodMoveCursor,
		MethodFeedButton, MethodFeedKey, MethodLayoutViews:
		return true
	}
	return false
}

// ButtonMode selects which half of a click is fed to the compositor.
type ButtonMode string

const (
	ModePress   ButtonMode = "press"
	ModeRelease ButtonMode = "release"
	ModeFull    ButtonMode = "full"
)

// Valid returns true if this is a recognized button mode.
func (m ButtonMode) Valid() bool {
	return m == ModePress || m == ModeRelease || m == ModeFull
}

// Request is a single control channel request.
type Request struct {
	Method Method          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the request data into v.
func (r *Request) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("%s: missing data", r.Method)
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("%s: invalid data: %w", r.Method, err)
	}
	return nil
}

// Rect is a view geometry in layout coordinates.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// View describes a compositor-tracked client window.
type View struct {
	ID       uint64 `json:"id"`
	PID      int    `json:"pid"`
	AppID    string `json:"app-id"`
	Title    string `json:"title"`
	Role     string `json:"role,omitempty"`
	Mapped   bool   `json:"mapped"`
	Focused  bool   `json:"activated"`
	Geometry Rect   `json:"geometry"`
}

// --- Request payloads ---

// RunData asks the compositor to launch a client command.
type RunData struct {
	Cmd string `json:"cmd"`
}

// CursorData moves the pointer to an absolute position.
type CursorData struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ButtonData feeds a pointer button event.
type ButtonData struct {
	Button string     `json:"button"`
	Mode   ButtonMode `json:"mode"`
}

// KeyData feeds a keyboard key event.
type KeyData struct {
	Key  string     `json:"key"`
	Mode ButtonMode `json:"mode"`
}

// LayoutEntry places one view.
type LayoutEntry struct {
	ID     uint64 `json:"id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// LayoutData places several views at once.
type LayoutData struct {
	Views []LayoutEntry `json:"views"`
}

// --- Reply payloads ---

// ResultReply is the generic acknowledgement.
type ResultReply struct {
	Result string `json:"result"`
}

// ResultOK is the Result value of a successful acknowledgement.
const ResultOK = "ok"

// RunReply carries the pid of a launched client.
type RunReply struct {
	Result string `json:"result,omitempty"`
	PID    int    `json:"pid"`
}

// ErrorReply signals a failed request.
type ErrorReply struct {
	Error string `json:"error"`
}

// remoteError extracts the error message of a reply, if any.
func remoteError(data []byte) (string, bool) {
	if len(data) == 0 || data[0] != '{' {
		return "", false
	}
	var probe struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || probe.Error == nil {
		return "", false
	}
	return *probe.Error, true
}
