// Package script loads declarative scenario files and runs them as
// harness scenarios.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	herrors "github.com/wfharness/wst/internal/errors"
)

// Script is a parsed scenario file.
type Script struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	GUI         bool     `yaml:"gui"`
	Requires    []string `yaml:"requires,omitempty"`
	Steps       []Step   `yaml:"steps"`

	// Path is the file the script was loaded from, if any.
	Path string `yaml:"-"`
}

// Step is one action. Exactly one action field must be set; As, Attempts,
// Interval and Message qualify the action.
type Step struct {
	Run             string           `yaml:"run,omitempty"`
	Settle          *int             `yaml:"settle,omitempty"`
	WaitMs          *int             `yaml:"wait_ms,omitempty"`
	WaitClients     *int             `yaml:"wait_clients,omitempty"`
	MoveCursor      []int            `yaml:"move_cursor,omitempty"`
	Click           *Click           `yaml:"click,omitempty"`
	Drag            *Drag            `yaml:"drag,omitempty"`
	PressKey        string           `yaml:"press_key,omitempty"`
	Layout          map[string][]int `yaml:"layout,omitempty"`
	Kill            string           `yaml:"kill,omitempty"`
	ExpectViews     []string         `yaml:"expect_views,omitempty"`
	ExpectViewCount *int             `yaml:"expect_view_count,omitempty"`
	Screenshot      string           `yaml:"screenshot,omitempty"`

	As       string        `yaml:"as,omitempty"`
	Attempts int           `yaml:"attempts,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
	Message  string        `yaml:"message,omitempty"`
}

// Click feeds a pointer button. Mode defaults to full.
type Click struct {
	Button string `yaml:"button"`
	Mode   string `yaml:"mode,omitempty"`
}

// Drag presses Button at From, moves to To and releases unless Release is false.
type Drag struct {
	Button  string `yaml:"button"`
	From    []int  `yaml:"from"`
	To      []int  `yaml:"to"`
	Release *bool  `yaml:"release,omitempty"`
}

// Kind names of step actions.
const (
	KindRun             = "run"
	KindSettle          = "settle"
	KindWaitMs          = "wait_ms"
	KindWaitClients     = "wait_clients"
	KindMoveCursor      = "move_cursor"
	KindClick           = "click"
	KindDrag            = "drag"
	KindPressKey        = "press_key"
	KindLayout          = "layout"
	KindKill            = "kill"
	KindExpectViews     = "expect_views"
	KindExpectViewCount = "expect_view_count"
	KindScreenshot      = "screenshot"
)

// Kinds returns the action fields set on the step, in declaration order.
func (s Step) Kinds() []string {
	var kinds []string
	add := func(set bool, kind string) {
		if set {
			kinds = append(kinds, kind)
		}
	}
	add(s.Run != "", KindRun)
	add(s.Settle != nil, KindSettle)
	add(s.WaitMs != nil, KindWaitMs)
	add(s.WaitClients != nil, KindWaitClients)
	add(s.MoveCursor != nil, KindMoveCursor)
	add(s.Click != nil, KindClick)
	add(s.Drag != nil, KindDrag)
	add(s.PressKey != "", KindPressKey)
	add(s.Layout != nil, KindLayout)
	add(s.Kill != "", KindKill)
	add(s.ExpectViews != nil, KindExpectViews)
	add(s.ExpectViewCount != nil, KindExpectViewCount)
	add(s.Screenshot != "", KindScreenshot)
	return kinds
}

// Kind returns the single action of the step, or "" if it has none or several.
func (s Step) Kind() string {
	kinds := s.Kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// ParseFile reads and validates the scenario at path.
func ParseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, herrors.IOFileNotFound(path)
		}
		return nil, herrors.IOReadError(path, err)
	}

	s, err := Parse(bytes.NewReader(data))
	if err != nil {
		var result *ValidationResult
		if errors.As(err, &result) {
			return nil, herrors.ScenarioInvalid(path, result.Error())
		}
		return nil, herrors.ScenarioParseError(path, err)
	}
	s.Path = path
	return s, nil
}

// Parse decodes a scenario. Unknown fields are rejected and the result is validated.
func Parse(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty scenario")
		}
		return nil, err
	}

	if result := Validate(&s); result.HasErrors() {
		return nil, result
	}
	return &s, nil
}
