// Package status defines the outcome taxonomy of a harness run and the
// helpers used to tally and display it.
package status

import (
	"fmt"
	"strings"
)

// Status is the closed set of outcome kinds a test run can end in.
// Values compare by tag, so two separately obtained OK values are equal.
type Status int

const (
	OK Status = iota
	Wrong
	GUIWrong
	Crashed
	Skipped
)

// All lists every status in display order.
var All = []Status{OK, Wrong, GUIWrong, Crashed, Skipped}

// Severity classifies a status for display and exit-code purposes.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityFailure Severity = "failure"
	SeveritySkip    Severity = "skip"
)

// String returns the machine name of the status.
func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case Wrong:
		return "WRONG"
	case GUIWrong:
		return "GUI_WRONG"
	case Crashed:
		return "CRASHED"
	case Skipped:
		return "SKIPPED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Severity returns the display severity of the status.
func (s Status) Severity() Severity {
	switch s {
	case OK:
		return SeveritySuccess
	case Skipped:
		return SeveritySkip
	default:
		return SeverityFailure
	}
}

// Color returns the display color name: green, red or yellow.
func (s Status) Color() string {
	switch s.Severity() {
	case SeveritySuccess:
		return "green"
	case SeveritySkip:
		return "yellow"
	default:
		return "red"
	}
}

// Passed reports whether the status is OK.
func (s Status) Passed() bool {
	return s == OK
}

// Failed reports whether the status counts as a failure of the system under test.
func (s Status) Failed() bool {
	return s.Severity() == SeverityFailure
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s >= OK && s <= Skipped
}

// ParseStatus converts a machine name back into a Status.
func ParseStatus(name string) (Status, error) {
	for _, s := range All {
		if strings.EqualFold(name, s.String()) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
