package script

import (
	"fmt"
	"strings"

	"github.com/wfharness/wst/internal/ipc"
)

// ValidationError is a single problem in a scenario file.
type ValidationError struct {
	Step    int // 1-based step index, 0 for the script itself
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	var parts []string
	if e.Step > 0 {
		parts = append(parts, fmt.Sprintf("step %d", e.Step))
	}
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field %q", e.Field))
	}
	if len(parts) == 0 {
		return e.Message
	}
	return strings.Join(parts, ", ") + ": " + e.Message
}

// ValidationResult holds all validation errors.
type ValidationResult struct {
	Errors []ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error implements the error interface.
func (r *ValidationResult) Error() string {
	if len(r.Errors) == 0 {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("validation failed with %d error(s):\n  - %s",
		len(r.Errors), strings.Join(msgs, "\n  - "))
}

// Add adds a validation error.
func (r *ValidationResult) Add(step int, field, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{
		Step:    step,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// Validate checks the whole script and returns every error found.
func Validate(s *Script) *ValidationResult {
	result := &ValidationResult{}

	if s.Name == "" {
		result.Add(0, "name", "is required")
	}
	if len(s.Steps) == 0 {
		result.Add(0, "steps", "at least one step is required")
	}
	for i, req := range s.Requires {
		if strings.TrimSpace(req) == "" {
			result.Add(0, "requires", "entry %d is empty", i+1)
		}
	}

	labels := make(map[string]bool)
	for i, step := range s.Steps {
		validateStep(i+1, step, labels, result)
	}
	return result
}

func validateStep(n int, step Step, labels map[string]bool, result *ValidationResult) {
	kinds := step.Kinds()
	switch len(kinds) {
	case 0:
		result.Add(n, "", "no action set")
		return
	case 1:
	default:
		result.Add(n, "", "exactly one action allowed, got %s", strings.Join(kinds, ", "))
		return
	}
	kind := kinds[0]

	if step.As != "" && kind != KindRun {
		result.Add(n, "as", "only valid on run steps")
	}
	if (step.Attempts != 0 || step.Interval != 0) && kind != KindWaitClients {
		result.Add(n, "attempts", "attempts and interval are only valid on wait_clients steps")
	}
	if step.Message != "" && kind != KindExpectViews && kind != KindExpectViewCount && kind != KindWaitClients {
		result.Add(n, "message", "only valid on wait_clients and expectation steps")
	}

	switch kind {
	case KindRun:
		if step.As != "" {
			if labels[step.As] {
				result.Add(n, "as", "duplicate label %q", step.As)
			}
			labels[step.As] = true
		}
	case KindSettle:
		if *step.Settle < 0 {
			result.Add(n, kind, "must not be negative")
		}
	case KindWaitMs:
		if *step.WaitMs < 0 {
			result.Add(n, kind, "must not be negative")
		}
	case KindWaitClients:
		if *step.WaitClients < 0 {
			result.Add(n, kind, "must not be negative")
		}
		if step.Attempts < 0 {
			result.Add(n, "attempts", "must not be negative")
		}
		if step.Interval < 0 {
			result.Add(n, "interval", "must not be negative")
		}
	case KindMoveCursor:
		if len(step.MoveCursor) != 2 {
			result.Add(n, kind, "want [x, y], got %d values", len(step.MoveCursor))
		}
	case KindClick:
		if step.Click.Button == "" {
			result.Add(n, "click.button", "is required")
		}
		if step.Click.Mode != "" && !ipc.ButtonMode(step.Click.Mode).Valid() {
			result.Add(n, "click.mode", "invalid mode %q (want press, release or full)", step.Click.Mode)
		}
	case KindDrag:
		if step.Drag.Button == "" {
			result.Add(n, "drag.button", "is required")
		}
		if len(step.Drag.From) != 2 {
			result.Add(n, "drag.from", "want [x, y], got %d values", len(step.Drag.From))
		}
		if len(step.Drag.To) != 2 {
			result.Add(n, "drag.to", "want [x, y], got %d values", len(step.Drag.To))
		}
	case KindLayout:
		if len(step.Layout) == 0 {
			result.Add(n, kind, "at least one view is required")
		}
		for appID, box := range step.Layout {
			if len(box) != 4 {
				result.Add(n, kind, "%s: want [x, y, width, height], got %d values", appID, len(box))
			}
		}
	case KindKill:
		if !labels[step.Kill] {
			result.Add(n, kind, "unknown label %q (set it with 'as' on an earlier run step)", step.Kill)
		}
	case KindExpectViewCount:
		if *step.ExpectViewCount < 0 {
			result.Add(n, kind, "must not be negative")
		}
	}
}
