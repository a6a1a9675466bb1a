package status

import "fmt"

// Outcome is the (status, message) pair returned by prepare, run and execute.
// An empty Message means no message.
type Outcome struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Pass is the successful outcome with no message.
func Pass() Outcome {
	return Outcome{Status: OK}
}

// New builds an outcome with a message.
func New(s Status, msg string) Outcome {
	return Outcome{Status: s, Message: msg}
}

// Newf builds an outcome with a formatted message.
func Newf(s Status, format string, args ...any) Outcome {
	return Outcome{Status: s, Message: fmt.Sprintf(format, args...)}
}

// Skip builds a SKIPPED outcome.
func Skip(msg string) Outcome {
	return Outcome{Status: Skipped, Message: msg}
}

// Fail builds a WRONG outcome.
func Fail(msg string) Outcome {
	return Outcome{Status: Wrong, Message: msg}
}

// Failf builds a WRONG outcome with a formatted message.
func Failf(format string, args ...any) Outcome {
	return Newf(Wrong, format, args...)
}

// OK reports whether the outcome lets execution continue.
func (o Outcome) OK() bool {
	return o.Status == OK
}

func (o Outcome) String() string {
	if o.Message == "" {
		return o.Status.String()
	}
	return o.Status.String() + ": " + o.Message
}
