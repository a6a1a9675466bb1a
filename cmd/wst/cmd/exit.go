package cmd

import (
	"errors"
	"fmt"
)

// Exit codes.
const (
	ExitSuccess      = 0 // All tests passed or were skipped
	ExitFailure      = 1 // At least one test was WRONG, GUI_WRONG or CRASHED
	ExitCommandError = 2 // Bad flags, config, paths or scenario files
)

// ExitError carries a process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func commandError(message string, err error) *ExitError {
	return &ExitError{Code: ExitCommandError, Message: message, Err: err}
}

// ExitCode maps an error returned by Execute to a process exit code.
// Errors without a code are command errors, as cobra returns for bad flags.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}
