// Package errors provides structured error types for the harness.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error codes for harness operations.
const (
	// Config errors
	CodeConfigMissingField = "CONFIG_001" // Missing required field
	CodeConfigInvalidValue = "CONFIG_002" // Invalid value

	// Compositor process errors
	CodeProcSpawnFailed = "PROC_001" // Compositor could not be started
	CodeProcKillFailed  = "PROC_002" // Process group could not be signalled
	CodeProcLogFile     = "PROC_003" // Log file could not be created

	// Control channel errors
	CodeIPCConnect = "IPC_001" // Socket dial failed
	CodeIPCRequest = "IPC_002" // Request or reply I/O failed
	CodeIPCRemote  = "IPC_003" // Compositor answered with an error

	// Scenario errors
	CodeScenarioParse   = "SCEN_001" // Scenario file could not be decoded
	CodeScenarioInvalid = "SCEN_002" // Scenario failed validation

	// IO errors
	CodeIOFileNotFound = "IO_001" // File not found
	CodeIOReadError    = "IO_004" // Read error
	CodeIOWriteError   = "IO_005" // Write error
)

// HarnessError is the structured error type for harness infrastructure failures.
type HarnessError struct {
	Code    string         `json:"code"`              // Error code (e.g., "IPC_001")
	Message string         `json:"message"`           // Human-readable message
	Details map[string]any `json:"details,omitempty"` // Context (socket, path, method)
	Cause   error          `json:"-"`                 // Wrapped error (not serialized)
}

func (e *HarnessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *HarnessError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error.
func (e *HarnessError) WithDetail(key string, value any) *HarnessError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// MarshalJSON includes the cause message.
func (e *HarnessError) MarshalJSON() ([]byte, error) {
	type alias HarnessError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// New creates a new HarnessError.
func New(code, message string) *HarnessError {
	return &HarnessError{Code: code, Message: message}
}

// Newf creates a new HarnessError with a formatted message.
func Newf(code, format string, args ...any) *HarnessError {
	return &HarnessError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a HarnessError.
func Wrap(code, message string, err error) *HarnessError {
	return &HarnessError{Code: code, Message: message, Cause: err}
}

// --- Config Errors ---

func ConfigMissingField(field string) *HarnessError {
	return Newf(CodeConfigMissingField, "missing required config field: %s", field).
		WithDetail("field", field)
}

func ConfigInvalidValue(field string, value any, reason string) *HarnessError {
	return Newf(CodeConfigInvalidValue, "invalid config value for %s: %s", field, reason).
		WithDetail("field", field).
		WithDetail("value", value)
}

// --- Process Errors ---

// SpawnFailed reports that the compositor binary could not be started.
func SpawnFailed(executable string, err error) *HarnessError {
	return Wrap(CodeProcSpawnFailed, "failed to start compositor", err).
		WithDetail("executable", executable)
}

// KillFailed reports that a process group could not be signalled.
func KillFailed(pgid int, err error) *HarnessError {
	return Wrap(CodeProcKillFailed, "failed to kill process group", err).
		WithDetail("pgid", pgid)
}

// LogFileFailed reports that the compositor log could not be opened.
func LogFileFailed(path string, err error) *HarnessError {
	return Wrap(CodeProcLogFile, "failed to create log file", err).
		WithDetail("path", path)
}

// --- Control Channel Errors ---

// ConnectFailed reports a socket dial failure.
func ConnectFailed(socket string, err error) *HarnessError {
	return Wrap(CodeIPCConnect, "failed to connect to compositor socket", err).
		WithDetail("socket", socket)
}

// RequestFailed reports an I/O failure during a request round trip.
func RequestFailed(method string, err error) *HarnessError {
	return Wrapf(CodeIPCRequest, err, "%s request failed", method).
		WithDetail("method", method)
}

// RemoteError reports an error reply from the compositor.
func RemoteError(method, message string) *HarnessError {
	return Newf(CodeIPCRemote, "%s: compositor error: %s", method, message).
		WithDetail("method", method)
}

// --- Scenario Errors ---

func ScenarioParseError(path string, err error) *HarnessError {
	return Wrapf(CodeScenarioParse, err, "failed to parse scenario %s", path).
		WithDetail("path", path)
}

func ScenarioInvalid(path, reason string) *HarnessError {
	return Newf(CodeScenarioInvalid, "invalid scenario %s: %s", path, reason).
		WithDetail("path", path)
}

// --- IO Errors ---

func IOFileNotFound(path string) *HarnessError {
	return Newf(CodeIOFileNotFound, "file not found: %s", path).
		WithDetail("path", path)
}

func IOReadError(path string, err error) *HarnessError {
	return Wrap(CodeIOReadError, "failed to read file", err).
		WithDetail("path", path)
}

func IOWriteError(path string, err error) *HarnessError {
	return Wrap(CodeIOWriteError, "failed to write file", err).
		WithDetail("path", path)
}

// Wrapf wraps an error with a formatted HarnessError.
func Wrapf(code string, err error, format string, args ...any) *HarnessError {
	return &HarnessError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// HasCode checks if err is, or wraps, a HarnessError with the given code.
func HasCode(err error, code string) bool {
	var herr *HarnessError
	if errors.As(err, &herr) {
		return herr.Code == code
	}
	return false
}

// Code returns the error code if err is a HarnessError, empty string otherwise.
func Code(err error) string {
	var herr *HarnessError
	if errors.As(err, &herr) {
		return herr.Code
	}
	return ""
}
