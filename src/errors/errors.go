package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Code classifies agent failures.
type Code string

const (
	// Fatal: surfaced to the caller.
	ErrorLaunchFailed    Code = "LAUNCH_FAILED"
	ErrorWindowNotFound  Code = "WINDOW_NOT_FOUND"
	ErrorInjectionFailed Code = "INJECTION_FAILED"

	// Recoverable: absorbed and logged by the component that hit them.
	ErrorRegionInvalid        Code = "REGION_INVALID"
	ErrorCaptureBackendFailed Code = "CAPTURE_BACKEND_FAILED"
	ErrorRecognitionFailed    Code = "RECOGNITION_FAILED"

	ErrorInvalidRequest Code = "INVALID_REQUEST"
)

// AgentError is a coded failure with the elapsed time of the step that
// produced it.
type AgentError struct {
	Code      Code
	Message   string
	Elapsed   time.Duration
	Timestamp time.Time
	Cause     error
}

func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AgentError) Unwrap() error {
	return e.Cause
}

// ToMap converts the error into a JSON-friendly map.
func (e *AgentError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"error":      e.Message,
		"timestamp":  e.Timestamp,
	}
	if e.Elapsed > 0 {
		result["elapsed_seconds"] = e.Elapsed.Seconds()
	}
	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}
	return result
}

// CodeOf returns the code of the first AgentError in err's chain, or "".
func CodeOf(err error) Code {
	var ae *AgentError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Message returns the caller-facing message: the AgentError message when
// present, err.Error() otherwise.
func Message(err error) string {
	var ae *AgentError
	if stderrors.As(err, &ae) {
		return ae.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func newError(code Code, msg string, elapsed time.Duration, cause error) *AgentError {
	return &AgentError{
		Code:      code,
		Message:   msg,
		Elapsed:   elapsed,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewLaunchFailedError(uri string, cause error) *AgentError {
	msg := fmt.Sprintf("failed to open %s", uri)
	if cause != nil {
		msg = fmt.Sprintf("failed to open %s: %v", uri, cause)
	}
	return newError(ErrorLaunchFailed, msg, 0, cause)
}

func NewWindowNotFoundError(msg string, elapsed time.Duration, cause error) *AgentError {
	return newError(ErrorWindowNotFound, msg, elapsed, cause)
}

func NewRegionInvalidError(width, height int) *AgentError {
	return newError(ErrorRegionInvalid, fmt.Sprintf("panel region invalid (%dx%d)", width, height), 0, nil)
}

func NewCaptureBackendError(backend string, elapsed time.Duration, cause error) *AgentError {
	return newError(ErrorCaptureBackendFailed, fmt.Sprintf("%s capture produced no usable image", backend), elapsed, cause)
}

func NewRecognitionError(stage string, elapsed time.Duration, cause error) *AgentError {
	return newError(ErrorRecognitionFailed, fmt.Sprintf("recognition failed at %s", stage), elapsed, cause)
}

func NewInjectionFailedError(elapsed time.Duration, cause error) *AgentError {
	msg := "failed to type/send message"
	if cause != nil {
		msg = fmt.Sprintf("failed to type/send: %v", cause)
	}
	return newError(ErrorInjectionFailed, msg, elapsed, cause)
}

func NewInvalidRequestError(msg string) *AgentError {
	return newError(ErrorInvalidRequest, msg, 0, nil)
}
