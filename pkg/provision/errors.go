package provision

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validation sentinels, matched with errors.Is on any validation failure.
var (
	ErrInvalidName   = errors.New("invalid name")
	ErrInvalidNumber = errors.New("invalid number")
	ErrInvalidSize   = errors.New("invalid size")
)

// ValidationError reports one malformed request field.
type ValidationError struct {
	Field  string
	Reason string
	Err    error // one of the validation sentinels
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ValidationErrors carries every violation found in a request.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

func (e ValidationErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i, v := range e {
		out[i] = v
	}
	return out
}

// ExternalToolFailure reports a delegated step that failed. Earlier steps
// are not rolled back.
type ExternalToolFailure struct {
	Step  string
	Cause error
}

func (e *ExternalToolFailure) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Cause)
}

func (e *ExternalToolFailure) Unwrap() error { return e.Cause }

// TimeoutError is the cause of an ExternalToolFailure whose step outlived
// the per-step timeout.
type TimeoutError struct {
	Step  string
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("step %q timed out after %s", e.Step, e.After)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ConfigurationError reports a host or settings problem detected before
// any step runs.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
