package main

import (
	"errors"

	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/profile"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/provision"
)

// Process exit codes.
const (
	exitOK          = 0
	exitUnexpected  = 1
	exitValidation  = 2
	exitUnknownOS   = 3
	exitToolFailure = 4
	exitConfig      = 5
)

type userError struct {
	msg  string
	hint string
	err  error
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Hint() string  { return e.hint }
func (e *userError) Unwrap() error { return e.err }

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var (
		toolErr *provision.ExternalToolFailure
		cfgErr  *provision.ConfigurationError
		valErrs provision.ValidationErrors
	)
	switch {
	case errors.As(err, &toolErr):
		return exitToolFailure
	case errors.As(err, &valErrs):
		return exitValidation
	case errors.Is(err, profile.ErrNotFound):
		return exitUnknownOS
	case errors.As(err, &cfgErr):
		return exitConfig
	}
	return exitUnexpected
}

// hintFor suggests a next step for well-known failures.
func hintFor(err error) string {
	var ue *userError
	if errors.As(err, &ue) && ue.hint != "" {
		return ue.hint
	}
	var toolErr *provision.ExternalToolFailure
	var timeout *provision.TimeoutError
	switch {
	case errors.As(err, &timeout):
		return "raise step_timeout (KVMBOOT_STEP_TIMEOUT) or check network speed"
	case errors.As(err, &toolErr):
		return "re-run with --debug and inspect tmp/kvmbootstrap-debug.log"
	case errors.Is(err, profile.ErrNotFound):
		return "kvmbootstrap profiles"
	case exitCode(err) == exitConfig:
		return "kvmbootstrap check"
	}
	return ""
}

func configError(reason string, err error) *provision.ConfigurationError {
	return &provision.ConfigurationError{Reason: reason, Err: err}
}
