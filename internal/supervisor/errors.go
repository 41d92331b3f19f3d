package supervisor

import (
	"errors"
	"fmt"

	"mediaworker/internal/services"
)

// ErrReadTimeout marks a worker killed after producing no output on either
// channel for the configured read timeout.
var ErrReadTimeout = fmt.Errorf("%w: no worker output within read timeout", services.ErrTimeout)

// JobError reports a worker that ended without a result frame.
type JobError struct {
	Kind       string
	ExitCode   int
	Diagnostic string
	Cause      error
}

func (e *JobError) Error() string {
	msg := fmt.Sprintf("%s job failed (exit %d)", e.Kind, e.ExitCode)
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *JobError) Unwrap() []error {
	marker := services.ErrCollaborator
	if e.ExitCode == services.ExitArgument {
		marker = services.ErrArgument
	}
	if e.Cause != nil {
		return []error{marker, e.Cause}
	}
	return []error{marker}
}

// ProtocolViolation reports a worker whose exit status and frame state
// disagree, or whose frame was structurally invalid.
type ProtocolViolation struct {
	Kind     string
	ExitCode int
	Reason   string
	Cause    error
}

func (e *ProtocolViolation) Error() string {
	msg := fmt.Sprintf("%s job violated output protocol (exit %d): %s", e.Kind, e.ExitCode, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProtocolViolation) Unwrap() []error {
	if e.Cause != nil {
		return []error{services.ErrProtocol, e.Cause}
	}
	return []error{services.ErrProtocol}
}

// IsProtocolViolation reports whether err carries a ProtocolViolation.
func IsProtocolViolation(err error) bool {
	var pv *ProtocolViolation
	return errors.As(err, &pv)
}
