package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrArgument     = errors.New("argument error")
	ErrWorkspace    = errors.New("workspace error")
	ErrCollaborator = errors.New("collaborator error")
	ErrProtocol     = errors.New("protocol violation")
	ErrTimeout      = errors.New("timeout")
)

// Exit codes reported by worker processes.
const (
	ExitSuccess  = 0
	ExitFailure  = 1
	ExitArgument = 2
)

// DiagnosticPrefix starts every human-readable failure line on the diagnostic channel.
const DiagnosticPrefix = "Error: "

// Wrap builds an error message that includes job context while tagging it with
// the provided marker for later exit-code classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrCollaborator
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ExitCode maps a job error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrArgument):
		return ExitArgument
	default:
		return ExitFailure
	}
}

// Diagnostic renders err as a single "Error:" line without a trailing newline.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.Join(strings.Fields(err.Error()), " ")
	if msg == "" {
		msg = "unknown failure"
	}
	return DiagnosticPrefix + msg
}

// IsDiagnostic reports whether line is an "Error:" diagnostic.
func IsDiagnostic(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), strings.TrimSpace(DiagnosticPrefix))
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "job failure"
	}
	return strings.Join(parts, ": ")
}
