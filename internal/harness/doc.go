// Package harness runs one worker job per process.
//
// A job writes at most one result frame to stdout and reports progress and
// diagnostics on stderr. Run enforces the completion contract: exit status 0
// if and only if a frame was emitted, and every failure ends with a single
// "Error:" line. Collaborator errors and panics are caught here and mapped to
// exit codes; nothing is retried.
package harness
