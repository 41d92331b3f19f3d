// Package history records finished worker jobs in SQLite.
//
// Each row captures what the controller learned from one job: kind, args,
// classified status, exit code, the decoded result record, the last
// diagnostic line, and timings. History is a convenience for operators; the
// worker protocol never reads it back.
package history
