// Package services defines shared utilities consumed by the worker harness,
// the parent-side supervisor and the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, job kinds, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into worker exit codes and single-line "Error:" diagnostics.
//   - A thin command executor that makes line-oriented output streaming from
//     external tools testable.
//
// Use these helpers when wiring new job logic so failure handling stays
// uniform across job kinds.
package services
