// Package logging assembles structured slog loggers and formatting helpers used
// by the worker and the controller.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers that tag log lines with job IDs,
// job kinds, and correlation IDs. Worker loggers write to the diagnostic
// channel only, because stdout carries result frames. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
