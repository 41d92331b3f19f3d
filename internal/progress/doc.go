// Package progress encodes and parses the PROGRESS micro-format written to a
// worker's diagnostic channel:
//
//	PROGRESS:<pct>|<speed>|<eta>|<elapsed>
//
// Percent carries one decimal place, speed is "%.2fMiB/s" or "N/A", and both
// clocks are zero-padded mm:ss. Ticks with an unknown total are skipped rather
// than rendered. Samples are transient and never substitute for a result frame.
package progress
