// Package logs reads the controller log file for `mediactl logs`.
//
// Last returns the final lines of the file with bounded memory, and Follow
// polls for appended lines from an offset until its context ends. Both accept
// an optional Filter, typically JobFilter, so one job's lines can be pulled
// out of a log shared by every controller run.
package logs
