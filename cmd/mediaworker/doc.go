// Command mediaworker runs a single media job in its own process.
//
// The job kind is the first argument: setup, download or transcribe. On
// success exactly one framed JSON result is written to stdout and the process
// exits 0. Progress, logs and the final "Error:" line go to stderr. Exit 2
// means the invocation itself was unusable; exit 1 means the job ran and
// failed.
package main
