// Package workspace manages per-job scratch directories.
//
// Every setup job receives a fresh job-<uuid> directory holding input and
// output subdirectories plus an owner lock file. Workers claim the lock while
// they operate on a workspace so the controller can prune abandoned ones
// without racing a live job.
package workspace
