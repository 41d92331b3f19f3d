// Package preflight provides readiness checks for the filesystem paths and
// external binaries the worker depends on.
//
// The "mediactl status" command renders these results; "mediactl run" calls
// RunAll before launching a worker so a missing workspace root fails fast
// instead of surfacing as a worker diagnostic.
package preflight
