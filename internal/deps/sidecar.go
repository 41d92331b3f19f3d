package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// WorkerBinaryName is the worker executable the controller launches by default.
const WorkerBinaryName = "mediaworker"

// ResolveWorkerBinary returns the worker executable the controller will run.
//
// An explicit configured value wins. Otherwise a worker that sits next to the
// running controller executable is preferred, falling back to PATH. The
// returned path is the best candidate even when ok is false.
func ResolveWorkerBinary(configured string) (string, bool) {
	if configured = strings.TrimSpace(configured); configured != "" {
		if resolved, err := exec.LookPath(configured); err == nil {
			return resolved, true
		}
		return configured, false
	}
	if self, err := os.Executable(); err == nil {
		if candidate, ok := sidecarCandidate(self, WorkerBinaryName); ok {
			return candidate, true
		}
	}
	if resolved, err := exec.LookPath(WorkerBinaryName); err == nil {
		return resolved, true
	}
	return WorkerBinaryName, false
}

// CheckWorker reports the availability of the worker executable.
func CheckWorker(configured string) Status {
	path, ok := ResolveWorkerBinary(configured)
	status := Status{
		Name:        "Worker",
		Command:     path,
		Description: "Runs setup, download and transcribe jobs",
		Available:   ok,
	}
	if !ok {
		status.Detail = fmt.Sprintf("binary %q not found", path)
	}
	return status
}

func sidecarCandidate(anchor, name string) (string, bool) {
	if anchor == "" {
		return "", false
	}
	if resolved, err := filepath.EvalSymlinks(anchor); err == nil {
		anchor = resolved
	}
	candidate := filepath.Join(filepath.Dir(anchor), name)
	info, err := os.Stat(candidate)
	if err != nil || !isExecutable(info) {
		return "", false
	}
	return candidate, true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
