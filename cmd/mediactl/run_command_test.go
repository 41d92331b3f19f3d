package main

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"mediaworker/internal/services"
	"mediaworker/internal/supervisor"
	"mediaworker/internal/workspace"
)

func TestRunDownloadPrintsRecordAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t, "download-ok")
	ws, err := workspace.Create(env.cfg.Paths.WorkspaceRoot)
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	target := filepath.Join(ws.InputDir, "clip.mp4")

	stdout, stderr, err := runCLI(t, env, "run", "--json", "download", target, "https://example.com/watch?v=1")
	if err != nil {
		t.Fatalf("run download: %v (stderr %q)", err, stderr)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(stdout), &record); err != nil {
		t.Fatalf("decode output %q: %v", stdout, err)
	}
	if record["success"] != true || record["file"] != target {
		t.Fatalf("unexpected record %#v", record)
	}

	stdout, _, err = runCLI(t, env, "history", "list", "--json")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var runs []runView
	if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
		t.Fatalf("decode history %q: %v", stdout, err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(runs))
	}
	got := runs[0]
	if got.Kind != "download" || got.Status != string(supervisor.StatusSucceeded) || got.ExitCode != 0 {
		t.Fatalf("unexpected run %+v", got)
	}
	if got.Workspace != ws.Dir {
		t.Fatalf("workspace %q, want %q", got.Workspace, ws.Dir)
	}
	if got.Result["file"] != target {
		t.Fatalf("unexpected stored result %#v", got.Result)
	}

	stdout, _, err = runCLI(t, env, "history", "show", got.ID[:8])
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, stdout, "Kind:        download", "Status:      succeeded", target)
}

func TestRunDownloadFailureReturnsJobError(t *testing.T) {
	env := setupCLITestEnv(t, "download-missing")
	ws, err := workspace.Create(env.cfg.Paths.WorkspaceRoot)
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	target := filepath.Join(ws.InputDir, "clip.mp4")

	stdout, _, err := runCLI(t, env, "run", "download", target, "https://example.com/v")
	if err == nil {
		t.Fatalf("expected failure, got output %q", stdout)
	}
	var jobErr *supervisor.JobError
	if !errors.As(err, &jobErr) {
		t.Fatalf("expected JobError, got %T: %v", err, err)
	}
	if jobErr.ExitCode != 1 || services.ExitCode(err) != 1 {
		t.Fatalf("unexpected exit codes: job %d, controller %d", jobErr.ExitCode, services.ExitCode(err))
	}
	requireContains(t, jobErr.Diagnostic, "No output file found at "+target)

	stdout, _, err = runCLI(t, env, "history", "list", "--status", "failed")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, stdout, "download", "failed")
}

func TestRunRejectsUnknownKind(t *testing.T) {
	env := setupCLITestEnv(t, "")
	if _, _, err := runCLI(t, env, "run", "encode"); err == nil {
		t.Fatal("expected unknown kind error")
	}
}

func TestRunNoHistorySkipsRecording(t *testing.T) {
	env := setupCLITestEnv(t, "download-ok")
	if _, stderr, err := runCLI(t, env, "run", "--no-history", "setup"); err != nil {
		t.Fatalf("run setup: %v (stderr %q)", err, stderr)
	}
	stdout, _, err := runCLI(t, env, "history", "list")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, stdout, "No jobs recorded")
}

func TestRunKilledSetupRemovesItsWorkspace(t *testing.T) {
	env := setupCLITestEnv(t, "hang-after-setup")

	_, _, err := runCLI(t, env, "run", "--read-timeout", "300ms", "setup")
	var jobErr *supervisor.JobError
	if !errors.As(err, &jobErr) || !errors.Is(err, supervisor.ErrReadTimeout) {
		t.Fatalf("expected read timeout JobError, got %v", err)
	}

	infos, err := workspace.List(env.cfg.Paths.WorkspaceRoot)
	if err != nil {
		t.Fatalf("list workspaces: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("expected killed setup workspace to be removed, found %+v", infos)
	}
}

func TestRunSetupWorkspaceNamedAfterJobID(t *testing.T) {
	env := setupCLITestEnv(t, "download-ok")

	stdout, stderr, err := runCLI(t, env, "run", "--json", "setup")
	if err != nil {
		t.Fatalf("run setup: %v (stderr %q)", err, stderr)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(stdout), &record); err != nil {
		t.Fatalf("decode output %q: %v", stdout, err)
	}
	jobID, _ := record["job_id"].(string)
	if record["workspace"] != workspace.Path(env.cfg.Paths.WorkspaceRoot, jobID) {
		t.Fatalf("workspace %v not derived from job id %q", record["workspace"], jobID)
	}

	stdout, _, err = runCLI(t, env, "history", "show", "--json", jobID)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	var run runView
	if err := json.Unmarshal([]byte(stdout), &run); err != nil {
		t.Fatalf("decode history %q: %v", stdout, err)
	}
	if run.ID != jobID {
		t.Fatalf("history id %q, want worker job id %q", run.ID, jobID)
	}
}
