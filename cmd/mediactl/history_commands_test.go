package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"mediaworker/internal/history"
	"mediaworker/internal/testsupport"
)

func seedHistory(t *testing.T, env *cliTestEnv, runs ...history.Run) {
	t.Helper()
	store := testsupport.MustOpenHistory(t, env.cfg)
	for _, run := range runs {
		if err := store.Record(context.Background(), run); err != nil {
			t.Fatalf("Record %s: %v", run.ID, err)
		}
	}
}

func TestHistoryListFiltersByKind(t *testing.T) {
	env := setupCLITestEnv(t, "")
	now := time.Now()
	seedHistory(t, env,
		history.Run{ID: "aaaa1111-0000", Kind: "download", Status: "succeeded", StartedAt: now.Add(-time.Minute), FinishedAt: now,
			Result: map[string]any{"file": "/videos/clip.mp4"}},
		history.Run{ID: "bbbb2222-0000", Kind: "transcribe", Status: "failed", ExitCode: 1, Diagnostic: "Error: transcribe: model missing",
			StartedAt: now, FinishedAt: now.Add(time.Second)},
	)

	stdout, _, err := runCLI(t, env, "history", "list", "--kind", "download")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, stdout, "aaaa1111", "/videos/clip.mp4")
	if strings.Contains(stdout, "bbbb2222") {
		t.Fatalf("unexpected transcribe row in:\n%s", stdout)
	}
}

func TestHistoryClearOlderThan(t *testing.T) {
	env := setupCLITestEnv(t, "")
	now := time.Now()
	seedHistory(t, env,
		history.Run{ID: "old", Kind: "setup", Status: "succeeded", StartedAt: now.Add(-72 * time.Hour), FinishedAt: now.Add(-72 * time.Hour)},
		history.Run{ID: "new", Kind: "setup", Status: "succeeded", StartedAt: now, FinishedAt: now},
	)

	stdout, _, err := runCLI(t, env, "history", "clear", "--older-than", "24h")
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	requireContains(t, stdout, "Removed 1 job(s)")

	if _, _, err := runCLI(t, env, "history", "show", "old"); err == nil {
		t.Fatal("expected old run to be gone")
	}
}

func TestRunDetailPrefersFailureReason(t *testing.T) {
	tests := []struct {
		run  history.Run
		want string
	}{
		{history.Run{TimedOut: true, Diagnostic: "x"}, "timed out"},
		{history.Run{Killed: true}, "killed"},
		{history.Run{Diagnostic: "Error: boom", Error: "exit 1"}, "Error: boom"},
		{history.Run{Result: map[string]any{"text_output_dir": "/ws/out"}}, "/ws/out"},
		{history.Run{}, ""},
	}
	for _, tc := range tests {
		if got := runDetail(&tc.run); got != tc.want {
			t.Fatalf("runDetail(%+v) = %q, want %q", tc.run, got, tc.want)
		}
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	if got := truncate("héllo wörld", 6); got != "héllo…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
}
