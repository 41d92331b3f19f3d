package main

import (
	"bytes"
	"strings"
	"testing"

	"mediaworker/internal/deps"
)

func TestRenderStatusLinePlain(t *testing.T) {
	line := renderStatusLine("Worker", statusOK, "/usr/bin/mediaworker", false)
	if line != "  Worker:            [OK] /usr/bin/mediaworker" {
		t.Fatalf("unexpected line %q", line)
	}
	if got := renderStatusLine("History", statusInfo, "", false); !strings.HasSuffix(got, "[INFO]") {
		t.Fatalf("expected bare badge, got %q", got)
	}
}

func TestRenderStatusLineColorized(t *testing.T) {
	line := renderStatusLine("FFmpeg", statusWarn, "missing", true)
	if !strings.HasPrefix(line, ansiYellow) || !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected yellow line, got %q", line)
	}
}

func TestRenderSectionHeader(t *testing.T) {
	lines := renderSectionHeader(" Dependencies ", false)
	if len(lines) != 2 || lines[0] != "== Dependencies ==" || len(lines[1]) != len(lines[0]) {
		t.Fatalf("unexpected header %q", lines)
	}
}

func TestShouldColorizeIgnoresBuffers(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}

func TestDependencyKind(t *testing.T) {
	tests := []struct {
		status deps.Status
		want   statusKind
	}{
		{deps.Status{Available: true}, statusOK},
		{deps.Status{Optional: true}, statusWarn},
		{deps.Status{}, statusError},
	}
	for _, tc := range tests {
		if got := dependencyKind(tc.status); got != tc.want {
			t.Fatalf("dependencyKind(%+v) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestStatusCommandReportsSections(t *testing.T) {
	env := setupCLITestEnv(t, "")
	stdout, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, stdout,
		"== Configuration ==",
		"== Dependencies ==",
		"yt-dlp:",
		"[OK] yt-dlp",
		"Worker",
		"Workspace root:",
		"Last job:",
		"none recorded",
	)
}
