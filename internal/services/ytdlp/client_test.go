package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediaworker/internal/progress"
	"mediaworker/internal/services"
)

type stubExecutor struct {
	stdout []string
	stderr []string
	err    error
	block  bool
	calls  []services.Command
	write  bool
}

func (s *stubExecutor) Run(ctx context.Context, cmd services.Command, onStdout, onStderr func(string)) error {
	s.calls = append(s.calls, cmd)
	for _, line := range s.stdout {
		onStdout(line)
	}
	for _, line := range s.stderr {
		onStderr(line)
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.write {
		out := cmd.Args[indexOf(cmd.Args, "-o")+1]
		if err := os.WriteFile(strings.ReplaceAll(out, "%%", "%"), []byte("video"), 0o644); err != nil {
			return err
		}
	}
	return s.err
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}

func TestDownloadForwardsProgressTicks(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "video.mp4")
	exec := &stubExecutor{
		write: true,
		stdout: []string{
			"MEDIAWORKER_TICK 1048576 4194304 NA 2097152.0 1.5 0.5",
			"[download] chatter",
			"MEDIAWORKER_TICK 2048 NA 8192.0 NA NA NA",
		},
	}
	client := New(Options{}, WithExecutor(exec))

	var ticks []progress.Tick
	if err := client.Download(context.Background(), " https://example.com/v ", dest, func(tick progress.Tick) {
		ticks = append(ticks, tick)
	}); err != nil {
		t.Fatalf("Download returned error: %v", err)
	}

	if len(ticks) != 2 {
		t.Fatalf("expected 2 ticks, got %d", len(ticks))
	}
	first := ticks[0]
	if first.Downloaded != 1048576 || first.Total != 4194304 || first.Speed != 2097152 {
		t.Fatalf("unexpected first tick: %+v", first)
	}
	if first.ETA != 1500*time.Millisecond || first.Elapsed != 500*time.Millisecond {
		t.Fatalf("unexpected durations: %+v", first)
	}
	second := ticks[1]
	if second.Total != 8192 || second.Speed != 0 || second.ETA != 0 {
		t.Fatalf("expected estimate fallback and unknown fields, got %+v", second)
	}

	args := exec.calls[0].Args
	if exec.calls[0].Binary != DefaultBinary {
		t.Fatalf("unexpected binary %q", exec.calls[0].Binary)
	}
	if args[indexOf(args, "-f")+1] != "best" {
		t.Fatalf("expected best format, got %v", args)
	}
	if args[len(args)-1] != "https://example.com/v" || args[len(args)-2] != "--" {
		t.Fatalf("expected url after --, got %v", args)
	}
	if indexOf(args, "--quiet") < 0 || indexOf(args, "--progress-template") < 0 {
		t.Fatalf("expected quiet progress template args, got %v", args)
	}
}

func TestDownloadEscapesTemplateCharacters(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "100%(title)s.mp4")
	exec := &stubExecutor{write: true}
	client := New(Options{Binary: "/opt/yt-dlp", Format: "mp4"}, WithExecutor(exec))
	if err := client.Download(context.Background(), "https://example.com/v", dest, nil); err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	args := exec.calls[0].Args
	if got := args[indexOf(args, "-o")+1]; !strings.HasSuffix(got, "100%%(title)s.mp4") {
		t.Fatalf("expected escaped output template, got %q", got)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected literal destination to exist: %v", err)
	}
}

func TestDownloadReportsToolError(t *testing.T) {
	exec := &stubExecutor{
		stderr: []string{"ERROR: [generic] Unsupported URL: https://example.com/v"},
		err:    errors.New("wait yt-dlp: exit status 1"),
	}
	client := New(Options{}, WithExecutor(exec))
	err := client.Download(context.Background(), "https://example.com/v", filepath.Join(t.TempDir(), "v.mp4"), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Unsupported URL") {
		t.Fatalf("expected tool error detail, got %v", err)
	}
}

func TestDownloadTimeout(t *testing.T) {
	client := New(Options{Timeout: 20 * time.Millisecond}, WithExecutor(&stubExecutor{block: true}))
	err := client.Download(context.Background(), "https://example.com/v", filepath.Join(t.TempDir(), "v.mp4"), nil)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestDownloadValidatesArguments(t *testing.T) {
	client := New(Options{}, WithExecutor(&stubExecutor{}))
	if err := client.Download(context.Background(), "", "/tmp/x.mp4", nil); err == nil {
		t.Fatal("expected error for empty url")
	}
	if err := client.Download(context.Background(), "https://example.com", " ", nil); err == nil {
		t.Fatal("expected error for empty output path")
	}
}

func TestParseTickRejectsOtherLines(t *testing.T) {
	for _, line := range []string{
		"",
		"[download]  10.0% of 5MiB",
		"MEDIAWORKER_TICK 1 2 3",
		"PROGRESS:10.0|N/A|00:00|00:01",
	} {
		if _, ok := parseTick(line); ok {
			t.Fatalf("expected %q to be ignored", line)
		}
	}
}
