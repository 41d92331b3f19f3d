package services_test

import (
	"context"
	"strings"
	"time"
	"sync"
	"testing"

	"mediaworker/internal/services"
)

func TestCommandExecutorSplitsStreams(t *testing.T) {
	var mu sync.Mutex
	var stdout, stderr []string

	err := services.CommandExecutor{}.Run(context.Background(), services.Command{
		Binary: "/bin/sh",
		Args:   []string{"-c", "echo out-1; echo err-1 >&2; echo out-2"},
	}, func(line string) {
		mu.Lock()
		stdout = append(stdout, line)
		mu.Unlock()
	}, func(line string) {
		mu.Lock()
		stderr = append(stderr, line)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if strings.Join(stdout, ",") != "out-1,out-2" {
		t.Fatalf("unexpected stdout lines: %v", stdout)
	}
	if strings.Join(stderr, ",") != "err-1" {
		t.Fatalf("unexpected stderr lines: %v", stderr)
	}
}

func TestCommandExecutorReportsExitFailure(t *testing.T) {
	err := services.CommandExecutor{}.Run(context.Background(), services.Command{
		Binary: "/bin/sh",
		Args:   []string{"-c", "exit 3"},
	}, nil, nil)
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "exit status 3") {
		t.Fatalf("expected exit status in error, got %v", err)
	}
}

func TestCommandExecutorUsesExplicitEnv(t *testing.T) {
	var got []string
	err := services.CommandExecutor{}.Run(context.Background(), services.Command{
		Binary: "/bin/sh",
		Args:   []string{"-c", "echo \"$MEDIAWORKER_PROBE\""},
		Env:    []string{"MEDIAWORKER_PROBE=explicit"},
	}, func(line string) { got = append(got, line) }, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(got) != 1 || got[0] != "explicit" {
		t.Fatalf("expected explicit env value, got %v", got)
	}
}

func TestCommandExecutorDrainsAfterOversizedLine(t *testing.T) {
	// A 5 MiB line overflows the scanner; the tool then keeps writing on both
	// pipes and must still run to completion.
	script := "head -c 5242880 /dev/zero | tr '\\0' a; echo; " +
		"head -c 1048576 /dev/zero | tr '\\0' b; echo; echo done >&2"

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	start := time.Now()
	var stderrLines []string
	err := services.CommandExecutor{}.Run(ctx, services.Command{
		Binary: "/bin/sh",
		Args:   []string{"-c", script},
	}, nil, func(line string) {
		stderrLines = append(stderrLines, line)
	})
	if err == nil || !strings.Contains(err.Error(), "scan output") {
		t.Fatalf("expected scan error, got %v", err)
	}
	if ctx.Err() != nil {
		t.Fatalf("executor hung until the context deadline (%s)", time.Since(start))
	}
	if len(stderrLines) != 1 || stderrLines[0] != "done" {
		t.Fatalf("expected stderr to be read to the end, got %q", stderrLines)
	}
}
