package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediaworker/internal/config"
	"mediaworker/internal/harness"
	"mediaworker/internal/progress"
	"mediaworker/internal/services"
	"mediaworker/internal/testsupport"
)

const workerModeEnv = "MEDIACTL_TEST_WORKER"

// TestMain lets the test binary stand in for the worker executable.
func TestMain(m *testing.M) {
	if mode := os.Getenv(workerModeEnv); mode != "" {
		os.Exit(runFakeWorker(mode, os.Args[1:]))
	}
	os.Exit(m.Run())
}

type fakeDownloader struct {
	write bool
}

func (d fakeDownloader) Download(_ context.Context, _ string, outputPath string, onProgress func(progress.Tick)) error {
	onProgress(progress.Tick{Downloaded: 512, Total: 1024, Speed: 1024, ETA: time.Second, Elapsed: time.Second})
	onProgress(progress.Tick{Downloaded: 1024, Total: 1024, Speed: 1024, Elapsed: 2 * time.Second})
	if d.write {
		return os.WriteFile(outputPath, []byte("video"), 0o644)
	}
	return nil
}

// runFakeWorker accepts the same global flags the real worker does and runs
// the harness with an in-process downloader.
func runFakeWorker(mode string, args []string) int {
	var (
		configPath string
		rest       []string
	)
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i < len(args) {
				configPath = args[i]
			}
		case "--chunk-size":
			i++
		default:
			rest = append(rest, args[i])
		}
	}
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "Error: a job kind is required")
		return services.ExitArgument
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, services.Diagnostic(err))
		return services.ExitArgument
	}
	kind, err := harness.ParseKind(rest[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, services.Diagnostic(err))
		return services.ExitArgument
	}
	h := harness.New(harness.Config{WorkspaceRoot: cfg.Paths.WorkspaceRoot}, harness.Dependencies{
		Downloader: fakeDownloader{write: mode == "download-ok"},
	})
	ctx := services.WithJobID(context.Background(), strings.TrimSpace(os.Getenv(services.JobIDEnv)))
	if mode == "hang-after-setup" {
		status := h.Run(ctx, kind, rest[1:])
		if status == harness.ExitSuccess {
			time.Sleep(time.Minute)
		}
		return int(status)
	}
	return int(h.Run(ctx, kind, rest[1:]))
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, workerMode string) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	if workerMode != "" {
		t.Setenv(workerModeEnv, workerMode)
	}
	cfg := testsupport.NewConfig(t,
		testsupport.WithWorkerBinary(os.Args[0]),
		testsupport.WithReadTimeout(30),
		testsupport.WithStubbedBinaries(),
	)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
workspace_root = %q
log_dir = %q
state_dir = %q

[worker]
binary = %q
chunk_size = 64
read_timeout = %d

[logging]
format = "json"
level = "warn"
`, cfg.Paths.WorkspaceRoot, cfg.Paths.LogDir, cfg.Paths.StateDir, cfg.Worker.Binary, cfg.Worker.ReadTimeout)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(output, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}
