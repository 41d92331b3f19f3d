package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mediaworker/internal/deps"
	"mediaworker/internal/harness"
	"mediaworker/internal/history"
	"mediaworker/internal/logging"
	"mediaworker/internal/preflight"
	"mediaworker/internal/supervisor"
	"mediaworker/internal/workspace"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput  bool
		noHistory   bool
		readTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <setup|download|transcribe> [args...]",
		Short: "Run one worker job and print its result",
		Long: "Launches a worker process for the job, shows its progress, and prints the\n" +
			"decoded result. download takes <output_path> <url>; transcribe takes\n" +
			"<input_dir> [language].",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := harness.ParseKind(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
				return fmt.Errorf("preflight %s: %s", failed[0].Name, failed[0].Detail)
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			binary, ok := deps.ResolveWorkerBinary(cfg.Worker.Binary)
			if !ok {
				return fmt.Errorf("worker binary %q not found (set [worker] binary in the config)", binary)
			}

			timeout := cfg.ReadTimeout()
			if cmd.Flags().Changed("read-timeout") {
				timeout = readTimeout
			}

			view := newProgressView(cmd.ErrOrStderr(), logger)
			runner := &supervisor.Runner{
				Binary:       binary,
				BaseArgs:     ctx.workerArgs(cfg),
				ReadTimeout:  timeout,
				Logger:       logger,
				OnProgress:   view.Update,
				OnDiagnostic: view.Diagnostic,
			}
			job := supervisor.Job{
				Kind:      string(kind),
				Args:      args[1:],
				Workspace: enclosingWorkspace(args[1:]),
			}
			if kind == harness.KindSetup {
				// setup names its workspace after the job ID it is given.
				job.ID = uuid.NewString()
				job.Workspace = workspace.Path(cfg.Paths.WorkspaceRoot, job.ID)
			}

			outcome, runErr := runner.Run(cmd.Context(), job)
			view.Finish()

			if !noHistory {
				recordOutcome(ctx, logger, job, outcome, runErr)
			}
			if runErr != nil {
				return runErr
			}
			if jsonOutput {
				return writeJSON(cmd, outcome.Record)
			}
			printRecord(cmd.OutOrStdout(), outcome.Record)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result record as JSON")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record the job in history")
	cmd.Flags().DurationVar(&readTimeout, "read-timeout", 0, "Kill the worker after this long without output (overrides config; 0 disables)")
	return cmd
}

// enclosingWorkspace returns the job workspace holding the first job argument,
// so a killed worker's partial output can be discarded.
func enclosingWorkspace(args []string) string {
	if len(args) == 0 {
		return ""
	}
	dir, ok := workspace.Locate(args[0])
	if !ok {
		return ""
	}
	return dir
}

func recordOutcome(ctx *commandContext, logger *slog.Logger, job supervisor.Job, outcome supervisor.Outcome, runErr error) {
	run := history.Run{
		ID:         outcome.JobID,
		Kind:       job.Kind,
		Args:       job.Args,
		Status:     string(outcome.Status),
		ExitCode:   outcome.ExitCode,
		Result:     outcome.Record,
		Diagnostic: outcome.LastDiagnostic(),
		Workspace:  job.Workspace,
		TimedOut:   outcome.TimedOut,
		Killed:     outcome.Killed,
		NoiseLines: outcome.NoiseLines,
		Samples:    outcome.Samples,
		StartedAt:  outcome.StartedAt,
		FinishedAt: outcome.FinishedAt,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	err := ctx.withHistory(func(store *history.Store) error {
		return store.Record(context.Background(), run)
	})
	if err != nil {
		logger.Warn("record job history failed", logging.String("job_id", run.ID), logging.Error(err))
	}
}

func printRecord(w io.Writer, record map[string]any) {
	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "%s: %v\n", key, record[key])
	}
}
