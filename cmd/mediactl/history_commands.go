package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediaworker/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded worker jobs",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var (
		opts       history.ListOptions
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				runs, err := store.List(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if jsonOutput {
					views := make([]runView, 0, len(runs))
					for _, run := range runs {
						views = append(views, newRunView(run))
					}
					return writeJSON(cmd, views)
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Kind", "Status", "Exit", "Started", "Duration", "Detail"},
					buildHistoryRows(runs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "Only show jobs of this kind")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Only show jobs with this status (succeeded, failed, protocol_violation)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of jobs to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail (a unique ID prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				run, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, newRunView(run))
				}
				return printRunDetail(cmd.OutOrStdout(), run)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete recorded jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				var cutoff time.Time
				if olderThan > 0 {
					cutoff = time.Now().Add(-olderThan)
				}
				removed, err := store.Clear(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s) from history\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only delete jobs that finished longer ago than this (default: all)")
	return cmd
}

// runView is the JSON shape of a history entry.
type runView struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Args       []string       `json:"args"`
	Status     string         `json:"status"`
	ExitCode   int            `json:"exit_code"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	Diagnostic string         `json:"diagnostic,omitempty"`
	Workspace  string         `json:"workspace,omitempty"`
	TimedOut   bool           `json:"timed_out"`
	Killed     bool           `json:"killed"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at"`
	DurationMS int64          `json:"duration_ms"`
}

func newRunView(run *history.Run) runView {
	return runView{
		ID:         run.ID,
		Kind:       run.Kind,
		Args:       run.Args,
		Status:     run.Status,
		ExitCode:   run.ExitCode,
		Result:     run.Result,
		Error:      run.Error,
		Diagnostic: run.Diagnostic,
		Workspace:  run.Workspace,
		TimedOut:   run.TimedOut,
		Killed:     run.Killed,
		StartedAt:  run.StartedAt.Format(time.RFC3339),
		FinishedAt: run.FinishedAt.Format(time.RFC3339),
		DurationMS: run.Duration().Milliseconds(),
	}
}

func buildHistoryRows(runs []*history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			run.Kind,
			run.Status,
			strconv.Itoa(run.ExitCode),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Duration().Round(100 * time.Millisecond).String(),
			truncate(runDetail(run), 60),
		})
	}
	return rows
}

func runDetail(run *history.Run) string {
	switch {
	case run.TimedOut:
		return "timed out"
	case run.Killed:
		return "killed"
	case run.Diagnostic != "":
		return run.Diagnostic
	case run.Error != "":
		return run.Error
	case run.Result != nil:
		for _, key := range []string{"file", "text_output_dir", "input_dir"} {
			if value, ok := run.Result[key].(string); ok && value != "" {
				return value
			}
		}
	}
	return ""
}

func printRunDetail(w io.Writer, run *history.Run) error {
	fmt.Fprintf(w, "ID:          %s\n", run.ID)
	fmt.Fprintf(w, "Kind:        %s\n", run.Kind)
	fmt.Fprintf(w, "Args:        %s\n", strings.Join(run.Args, " "))
	fmt.Fprintf(w, "Status:      %s\n", run.Status)
	fmt.Fprintf(w, "Exit code:   %d\n", run.ExitCode)
	fmt.Fprintf(w, "Started:     %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "Duration:    %s\n", run.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "Timed out:   %s\n", yesNo(run.TimedOut))
	fmt.Fprintf(w, "Killed:      %s\n", yesNo(run.Killed))
	if run.Workspace != "" {
		fmt.Fprintf(w, "Workspace:   %s\n", run.Workspace)
	}
	if run.Diagnostic != "" {
		fmt.Fprintf(w, "Diagnostic:  %s\n", run.Diagnostic)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "Error:       %s\n", run.Error)
	}
	if run.Result != nil {
		data, err := json.MarshalIndent(run.Result, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fmt.Fprintf(w, "Result:\n%s\n", data)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
