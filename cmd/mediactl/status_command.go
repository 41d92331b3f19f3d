package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"mediaworker/internal/config"
	"mediaworker/internal/deps"
	"mediaworker/internal/history"
	"mediaworker/internal/preflight"
	"mediaworker/internal/supervisor"
)

const staleWorkspaceAge = 24 * time.Hour

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show dependency, directory and history status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			writeLines(out, renderSectionHeader("Configuration", colorize))
			configDetail := ctx.configPath
			if !ctx.configExists {
				configDetail += " (defaults)"
			}
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, configDetail, colorize))
			fmt.Fprintln(out)

			writeLines(out, renderSectionHeader("Dependencies", colorize))
			for _, status := range preflight.CheckSystemDeps(cfg) {
				fmt.Fprintln(out, renderStatusLine(status.Name, dependencyKind(status), dependencyDetail(status), colorize))
			}
			fmt.Fprintln(out)

			writeLines(out, renderSectionHeader("Directories", colorize))
			for _, result := range preflight.RunAll(cfg) {
				fmt.Fprintln(out, renderStatusLine(result.Name, checkKind(result), result.Detail, colorize))
			}
			usage := preflight.CheckWorkspaceUsage(cfg.Paths.WorkspaceRoot, staleWorkspaceAge)
			fmt.Fprintln(out, renderStatusLine(usage.Name, checkKind(usage), usage.Detail, colorize))
			fmt.Fprintln(out)

			writeLines(out, renderSectionHeader("History", colorize))
			label, kind, detail := lastRunStatus(cmd, cfg)
			fmt.Fprintln(out, renderStatusLine(label, kind, detail, colorize))
			return nil
		},
	}
}

func writeLines(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

func dependencyKind(status deps.Status) statusKind {
	switch {
	case status.Available:
		return statusOK
	case status.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func dependencyDetail(status deps.Status) string {
	if status.Available {
		return status.Command
	}
	if status.Detail != "" {
		return status.Detail
	}
	return status.Description
}

func checkKind(result preflight.Result) statusKind {
	if result.Passed {
		return statusOK
	}
	return statusWarn
}

func lastRunStatus(cmd *cobra.Command, cfg *config.Config) (string, statusKind, string) {
	store, err := history.Open(cfg)
	if err != nil {
		return "Last job", statusError, err.Error()
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), history.ListOptions{Limit: 1})
	if err != nil {
		return "Last job", statusError, err.Error()
	}
	if len(runs) == 0 {
		return "Last job", statusInfo, "none recorded"
	}
	run := runs[0]
	detail := fmt.Sprintf("%s %s %s (%s ago)", shortID(run.ID), run.Kind, run.Status,
		time.Since(run.FinishedAt).Round(time.Second))
	kind := statusOK
	if run.Status != string(supervisor.StatusSucceeded) {
		kind = statusWarn
	}
	return "Last job", kind, detail
}
