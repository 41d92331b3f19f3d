package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mediaworker/internal/config"
	"mediaworker/internal/workspace"
)

func newWorkspaceCommand(ctx *commandContext) *cobra.Command {
	workspaceCmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage job workspaces",
	}

	workspaceCmd.AddCommand(newWorkspaceListCommand(ctx))
	workspaceCmd.AddCommand(newWorkspacePruneCommand(ctx))
	workspaceCmd.AddCommand(newWorkspaceRemoveCommand(ctx))

	return workspaceCmd
}

func newWorkspaceListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List job workspaces, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			infos, err := workspace.List(cfg.Paths.WorkspaceRoot)
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No workspaces")
				return nil
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					shortID(info.ID),
					info.Modified.Local().Format("2006-01-02 15:04:05"),
					yesNo(info.Locked),
					info.Dir,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Modified", "In use", "Path"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newWorkspacePruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove idle workspaces older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			removed, pruneErr := workspace.Prune(cfg.Paths.WorkspaceRoot, olderThan)
			out := cmd.OutOrStdout()
			for _, dir := range removed {
				fmt.Fprintf(out, "Removed %s\n", dir)
			}
			fmt.Fprintf(out, "Pruned %d workspace(s)\n", len(removed))
			return pruneErr
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "Only remove workspaces not modified for this long")
	return cmd
}

func newWorkspaceRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <dir>",
		Short: "Remove one idle workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			ws, err := workspace.Open(dir)
			if err != nil {
				return err
			}
			if err := ws.Claim(); err != nil {
				if errors.Is(err, workspace.ErrBusy) {
					return fmt.Errorf("workspace %s is in use by a running worker", dir)
				}
				return err
			}
			defer ws.Release()
			if err := workspace.Remove(ws.Dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", ws.Dir)
			return nil
		},
	}
}
