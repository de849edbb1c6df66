package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			state := "stopped"
			if status.Running {
				state = "running"
			}
			fmt.Fprintf(out, "Daemon:       %s (pid %d)\n", state, status.PID)
			fmt.Fprintf(out, "Database:     %s\n", status.DBPath)
			fmt.Fprintf(out, "Lock file:    %s\n", status.LockFilePath)
			fmt.Fprintf(out, "Active runs:  %d\n", status.ActiveRuns)
			fmt.Fprintf(out, "Subscribers:  %d\n", status.Subscribers)
			if status.Database.Error != "" {
				fmt.Fprintf(out, "DB health:    error: %s\n", status.Database.Error)
			} else if status.Database.IntegrityCheck {
				fmt.Fprintf(out, "DB health:    ok (%d documents)\n", status.Database.TotalDocuments)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show your document counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stats, err := client.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, stats)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total:      %d\n", stats.Total)
			fmt.Fprintf(out, "Processed:  %d\n", stats.Processed)
			fmt.Fprintf(out, "Processing: %d\n", stats.Processing)
			fmt.Fprintf(out, "Failed:     %d\n", stats.Failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}
