package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newReprocessCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "reprocess <id> <stage>",
		Short: "Restart a document from the given stage",
		Long:  "Resets the named stage and every later stage to pending, then runs the pipeline from there.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			stage, err := parseStageNumber(args[1])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			doc, err := client.Reprocess(cmd.Context(), id, stage)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, doc)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Document %d reprocessing from stage %d\n", doc.ID, stage)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func newStageCommand(ctx *commandContext) *cobra.Command {
	stageCmd := &cobra.Command{
		Use:   "stage",
		Short: "Stage-level operations",
	}

	var jsonOutput bool
	runCmd := &cobra.Command{
		Use:   "run <id> <stage>",
		Short: "Run exactly one stage for a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			stage, err := parseStageNumber(args[1])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			record, err := client.RunStage(cmd.Context(), id, stage)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, record)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stage %d (%s) finished with status %s\n", record.Stage, record.StageName, record.Status)
			return nil
		},
	}
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")

	stageCmd.AddCommand(runCmd)
	return stageCmd
}

func parseStageNumber(arg string) (int, error) {
	stage, err := strconv.Atoi(arg)
	if err != nil || stage < 1 || stage > 4 {
		return 0, fmt.Errorf("invalid stage %q (expected 1-4)", arg)
	}
	return stage, nil
}
