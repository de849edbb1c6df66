package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"docflow/internal/api"
)

func newDocumentCommand(ctx *commandContext) *cobra.Command {
	documentCmd := &cobra.Command{
		Use:     "document",
		Aliases: []string{"doc"},
		Short:   "Inspect and manage documents",
	}

	documentCmd.AddCommand(newDocumentListCommand(ctx))
	documentCmd.AddCommand(newDocumentShowCommand(ctx))
	documentCmd.AddCommand(newDocumentSubmitCommand(ctx))
	documentCmd.AddCommand(newDocumentDeleteCommand(ctx))

	return documentCmd
}

func newDocumentListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your documents, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			docs, err := client.Documents(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, api.DocumentListResponse{Documents: docs})
			}

			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "No documents")
				return nil
			}

			headers := []string{"ID", "Name", "Status", "Stage", "Type", "Confidence"}
			rows := make([][]string, 0, len(docs))
			for _, doc := range docs {
				confidence := ""
				if doc.Confidence > 0 {
					confidence = fmt.Sprintf("%d%%", doc.Confidence)
				}
				rows = append(rows, []string{
					strconv.FormatInt(doc.ID, 10),
					doc.OriginalName,
					doc.Status,
					fmt.Sprintf("%d/4", doc.CurrentStage),
					doc.DocumentType,
					confidence,
				})
			}
			if isTerminal(out) {
				fmt.Fprintln(out, renderTable(headers, rows))
				return nil
			}
			for _, row := range rows {
				fmt.Fprintln(out, strings.Join(row, "\t"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func newDocumentShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a document and its stage records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			doc, err := client.Document(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, doc)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Document %d: %s\n", doc.ID, doc.OriginalName)
			fmt.Fprintf(out, "  Status:  %s (stage %d/4)\n", doc.Status, doc.CurrentStage)
			if doc.DocumentType != "" {
				fmt.Fprintf(out, "  Type:    %s (%d%% confidence)\n", doc.DocumentType, doc.Confidence)
			}
			if doc.MimeType != "" {
				fmt.Fprintf(out, "  MIME:    %s\n", doc.MimeType)
			}
			fmt.Fprintf(out, "  Size:    %d bytes\n", doc.FileSize)
			fmt.Fprintf(out, "  Created: %s\n", doc.CreatedAt)

			headers := []string{"Stage", "Name", "Status", "Started", "Completed", "Error"}
			rows := make([][]string, 0, len(doc.Stages))
			for _, record := range doc.Stages {
				rows = append(rows, []string{
					strconv.Itoa(record.Stage),
					record.StageName,
					record.Status,
					record.StartedAt,
					record.CompletedAt,
					record.ErrorMessage,
				})
			}
			fmt.Fprintln(out, renderTable(headers, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func newDocumentSubmitCommand(ctx *commandContext) *cobra.Command {
	var originalName string
	var mimeType string
	var fileSize int64
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit <filename>",
		Short: "Register a document and start its pipeline run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			doc, err := client.Submit(cmd.Context(), api.SubmitRequest{
				Filename:     args[0],
				OriginalName: originalName,
				FileSize:     fileSize,
				MimeType:     mimeType,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, doc)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted document %d (%s); processing started\n", doc.ID, doc.OriginalName)
			return nil
		},
	}

	cmd.Flags().StringVar(&originalName, "name", "", "Original display name (defaults to filename)")
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type")
	cmd.Flags().Int64Var(&fileSize, "size", 0, "File size in bytes")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func newDocumentDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document and its stage records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Document %d deleted\n", id)
			return nil
		},
	}
}

func parseDocumentID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", arg)
	}
	return id, nil
}
