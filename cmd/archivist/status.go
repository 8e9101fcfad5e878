package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/archivist/internal/database"
	"github.com/nao1215/archivist/internal/report"
	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show crawl progress",
		Long: `Status reports how many ledger entries are pending, completed and failed,
how much the asset store holds, and which pages failed most recently.

With --domain the report also breaks the ledger down per snapshot.
With --output the report is written to a file in the selected format while
the plain text report is still printed.

Examples:
  archivist status
  archivist status --domain example.com --markdown -o status.md
  archivist status --json | jq .counts`,
		Args: cobra.NoArgs,
		RunE: runStatusCmd,
	}

	cmd.Flags().StringP("domain", "d", "", "Limit the report to one domain")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Also write the report to this file in the selected format")
	cmd.Flags().Int("failures", report.DefaultFailureLimit, "Number of failed entries to list")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
	addConfigFlags(cmd)

	return cmd
}

// runStatusCmd executes the status command.
func runStatusCmd(cmd *cobra.Command, _ []string) error {
	domain, err := cmd.Flags().GetString("domain")
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, domain)
	if err != nil {
		return err
	}

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	asMarkdown, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	failures, err := cmd.Flags().GetInt("failures")
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DBPath, database.Options{CreateIfNotExists: false})
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := report.Collect(cmd.Context(), db, cfg.Domain, report.WithFailureLimit(failures))
	if err != nil {
		return err
	}

	format := report.FormatText
	switch {
	case asJSON:
		format = report.FormatJSON
	case asMarkdown:
		format = report.FormatMarkdown
	}

	if outputPath == "" {
		_, err = report.NewWriter(format, cmd.OutOrStdout()).WriteStatus(status)
		return err
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(outputPath) //nolint:gosec // User-provided report path is intentional
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	w := report.NewMultiWriter(
		report.NewWriter(report.FormatText, cmd.OutOrStdout()),
		report.NewWriter(format, f),
	)
	if _, err := w.WriteStatus(status); err != nil {
		return err
	}
	return f.Close()
}
