package main

import (
	"fmt"
	"time"

	"github.com/nao1215/archivist/internal/database"
	"github.com/spf13/cobra"
)

// NewRequeueCmd creates the requeue command.
func NewRequeueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Move failed entries back to pending",
		Long: `Requeue marks failed ledger entries as pending again so the next crawl
retries them. Failures are never retried automatically; a page that is
missing from the archive would otherwise be requested forever.

Examples:
  # Retry every failure
  archivist requeue

  # Retry only pages that failed more than a day ago
  archivist requeue --older-than 24h`,
		Args: cobra.NoArgs,
		RunE: runRequeueCmd,
	}

	cmd.Flags().Duration("older-than", 0, "Only requeue entries that failed longer ago than this")
	addConfigFlags(cmd)

	return cmd
}

// runRequeueCmd executes the requeue command.
func runRequeueCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, "")
	if err != nil {
		return err
	}
	olderThan, err := cmd.Flags().GetDuration("older-than")
	if err != nil {
		return err
	}
	if olderThan < 0 {
		return fmt.Errorf("--older-than must not be negative: %s", olderThan)
	}

	db, err := database.Open(cfg.DBPath, database.Options{CreateIfNotExists: false})
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.RequeueFailed(cmd.Context(), olderThan)
	if err != nil {
		return err
	}

	if olderThan > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed entries older than %s\n", n, olderThan.Round(time.Second))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed entries\n", n)
	}
	return nil
}
