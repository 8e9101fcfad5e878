package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/nao1215/archivist/internal/config"
	"github.com/nao1215/archivist/internal/log"
	"github.com/nao1215/archivist/internal/rewriter"
	"github.com/spf13/cobra"
)

// NewReconstructCmd creates the reconstruct command.
func NewReconstructCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconstruct",
		Short: "Rewrite archived pages for offline browsing",
		Long: `Reconstruct copies every captured page of a domain into a _viewable tree
next to the snapshot, rewriting archive URLs and absolute links so they
resolve inside the local copy. It then writes <output>/<domain>/index.html,
a timeline of all snapshots grouped by year.

The captured pages are never modified, so reconstruct can be run again after
more pages have been crawled.

With --serve the archive root is served over HTTP after reconstruction until
the command is interrupted.

Examples:
  archivist reconstruct --domain example.com
  archivist reconstruct --domain example.com --output /srv/archive --jobs 8
  archivist reconstruct --domain example.com --serve localhost:8000`,
		Args: cobra.NoArgs,
		RunE: runReconstructCmd,
	}

	cmd.Flags().StringP("domain", "d", "", "Domain to reconstruct (required)")
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir, "Archive root directory")
	cmd.Flags().IntP("jobs", "j", config.DefaultJobs, "Snapshots processed in parallel")
	cmd.Flags().String("serve", "", "Serve the archive on this address after reconstruction (e.g. localhost:8000)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .archivist in current or home directory)")

	return cmd
}

// runReconstructCmd executes the reconstruct command.
func runReconstructCmd(cmd *cobra.Command, _ []string) error {
	domain, err := cmd.Flags().GetString("domain")
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, domain)
	if err != nil {
		return err
	}
	if err := setString(cmd, "output", &cfg.OutputDir); err != nil {
		return err
	}
	if err := setInt(cmd, "jobs", &cfg.Jobs); err != nil {
		return err
	}
	if err := cfg.ValidateReconstruct(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	serveAddr, err := cmd.Flags().GetString("serve")
	if err != nil {
		return err
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	if err := runReconstruct(ctx, cmd.OutOrStdout(), cfg, logger); err != nil {
		return err
	}
	if serveAddr == "" {
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at http://%s/%s/ (Ctrl+C to stop)\n", cfg.OutputDir, serveAddr, cfg.Domain)
	if err := rewriter.Serve(ctx, serveAddr, cfg.OutputDir, cfg.Domain, logger); err != nil {
		return fmt.Errorf("archive server failed: %w", err)
	}
	return nil
}

// runReconstruct rewrites all snapshots of cfg.Domain and prints a summary.
func runReconstruct(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) error {
	r := rewriter.NewReconstructor(cfg.OutputDir, cfg.Domain,
		rewriter.WithJobs(cfg.Jobs),
		rewriter.WithLogger(logger),
	)

	stats, err := r.Run(ctx)
	if err != nil {
		return fmt.Errorf("reconstruction failed: %w", err)
	}

	fmt.Fprintf(out, "Reconstructed %d snapshots of %s\n", stats.Snapshots, cfg.Domain)
	fmt.Fprintf(out, "  files rewritten: %d\n", stats.FilesRewritten)
	fmt.Fprintf(out, "  URLs rewritten:  %d\n", stats.URLsRewritten)
	if stats.FilesFailed > 0 {
		fmt.Fprintf(out, "  files failed:    %d (see log)\n", stats.FilesFailed)
	}
	fmt.Fprintf(out, "\nOpen %s in a browser.\n", filepath.Join(r.DomainDir(), rewriter.TimelineFile))
	return nil
}
