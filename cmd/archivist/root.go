package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for archivist.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archivist",
		Short: "Mirror a domain's history from the Wayback Machine",
		Long: `archivist downloads every archived snapshot of a domain from the
Wayback Machine, page by page, together with the images, stylesheets and
scripts each page references. Progress is kept in a SQLite ledger so an
interrupted crawl resumes where it stopped.

Requests are spaced out and, by default, only made during an off-peak window
to stay polite to the archive. Once pages are on disk, "reconstruct" rewrites
their links so the site can be browsed offline.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewReconstructCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewRequeueCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
