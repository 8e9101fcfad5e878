package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nao1215/archivist/internal/assetstore"
	"github.com/nao1215/archivist/internal/config"
	"github.com/nao1215/archivist/internal/crawler"
	"github.com/nao1215/archivist/internal/database"
	"github.com/nao1215/archivist/internal/log"
	"github.com/nao1215/archivist/internal/metrics"
	"github.com/nao1215/archivist/internal/model"
	"github.com/nao1215/archivist/internal/pipeline"
	"github.com/nao1215/archivist/internal/report"
	"github.com/nao1215/archivist/internal/scheduler"
	"github.com/nao1215/archivist/internal/wayback"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Download a domain's snapshots from the Wayback Machine",
		Long: `Crawl seeds the ledger with the domain's snapshots and downloads them page by
page. Every page is saved under <output>/<domain>/<timestamp>/ together with
its images, stylesheets and scripts, and every same-domain link it contains
is queued for the same snapshot.

Seeds come from the CDX capture index of the domain's home page, filtered by
--from and --to, or from a snapshot list file ("timestamp|url" per line).

The crawl can be stopped at any time with Ctrl-C. Running the same command
again resumes with the pages still pending.

Examples:
  # Archive everything captured between 1998 and 2004
  archivist crawl --domain example.com --from 1998 --to 2004

  # Seed from a hand-made list and crawl around the clock
  archivist crawl --domain example.com --snapshots list.txt --no-off-peak

  # Crawl at most 100 pages and expose Prometheus metrics
  archivist crawl --domain example.com --max-items 100 --metrics-addr :9090

Snapshot list example:
  # comments and blank lines are ignored
  19990125093012|http://www.example.com/
  20010403120000|http://www.example.com/`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("domain", "d", "", "Domain to archive (required)")
	cmd.Flags().String("from", "", "First snapshot date to seed (YYYY, YYYYMM or YYYYMMDD)")
	cmd.Flags().String("to", "", "Last snapshot date to seed (YYYY, YYYYMM or YYYYMMDD)")
	cmd.Flags().StringP("snapshots", "s", "", "Seed from a snapshot list file instead of the CDX index")
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir, "Archive root directory")

	cmd.Flags().Duration("min-delay", config.DefaultMinDelay, "Minimum pause between pages")
	cmd.Flags().Duration("max-delay", config.DefaultMaxDelay, "Maximum pause between pages")
	cmd.Flags().Duration("asset-delay", config.DefaultAssetDelay, "Pause between asset downloads")
	cmd.Flags().String("off-peak-start", config.DefaultOffPeakStart, "Start of the daily crawl window (HH:MM, local time)")
	cmd.Flags().String("off-peak-end", config.DefaultOffPeakEnd, "End of the daily crawl window (HH:MM, local time)")
	cmd.Flags().Bool("no-off-peak", false, "Crawl at any time of day")

	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	cmd.Flags().Int("retries", config.DefaultMaxRetries, "Attempts per URL")
	cmd.Flags().Duration("retry-delay", config.DefaultRetryDelay, "Base delay of the linear backoff between attempts")
	cmd.Flags().Duration("retry-failed-after", 0, "Requeue entries that failed longer ago than this before crawling")
	cmd.Flags().Int("max-items", 0, "Stop after this many pages (0: no limit)")
	cmd.Flags().String("hash", "", "Asset content hash: sha256 or blake2b (fixed per database)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent, "User-Agent header")
	cmd.Flags().StringSlice("ignore", nil, "URL path globs never queued (repeatable)")
	cmd.Flags().StringSlice("follow", nil, "Only queue URL paths matching these globs (repeatable)")

	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().String("env-file", config.DefaultEnvFile, "File holding IA_LOGGED_IN_USER and IA_LOGGED_IN_SIG")
	cmd.Flags().String("archive-url", wayback.DefaultBaseURL, "Replay endpoint")
	cmd.Flags().String("cdx-url", wayback.DefaultCDXURL, "CDX capture index endpoint")
	_ = cmd.Flags().MarkHidden("archive-url")
	_ = cmd.Flags().MarkHidden("cdx-url")

	addConfigFlags(cmd)
	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildCrawlConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateCrawl(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return runCrawl(ctx, cmd.OutOrStdout(), cfg, logger)
}

// buildCrawlConfig merges defaults, the configuration file, the .env file
// and the command-line flags, in that order.
func buildCrawlConfig(cmd *cobra.Command) (*config.Config, error) {
	domain, err := cmd.Flags().GetString("domain")
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(cmd, domain)
	if err != nil {
		return nil, err
	}

	for name, dst := range map[string]*string{
		"from":           &cfg.From,
		"to":             &cfg.To,
		"snapshots":      &cfg.SnapshotsFile,
		"output":         &cfg.OutputDir,
		"off-peak-start": &cfg.OffPeakStart,
		"off-peak-end":   &cfg.OffPeakEnd,
		"hash":           &cfg.HashAlgorithm,
		"user-agent":     &cfg.UserAgent,
		"metrics-addr":   &cfg.MetricsAddr,
		"env-file":       &cfg.EnvFile,
		"archive-url":    &cfg.ArchiveURL,
		"cdx-url":        &cfg.CDXURL,
	} {
		if err := setString(cmd, name, dst); err != nil {
			return nil, err
		}
	}

	for name, dst := range map[string]*time.Duration{
		"min-delay":          &cfg.MinDelay,
		"max-delay":          &cfg.MaxDelay,
		"asset-delay":        &cfg.AssetDelay,
		"timeout":            &cfg.Timeout,
		"retry-delay":        &cfg.RetryDelay,
		"retry-failed-after": &cfg.RetryFailedAfter,
	} {
		if err := setDuration(cmd, name, dst); err != nil {
			return nil, err
		}
	}

	if err := setInt(cmd, "retries", &cfg.MaxRetries); err != nil {
		return nil, err
	}
	if err := setInt(cmd, "max-items", &cfg.MaxItems); err != nil {
		return nil, err
	}
	if err := setBool(cmd, "no-off-peak", &cfg.NoOffPeak); err != nil {
		return nil, err
	}
	if err := setStringSlice(cmd, "ignore", &cfg.IgnorePatterns); err != nil {
		return nil, err
	}
	if err := setStringSlice(cmd, "follow", &cfg.FollowPatterns); err != nil {
		return nil, err
	}

	cfg.Credentials, err = config.LoadCredentials(cfg.EnvFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// runCrawl wires the components and runs the crawl to completion or
// cancellation. The run summary is printed in both cases.
func runCrawl(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"domain", cfg.Domain,
		"output", cfg.OutputDir,
		"db", cfg.DBPath,
		"logged_in", cfg.Credentials.Valid(),
	)

	db, err := database.Open(cfg.DBPath, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if cfg.RetryFailedAfter > 0 {
		n, err := db.RequeueFailed(ctx, cfg.RetryFailedAfter)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("requeued failed entries", "count", n, "older_than", cfg.RetryFailedAfter.String())
		}
	}

	store, err := assetstore.New(ctx, db, cfg.OutputDir,
		assetstore.WithHashAlgorithm(cfg.HashAlgorithm),
		assetstore.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to open asset store: %w", err)
	}

	fetcher := newFetcher(cfg, logger)

	if err := seedLedger(ctx, cfg, db, fetcher, logger); err != nil {
		return err
	}

	sched, err := newScheduler(cfg, logger)
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		Fetcher:    fetcher,
		Ledger:     db,
		Store:      store,
		Root:       cfg.OutputDir,
		Pauser:     sched,
		AssetDelay: cfg.AssetDelay,
		Logger:     logger,
	}
	if filter := crawler.NewPathFilter(cfg.IgnorePatterns, cfg.FollowPatterns); !filter.Empty() {
		deps.Filter = filter
	}
	p := pipeline.New(pipeline.DefaultSteps(deps), pipeline.WithLogger(logger))
	logger.Debug("pipeline ready", "steps", p.StepNames())

	opts := []crawler.Option{
		crawler.WithDomain(cfg.Domain),
		crawler.WithMaxItems(cfg.MaxItems),
		crawler.WithLogger(logger),
	}

	metricsCtx, stopMetrics := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		stopMetrics()
		wg.Wait()
	}()
	if cfg.MetricsAddr != "" {
		m := metrics.New()
		opts = append(opts, crawler.WithMetrics(m))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Serve(metricsCtx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	engine := crawler.NewEngine(db, p, sched, opts...)
	stats, runErr := engine.Run(ctx)
	interrupted := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
	if runErr != nil && !interrupted {
		return fmt.Errorf("crawl failed: %w", runErr)
	}

	// The run context may be canceled; the summary still needs the ledger.
	counts, err := db.DomainStats(context.WithoutCancel(ctx), cfg.Domain)
	if err != nil {
		return err
	}
	summary := report.NewSummary(engine.RunID(), cfg.Domain, stats, counts[model.StatusPending], interrupted)
	_, err = report.NewSimpleWriter(out).WriteSummary(summary)
	return err
}

// newFetcher creates the archive client from cfg.
func newFetcher(cfg *config.Config, logger *slog.Logger) *wayback.Fetcher {
	opts := []wayback.Option{
		wayback.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		wayback.WithBaseURL(cfg.ArchiveURL),
		wayback.WithUserAgent(cfg.UserAgent),
		wayback.WithMaxRetries(cfg.MaxRetries),
		wayback.WithRetryDelay(cfg.RetryDelay),
		wayback.WithMaxBodySize(cfg.MaxBodySize),
		wayback.WithLogger(logger),
	}
	if cfg.Credentials.Valid() {
		opts = append(opts, wayback.WithCredentials(cfg.Credentials))
	}
	return wayback.NewFetcher(opts...)
}

// newScheduler creates the request gate from cfg.
func newScheduler(cfg *config.Config, logger *slog.Logger) (*scheduler.Scheduler, error) {
	opts := []scheduler.Option{
		scheduler.WithDelay(cfg.MinDelay, cfg.MaxDelay),
		scheduler.WithLogger(logger),
	}
	window, enabled, err := cfg.Window()
	if err != nil {
		return nil, err
	}
	if enabled {
		opts = append(opts, scheduler.WithWindow(window))
		logger.Info("off-peak window enabled", "window", window.String())
	}
	return scheduler.New(opts...)
}

// seedLedger adds the starting snapshots to the ledger.
//
// A snapshot list is always applied since seeding is idempotent. The CDX
// index is only queried while the domain has no entries, so a resumed crawl
// makes no extra index request.
func seedLedger(ctx context.Context, cfg *config.Config, db *database.CrawlDB, fetcher *wayback.Fetcher, logger *slog.Logger) error {
	counts, err := db.DomainStats(ctx, cfg.Domain)
	if err != nil {
		return err
	}
	known := counts[model.StatusPending] + counts[model.StatusCompleted] + counts[model.StatusFailed]

	var seeds []crawler.Seed
	switch {
	case cfg.SnapshotsFile != "":
		list, err := crawler.LoadSnapshotList(cfg.SnapshotsFile)
		if err != nil {
			return err
		}
		for _, rejected := range list.Rejected {
			logger.Warn("skipping malformed snapshot line",
				"file", cfg.SnapshotsFile,
				"line", rejected.Line,
				"error", rejected.Err,
			)
		}
		seeds = list.Seeds

	case known == 0:
		logger.Info("querying capture index", "domain", cfg.Domain, "from", cfg.From, "to", cfg.To)
		snapshots, err := wayback.NewCDXClient(fetcher, cfg.CDXURL).Snapshots(ctx, cfg.Domain, cfg.From, cfg.To)
		if err != nil {
			return fmt.Errorf("failed to list snapshots: %w", err)
		}
		seeds = crawler.SnapshotSeeds(cfg.Domain, snapshots)

	default:
		logger.Info("resuming from ledger", "domain", cfg.Domain, "pending", counts[model.StatusPending])
		return nil
	}

	added, err := crawler.SeedLedger(ctx, db, seeds)
	if err != nil {
		return fmt.Errorf("failed to seed ledger: %w", err)
	}
	logger.Info("ledger seeded", "seeds", len(seeds), "new", added)

	if known+added == 0 {
		return crawler.ErrNoSeeds
	}
	return nil
}
