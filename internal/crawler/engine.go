package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/archivist/internal/metrics"
	"github.com/nao1215/archivist/internal/model"
	"github.com/nao1215/archivist/internal/pipeline"
	"github.com/nao1215/archivist/internal/scheduler"
)

// Ledger is the crawl state the engine drives. *database.CrawlDB satisfies it.
type Ledger interface {
	NextPendingFor(ctx context.Context, domain string) (*model.QueueEntry, error)
	MarkCompleted(ctx context.Context, url, timestamp, localPath string) error
	MarkFailed(ctx context.Context, url, timestamp, reason string) error
	Stats(ctx context.Context) (map[model.Status]int, error)
}

// Gate decides when the next request may go out. *scheduler.Scheduler satisfies it.
type Gate interface {
	Window() (scheduler.Window, bool)
	AwaitWindow(ctx context.Context) error
	Politeness(ctx context.Context) (time.Duration, error)
}

// Engine runs the crawl loop: wait for the window, take the next pending
// entry, run it through the pipeline, record the outcome, pause.
// One entry is in flight at a time.
type Engine struct {
	ledger   Ledger
	pipeline *pipeline.Pipeline
	gate     Gate

	domain   string
	metrics  *metrics.Metrics
	maxItems int
	runID    string
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxItems stops the run after n pages. 0 means no limit.
func WithMaxItems(n int) Option {
	return func(e *Engine) {
		e.maxItems = n
	}
}

// WithDomain limits the run to entries of one domain.
// By default entries of every domain are crawled.
func WithDomain(domain string) Option {
	return func(e *Engine) {
		e.domain = domain
	}
}

// WithMetrics mirrors the run counters to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRunID sets the identifier attached to every log line of the run.
func WithRunID(id string) Option {
	return func(e *Engine) {
		e.runID = id
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine.
func NewEngine(ledger Ledger, p *pipeline.Pipeline, gate Gate, opts ...Option) *Engine {
	e := &Engine{
		ledger:   ledger,
		pipeline: p,
		gate:     gate,
		runID:    uuid.NewString(),
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("run", e.runID)
	return e
}

// RunID returns the run identifier.
func (e *Engine) RunID() string {
	return e.runID
}

// Run crawls until no pending entry remains, the item cap is reached or ctx
// is canceled. The stats are returned in every case. On cancellation the
// in-flight entry stays pending and ctx's error is returned.
func (e *Engine) Run(ctx context.Context) (*model.CrawlStats, error) {
	stats := model.NewCrawlStats()
	stats.StartedAt = e.now()
	e.logger.Info("crawl started")

	for {
		if e.maxItems > 0 && stats.PagesProcessed() >= e.maxItems {
			e.logger.Info("item limit reached", "max_items", e.maxItems)
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if w, ok := e.gate.Window(); ok && !w.Contains(e.now()) && e.metrics != nil {
			e.metrics.WindowWaits.Inc()
		}
		if err := e.gate.AwaitWindow(ctx); err != nil {
			return stats, err
		}

		entry, err := e.ledger.NextPendingFor(ctx, e.domain)
		if err != nil {
			return stats, err
		}
		if entry == nil {
			e.logger.Info("no pending entries left")
			break
		}

		if err := e.process(ctx, entry, stats); err != nil {
			return stats, err
		}
		e.reportProgress(ctx, stats)

		if _, err := e.gate.Politeness(ctx); err != nil {
			return stats, err
		}
	}

	e.logger.Info("crawl finished",
		"pages_fetched", stats.PagesFetched,
		"pages_failed", stats.PagesFailed,
		"assets_fetched", stats.AssetsFetched,
		"assets_cached", stats.AssetsCached,
		"assets_failed", stats.AssetsFailed,
		"elapsed", e.now().Sub(stats.StartedAt).Round(time.Second).String(),
	)
	return stats, nil
}

// process runs one entry and commits its terminal state. It returns an error
// only when the run must stop: cancellation or a ledger write failure.
func (e *Engine) process(ctx context.Context, entry *model.QueueEntry, stats *model.CrawlStats) error {
	start := e.now()
	logger := e.logger.With("url", entry.URL, "timestamp", entry.Timestamp)
	logger.Info("processing")

	job := pipeline.NewJob(entry)
	runErr := e.pipeline.Execute(ctx, job)
	job.Stats.Apply(stats)
	if e.metrics != nil {
		e.metrics.LinksEnqueued.Add(float64(job.Stats.LinksEnqueued))
		e.metrics.ObserveAssets(job.Stats.AssetsFetched, job.Stats.AssetsCached,
			job.Stats.AssetsDeduped, job.Stats.AssetsFailed, job.Stats.AssetBytes)
	}

	if runErr != nil && ctx.Err() != nil && isCancellation(runErr) {
		logger.Info("interrupted, entry left pending")
		return ctx.Err()
	}

	// The page's work is done; record it even if a shutdown starts now.
	commitCtx := context.WithoutCancel(ctx)

	if runErr != nil {
		stats.PagesFailed++
		if err := e.ledger.MarkFailed(commitCtx, entry.URL, entry.Timestamp, runErr.Error()); err != nil {
			return fmt.Errorf("failed to record failure: %w", err)
		}
		e.observePage(metrics.PageFailed, start)
		logger.Warn("page failed", "error", runErr)
		return nil
	}

	stats.PagesFetched++
	if err := e.ledger.MarkCompleted(commitCtx, entry.URL, entry.Timestamp, job.LocalPath); err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	e.observePage(metrics.PageCompleted, start)
	logger.Info("page completed",
		"path", job.LocalPath,
		"links", job.Stats.LinksEnqueued,
		"assets_fetched", job.Stats.AssetsFetched,
		"assets_cached", job.Stats.AssetsCached,
		"assets_failed", job.Stats.AssetsFailed,
	)
	return nil
}

func (e *Engine) observePage(status string, start time.Time) {
	if e.metrics != nil {
		e.metrics.ObservePage(status, e.now().Sub(start))
	}
}

// reportProgress logs the ledger totals and updates the pending gauge.
func (e *Engine) reportProgress(ctx context.Context, stats *model.CrawlStats) {
	counts, err := e.ledger.Stats(ctx)
	if err != nil {
		e.logger.Debug("failed to read ledger stats", "error", err)
		return
	}
	if e.metrics != nil {
		e.metrics.PendingEntries.Set(float64(counts[model.StatusPending]))
	}
	e.logger.Info("progress",
		"pending", counts[model.StatusPending],
		"completed", counts[model.StatusCompleted],
		"failed", counts[model.StatusFailed],
		"processed_this_run", stats.PagesProcessed(),
	)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
