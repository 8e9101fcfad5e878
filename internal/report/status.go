package report

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/archivist/internal/assetstore"
	"github.com/nao1215/archivist/internal/database"
	"github.com/nao1215/archivist/internal/model"
)

// DefaultFailureLimit caps the failed entries listed in a Status.
const DefaultFailureLimit = 20

// Source is the read side of the crawl database.
// *database.CrawlDB satisfies it.
type Source interface {
	Path() string
	Stats(ctx context.Context) (map[model.Status]int, error)
	DomainStats(ctx context.Context, domain string) (map[model.Status]int, error)
	SnapshotSummaries(ctx context.Context, domain string) ([]database.SnapshotSummary, error)
	AssetSummary(ctx context.Context, domain string) (database.AssetSummary, error)
	ListEntries(ctx context.Context, status model.Status) ([]*model.QueueEntry, error)
	GetState(ctx context.Context, key string) (string, error)
}

// Status is a point-in-time view of the crawl database.
type Status struct {
	// GeneratedAt is when the status was collected.
	GeneratedAt time.Time `json:"generated_at"`

	// Database is the path of the crawl database.
	Database string `json:"database"`

	// Domain restricts the view to one domain. Empty means all domains.
	Domain string `json:"domain,omitempty"`

	// HashAlgorithm is the content hash recorded for the asset index.
	HashAlgorithm string `json:"hash_algorithm,omitempty"`

	// Counts holds the number of ledger entries per status.
	Counts map[model.Status]int `json:"counts"`

	// Snapshots is the per-timestamp breakdown. Only set for a domain view.
	Snapshots []database.SnapshotSummary `json:"snapshots,omitempty"`

	// Assets summarizes the asset index.
	Assets database.AssetSummary `json:"assets"`

	// Failures lists failed entries, most recently discovered first.
	Failures []*model.QueueEntry `json:"failures,omitempty"`

	// FailuresOmitted is the number of failed entries not listed.
	FailuresOmitted int `json:"failures_omitted,omitempty"`
}

// Count returns the number of entries with the given status.
func (s *Status) Count(status model.Status) int {
	return s.Counts[status]
}

// Total returns the number of ledger entries.
func (s *Status) Total() int {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total
}

// Progress returns the share of entries in a terminal state, in percent.
func (s *Status) Progress() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	done := s.Count(model.StatusCompleted) + s.Count(model.StatusFailed)
	return float64(done) * 100 / float64(total)
}

// Title names the scope of the status.
func (s *Status) Title() string {
	if s.Domain == "" {
		return "all domains"
	}
	return s.Domain
}

// CollectOption configures Collect.
type CollectOption func(*collectConfig)

type collectConfig struct {
	failureLimit int
	now          func() time.Time
}

// WithFailureLimit sets how many failed entries are listed.
// Zero lists none.
func WithFailureLimit(n int) CollectOption {
	return func(c *collectConfig) {
		c.failureLimit = n
	}
}

// WithCollectClock replaces the clock used for GeneratedAt.
func WithCollectClock(now func() time.Time) CollectOption {
	return func(c *collectConfig) {
		c.now = now
	}
}

// Collect builds a Status from the database. An empty domain covers
// every domain in the ledger.
func Collect(ctx context.Context, src Source, domain string, opts ...CollectOption) (*Status, error) {
	cfg := collectConfig{
		failureLimit: DefaultFailureLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	st := &Status{
		GeneratedAt: cfg.now(),
		Database:    src.Path(),
		Domain:      domain,
	}

	var err error
	if domain == "" {
		st.Counts, err = src.Stats(ctx)
	} else {
		st.Counts, err = src.DomainStats(ctx, domain)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	if domain != "" {
		if st.Snapshots, err = src.SnapshotSummaries(ctx, domain); err != nil {
			return nil, err
		}
	}

	if st.Assets, err = src.AssetSummary(ctx, domain); err != nil {
		return nil, err
	}

	if st.HashAlgorithm, err = src.GetState(ctx, assetstore.StateHashAlgorithm); err != nil {
		return nil, err
	}

	if cfg.failureLimit > 0 && st.Count(model.StatusFailed) > 0 {
		failed, err := src.ListEntries(ctx, model.StatusFailed)
		if err != nil {
			return nil, err
		}
		st.Failures, st.FailuresOmitted = recentFailures(failed, domain, cfg.failureLimit)
	}

	return st, nil
}

// recentFailures keeps the most recently discovered failures of domain.
// entries must be in discovery order.
func recentFailures(entries []*model.QueueEntry, domain string, limit int) ([]*model.QueueEntry, int) {
	matched := make([]*model.QueueEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if domain != "" && entries[i].Domain != domain {
			continue
		}
		matched = append(matched, entries[i])
	}
	if len(matched) <= limit {
		return matched, 0
	}
	return matched[:limit], len(matched) - limit
}

// Summary is the outcome of one crawl run.
type Summary struct {
	// RunID identifies the run in the logs.
	RunID string `json:"run_id"`

	// Domain is the crawled domain.
	Domain string `json:"domain"`

	// Interrupted is true when the run was canceled before the ledger drained.
	Interrupted bool `json:"interrupted"`

	// Stats are the run's counters.
	Stats *model.CrawlStats `json:"stats"`

	// Elapsed is the wall time of the run.
	Elapsed time.Duration `json:"elapsed"`

	// Pending is the number of entries left for a later run.
	Pending int `json:"pending"`
}

// NewSummary builds a Summary, taking Elapsed from the stats.
func NewSummary(runID, domain string, stats *model.CrawlStats, pending int, interrupted bool) *Summary {
	if stats == nil {
		stats = &model.CrawlStats{}
	}
	var elapsed time.Duration
	if !stats.StartedAt.IsZero() {
		elapsed = stats.Elapsed()
	}
	return &Summary{
		RunID:       runID,
		Domain:      domain,
		Interrupted: interrupted,
		Stats:       stats,
		Elapsed:     elapsed,
		Pending:     pending,
	}
}
