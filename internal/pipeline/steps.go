package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/archivist/internal/assetstore"
	"github.com/nao1215/archivist/internal/dom"
	"github.com/nao1215/archivist/internal/extractor"
	"github.com/nao1215/archivist/internal/model"
	"github.com/nao1215/archivist/internal/wayback"
)

// Fetcher retrieves captures. *wayback.Fetcher satisfies it.
type Fetcher interface {
	URL(timestamp string, kind model.AssetKind, original string) string
	FetchURL(ctx context.Context, replayURL string) (*wayback.Response, error)
}

// Enqueuer adds entries to the ledger. *database.CrawlDB satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, entry *model.QueueEntry) (bool, error)
}

// AssetStore is the content-addressed asset store. *assetstore.Store satisfies it.
type AssetStore interface {
	Lookup(ctx context.Context, waybackURL string) (string, bool, error)
	Resolve(ctx context.Context, req assetstore.ResolveRequest) (assetstore.Resolved, error)
}

// Pauser waits between asset requests. *scheduler.Scheduler satisfies it.
type Pauser interface {
	Pause(ctx context.Context, d time.Duration) error
}

// LinkFilter decides whether a discovered link is enqueued.
type LinkFilter interface {
	Allow(rawURL string) bool
}

// discardLogger returns a logger that drops everything.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FetchPageStep fetches the raw capture of the job's page.
type FetchPageStep struct {
	fetcher Fetcher
}

// NewFetchPageStep creates a FetchPageStep.
func NewFetchPageStep(fetcher Fetcher) *FetchPageStep {
	return &FetchPageStep{fetcher: fetcher}
}

// Name returns the step name.
func (s *FetchPageStep) Name() string {
	return "fetch_page"
}

// Do fetches the page, decodes it to UTF-8 and parses it.
func (s *FetchPageStep) Do(ctx context.Context, job *Job) error {
	replay := s.fetcher.URL(job.Entry.Timestamp, model.KindPage, job.Entry.URL)
	resp, err := s.fetcher.FetchURL(ctx, replay)
	if err != nil {
		return err
	}

	body, charset := dom.DecodeUTF8(resp.Body, resp.ContentType)
	job.ContentType = resp.ContentType
	job.Charset = charset
	job.HTML = string(body)
	job.Stats.FetchAttempts = resp.Attempts

	doc, err := dom.ParseString(job.HTML)
	if err != nil {
		return err
	}
	job.Doc = doc
	return nil
}

// SavePageStep writes the fetched page to the archive tree.
type SavePageStep struct {
	root string
}

// NewSavePageStep creates a SavePageStep writing under root.
func NewSavePageStep(root string) *SavePageStep {
	return &SavePageStep{root: root}
}

// Name returns the step name.
func (s *SavePageStep) Name() string {
	return "save_page"
}

// Do writes the page and records its path on the job.
func (s *SavePageStep) Do(_ context.Context, job *Job) error {
	path, err := PagePath(s.root, job.Entry.Domain, job.Entry.Timestamp, job.Entry.URL)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create page directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(job.HTML), 0600); err != nil {
		return fmt.Errorf("failed to write page: %w", err)
	}
	job.LocalPath = path
	return nil
}

// DiscoverLinksStep enqueues the page's internal links at the same timestamp.
type DiscoverLinksStep struct {
	ledger Enqueuer
	filter LinkFilter
	logger *slog.Logger
}

// NewDiscoverLinksStep creates a DiscoverLinksStep. A nil filter enqueues
// every internal link.
func NewDiscoverLinksStep(ledger Enqueuer, filter LinkFilter, logger *slog.Logger) *DiscoverLinksStep {
	if logger == nil {
		logger = discardLogger()
	}
	return &DiscoverLinksStep{ledger: ledger, filter: filter, logger: logger}
}

// Name returns the step name.
func (s *DiscoverLinksStep) Name() string {
	return "discover_links"
}

// Do extracts links and assets and enqueues the links.
func (s *DiscoverLinksStep) Do(ctx context.Context, job *Job) error {
	ex := extractor.New(job.Entry.Domain, extractor.WithLogger(s.logger))
	job.Links = ex.Links(job.Doc, job.Entry.URL)
	job.Assets = ex.Assets(job.Doc, job.Entry.URL)
	job.Stats.LinksDiscovered = len(job.Links)

	for _, link := range job.Links {
		if s.filter != nil && !s.filter.Allow(link) {
			s.logger.Debug("link filtered", "url", link)
			continue
		}
		entry, err := model.NewQueueEntry(link, job.Entry.Timestamp, job.Entry.Domain)
		if err != nil {
			s.logger.Debug("skipping link", "url", link, "error", err)
			continue
		}
		created, err := s.ledger.Enqueue(ctx, entry)
		if err != nil {
			return fmt.Errorf("failed to enqueue %s: %w", link, err)
		}
		if created {
			job.Stats.LinksEnqueued++
		}
	}
	return nil
}

// CaptureAssetsStep fetches or reuses every asset the page references.
type CaptureAssetsStep struct {
	fetcher Fetcher
	store   AssetStore
	pauser  Pauser
	delay   time.Duration
	logger  *slog.Logger
}

// CaptureOption configures a CaptureAssetsStep.
type CaptureOption func(*CaptureAssetsStep)

// WithAssetDelay sets the pause between asset downloads.
func WithAssetDelay(pauser Pauser, d time.Duration) CaptureOption {
	return func(s *CaptureAssetsStep) {
		s.pauser = pauser
		s.delay = d
	}
}

// WithCaptureLogger sets the logger.
func WithCaptureLogger(logger *slog.Logger) CaptureOption {
	return func(s *CaptureAssetsStep) {
		s.logger = logger
	}
}

// NewCaptureAssetsStep creates a CaptureAssetsStep.
func NewCaptureAssetsStep(fetcher Fetcher, store AssetStore, opts ...CaptureOption) *CaptureAssetsStep {
	s := &CaptureAssetsStep{
		fetcher: fetcher,
		store:   store,
		logger:  discardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CaptureAssetsStep) Name() string {
	return "capture_assets"
}

// Do captures each asset. Only cancellation makes it fail.
func (s *CaptureAssetsStep) Do(ctx context.Context, job *Job) error {
	fetched := false
	for _, ref := range job.Assets {
		if err := ctx.Err(); err != nil {
			return err
		}

		replay := s.fetcher.URL(job.Entry.Timestamp, ref.Kind, ref.URL)
		_, hit, err := s.store.Lookup(ctx, replay)
		if err != nil {
			s.logger.Warn("asset lookup failed", "url", replay, "error", err)
			job.Stats.AssetsFailed++
			continue
		}
		if hit {
			job.Stats.AssetsCached++
			continue
		}

		if fetched && s.pauser != nil {
			if err := s.pauser.Pause(ctx, s.delay); err != nil {
				return err
			}
		}
		fetched = true

		if err := s.capture(ctx, job, ref, replay); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			level := slog.LevelWarn
			if errors.Is(err, wayback.ErrNotFound) {
				level = slog.LevelDebug
			}
			s.logger.Log(ctx, level, "asset capture failed", "url", ref.URL, "kind", ref.Kind.String(), "error", err)
			job.Stats.AssetsFailed++
		}
	}
	return nil
}

// capture downloads one asset and stores it.
func (s *CaptureAssetsStep) capture(ctx context.Context, job *Job, ref extractor.AssetRef, replay string) error {
	resp, err := s.fetcher.FetchURL(ctx, replay)
	if err != nil {
		return err
	}

	res, err := s.store.Resolve(ctx, assetstore.ResolveRequest{
		WaybackURL:  replay,
		OriginalURL: ref.URL,
		Timestamp:   job.Entry.Timestamp,
		Domain:      job.Entry.Domain,
		External:    ref.External,
		MimeType:    resp.ContentType,
		Body:        resp.Body,
	})
	if err != nil {
		return err
	}

	job.Stats.AssetBytes += int64(len(resp.Body))
	if res.Deduped {
		job.Stats.AssetsDeduped++
	} else {
		job.Stats.AssetsFetched++
	}
	return nil
}

// Deps are the collaborators of the standard crawl steps.
type Deps struct {
	Fetcher Fetcher
	Ledger  Enqueuer
	Store   AssetStore

	// Root is the archive root pages are saved under.
	Root string

	// Filter limits which links are enqueued. Optional.
	Filter LinkFilter

	// Pauser and AssetDelay space out asset downloads. Optional.
	Pauser     Pauser
	AssetDelay time.Duration

	Logger *slog.Logger
}

// DefaultSteps returns the standard crawl steps.
func DefaultSteps(deps Deps) []Step {
	logger := deps.Logger
	if logger == nil {
		logger = discardLogger()
	}

	opts := []CaptureOption{WithCaptureLogger(logger)}
	if deps.Pauser != nil {
		opts = append(opts, WithAssetDelay(deps.Pauser, deps.AssetDelay))
	}

	return []Step{
		NewFetchPageStep(deps.Fetcher),
		NewSavePageStep(deps.Root),
		NewDiscoverLinksStep(deps.Ledger, deps.Filter, logger),
		NewCaptureAssetsStep(deps.Fetcher, deps.Store, opts...),
	}
}
