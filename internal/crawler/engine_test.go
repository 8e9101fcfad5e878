package crawler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/archivist/internal/assetstore"
	"github.com/nao1215/archivist/internal/database"
	"github.com/nao1215/archivist/internal/metrics"
	"github.com/nao1215/archivist/internal/model"
	"github.com/nao1215/archivist/internal/pipeline"
	"github.com/nao1215/archivist/internal/scheduler"
	"github.com/nao1215/archivist/internal/wayback"
)

const testTimestamp = "19990101000000"

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func openTestDB(t *testing.T) *database.CrawlDB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "crawl.db"), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// harness wires a real ledger, store and fetcher against a fake archive.
type harness struct {
	db     *database.CrawlDB
	root   string
	gate   *scheduler.Scheduler
	deps   pipeline.Deps
	server *httptest.Server
}

func newHarness(t *testing.T, pages map[string]string) *harness {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)

	db := openTestDB(t)
	root := filepath.Join(t.TempDir(), "archive")
	store, err := assetstore.New(context.Background(), db, root)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	gate, err := scheduler.New(scheduler.WithDelay(0, 0), scheduler.WithSleep(noSleep))
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}

	fetcher := wayback.NewFetcher(
		wayback.WithBaseURL(server.URL+"/web"),
		wayback.WithHTTPClient(server.Client()),
		wayback.WithSleep(noSleep),
	)

	return &harness{
		db:     db,
		root:   root,
		gate:   gate,
		server: server,
		deps: pipeline.Deps{
			Fetcher: fetcher,
			Ledger:  db,
			Store:   store,
			Root:    root,
		},
	}
}

func (h *harness) engine(opts ...Option) *Engine {
	return NewEngine(h.db, pipeline.New(pipeline.DefaultSteps(h.deps)), h.gate, opts...)
}

func (h *harness) seed(t *testing.T, urls ...string) {
	t.Helper()

	seeds := make([]Seed, 0, len(urls))
	for _, u := range urls {
		seeds = append(seeds, Seed{Timestamp: testTimestamp, URL: u, Domain: "example.com"})
	}
	if _, err := SeedLedger(context.Background(), h.db, seeds); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}
}

func (h *harness) counts(t *testing.T) map[model.Status]int {
	t.Helper()

	counts, err := h.db.Stats(context.Background())
	if err != nil {
		t.Fatalf("failed to read stats: %v", err)
	}
	return counts
}

func replayPath(original string) string {
	return "/web/" + testTimestamp + "id_/" + original
}

var linkedSite = map[string]string{
	replayPath("http://www.example.com/"):       `<html><body><a href="/b.html">B</a></body></html>`,
	replayPath("http://www.example.com/b.html"): `<html><body>no links here</body></html>`,
}

func TestEngineCrawlsDiscoveredLinks(t *testing.T) {
	t.Parallel()

	h := newHarness(t, linkedSite)
	h.seed(t, "http://www.example.com/")

	stats, err := h.engine().Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if stats.PagesFetched != 2 || stats.PagesFailed != 0 {
		t.Errorf("expected 2 fetched pages, got %+v", stats)
	}
	counts := h.counts(t)
	if counts[model.StatusCompleted] != 2 || counts[model.StatusPending] != 0 {
		t.Errorf("expected 2 completed and 0 pending, got %v", counts)
	}

	b, err := h.db.GetEntry(context.Background(), "http://www.example.com/b.html", testTimestamp)
	if err != nil || b == nil {
		t.Fatalf("expected entry for b.html, got %v %v", b, err)
	}
	want := filepath.Join(h.root, "example.com", testTimestamp, "b.html")
	if b.LocalPath != want {
		t.Errorf("expected local path %s, got %s", want, b.LocalPath)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected saved page: %v", err)
	}
}

func TestEngineRecordsFailuresAndContinues(t *testing.T) {
	t.Parallel()

	h := newHarness(t, linkedSite)
	h.seed(t, "http://www.example.com/gone.html", "http://www.example.com/b.html")

	stats, err := h.engine().Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats.PagesFetched != 1 || stats.PagesFailed != 1 {
		t.Errorf("expected 1 fetched and 1 failed, got %+v", stats)
	}

	gone, err := h.db.GetEntry(context.Background(), "http://www.example.com/gone.html", testTimestamp)
	if err != nil || gone == nil {
		t.Fatalf("expected entry, got %v %v", gone, err)
	}
	if gone.Status != model.StatusFailed {
		t.Errorf("expected failed status, got %s", gone.Status)
	}
	if !strings.Contains(gone.Error, "not found") {
		t.Errorf("expected not found reason, got %q", gone.Error)
	}
}

func TestEngineFilesystemErrorFailsOnlyThatPage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, linkedSite)
	// A regular file where the domain directory should be.
	if err := os.MkdirAll(h.root, 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(h.root, "example.com"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	h.seed(t, "http://www.example.com/")

	stats, err := h.engine().Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats.PagesFailed != 1 {
		t.Errorf("expected 1 failed page, got %+v", stats)
	}
	if counts := h.counts(t); counts[model.StatusFailed] != 1 {
		t.Errorf("expected failed entry, got %v", counts)
	}
}

func TestEngineMaxItemsAndResume(t *testing.T) {
	t.Parallel()

	h := newHarness(t, linkedSite)
	h.seed(t, "http://www.example.com/")

	stats, err := h.engine(WithMaxItems(1)).Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats.PagesProcessed() != 1 {
		t.Errorf("expected 1 page, got %d", stats.PagesProcessed())
	}
	counts := h.counts(t)
	if counts[model.StatusCompleted] != 1 || counts[model.StatusPending] != 1 {
		t.Errorf("expected 1 completed and 1 pending, got %v", counts)
	}

	if _, err := h.engine().Run(context.Background()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	counts = h.counts(t)
	if counts[model.StatusCompleted] != 2 || counts[model.StatusPending] != 0 {
		t.Errorf("expected 2 completed and 0 pending after resume, got %v", counts)
	}
}

// cancelStep cancels the run while a page is in flight.
type cancelStep struct {
	cancel context.CancelFunc
}

func (s *cancelStep) Name() string { return "cancel" }

func (s *cancelStep) Do(ctx context.Context, _ *pipeline.Job) error {
	s.cancel()
	return ctx.Err()
}

func TestEngineCancellationLeavesEntryPending(t *testing.T) {
	t.Parallel()

	h := newHarness(t, linkedSite)
	h.seed(t, "http://www.example.com/")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := pipeline.New([]pipeline.Step{&cancelStep{cancel: cancel}})
	_, err := NewEngine(h.db, p, h.gate).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	entry, err := h.db.GetEntry(context.Background(), "http://www.example.com/", testTimestamp)
	if err != nil || entry == nil {
		t.Fatalf("expected entry, got %v %v", entry, err)
	}
	if entry.Status != model.StatusPending {
		t.Errorf("expected pending after interrupt, got %s", entry.Status)
	}
}

func TestEngineMirrorsMetrics(t *testing.T) {
	t.Parallel()

	h := newHarness(t, linkedSite)
	h.seed(t, "http://www.example.com/")
	m := metrics.New()

	if _, err := h.engine(WithMetrics(m)).Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	server := httptest.NewServer(m.Handler())
	t.Cleanup(server.Close)
	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	for _, want := range []string{
		`archivist_pages_total{status="completed"} 2`,
		"archivist_links_enqueued_total 1",
		"archivist_pending_entries 0",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in metrics", want)
		}
	}
}

func TestEngineDomainScope(t *testing.T) {
	t.Parallel()

	h := newHarness(t, linkedSite)
	h.seed(t, "http://www.example.com/b.html")
	other := []Seed{{Timestamp: testTimestamp, URL: "http://www.other.org/", Domain: "other.org"}}
	if _, err := SeedLedger(context.Background(), h.db, other); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	stats, err := h.engine(WithDomain("example.com")).Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats.PagesProcessed() != 1 {
		t.Errorf("expected 1 page processed, got %+v", stats)
	}

	entry, err := h.db.GetEntry(context.Background(), "http://www.other.org/", testTimestamp)
	if err != nil || entry == nil {
		t.Fatalf("expected other.org entry, got %v %v", entry, err)
	}
	if entry.Status != model.StatusPending {
		t.Errorf("expected other.org entry to stay pending, got %s", entry.Status)
	}
}

func TestEngineRunID(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	if h.engine().RunID() == "" {
		t.Error("expected generated run id")
	}
	if got := h.engine(WithRunID("fixed")).RunID(); got != "fixed" {
		t.Errorf("expected fixed run id, got %s", got)
	}
}

func TestEngineEmptyLedger(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	stats, err := h.engine().Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats.PagesProcessed() != 0 {
		t.Errorf("expected no pages, got %d", stats.PagesProcessed())
	}
}
