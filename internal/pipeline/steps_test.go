package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/archivist/internal/assetstore"
	"github.com/nao1215/archivist/internal/database"
	"github.com/nao1215/archivist/internal/dom"
	"github.com/nao1215/archivist/internal/extractor"
	"github.com/nao1215/archivist/internal/model"
	"github.com/nao1215/archivist/internal/wayback"
)

const testPage = `<html><head>
<link rel="stylesheet" href="/style.css">
</head><body>
<a href="/about.html">About</a>
<a href="http://other.example.org/">Elsewhere</a>
<img src="/logo.png">
<img src="/missing.png">
</body></html>`

// requestLog counts requests per path.
type requestLog struct {
	mu   sync.Mutex
	hits map[string]int
}

func (l *requestLog) record(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits[path]++
}

func (l *requestLog) count(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hits[path]
}

// archiveHandler serves a tiny replay archive keyed by request path.
func archiveHandler(pages map[string]string, log *requestLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.record(r.URL.Path)
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, ".css") {
			w.Header().Set("Content-Type", "text/css")
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		_, _ = w.Write([]byte(body))
	}
}

// recordingPauser collects pauses without blocking.
type recordingPauser struct {
	pauses []time.Duration
}

func (p *recordingPauser) Pause(ctx context.Context, d time.Duration) error {
	p.pauses = append(p.pauses, d)
	return ctx.Err()
}

type testEnv struct {
	root    string
	db      *database.CrawlDB
	store   *assetstore.Store
	fetcher *wayback.Fetcher
	log     *requestLog
}

func setupEnv(t *testing.T, pages map[string]string) *testEnv {
	t.Helper()

	log := &requestLog{hits: make(map[string]int)}
	server := httptest.NewServer(archiveHandler(pages, log))
	t.Cleanup(server.Close)

	tmp := t.TempDir()
	db, err := database.Open(filepath.Join(tmp, "crawl.db"), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	root := filepath.Join(tmp, "archive")
	store, err := assetstore.New(context.Background(), db, root)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	fetcher := wayback.NewFetcher(
		wayback.WithBaseURL(server.URL+"/web"),
		wayback.WithHTTPClient(server.Client()),
		wayback.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
	return &testEnv{root: root, db: db, store: store, fetcher: fetcher, log: log}
}

func TestPagePath(t *testing.T) {
	t.Parallel()

	root := "out"
	tests := []struct {
		name string
		url  string
		want []string
	}{
		{"root", "http://www.example.com/", []string{"index.html"}},
		{"no path", "http://www.example.com", []string{"index.html"}},
		{"html file", "http://www.example.com/about.html", []string{"about.html"}},
		{"htm file", "http://www.example.com/news/item.HTM", []string{"news", "item.HTM"}},
		{"directory", "http://www.example.com/docs/", []string{"docs", "index.html"}},
		{"extensionless", "http://www.example.com/docs", []string{"docs", "index.html"}},
		{"traversal", "http://www.example.com/a/../../b.html", []string{"a", "b.html"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := PagePath(root, "example.com", "19990101000000", tt.url)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := filepath.Join(append([]string{root, "example.com", "19990101000000"}, tt.want...)...)
			if got != want {
				t.Errorf("expected %s, got %s", want, got)
			}
		})
	}
}

func TestDefaultStepsCapturePage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := setupEnv(t, map[string]string{
		"/web/19990101000000id_/http://www.example.com/":          testPage,
		"/web/19990101000000cs_/http://www.example.com/style.css": "body { color: red }",
		"/web/19990101000000im_/http://www.example.com/logo.png":  "PNGDATA",
	})

	pauser := &recordingPauser{}
	steps := DefaultSteps(Deps{
		Fetcher:    env.fetcher,
		Ledger:     env.db,
		Store:      env.store,
		Root:       env.root,
		Pauser:     pauser,
		AssetDelay: time.Second,
	})
	p := New(steps)

	job := newTestJob(t)
	if err := p.Execute(ctx, job); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	wantPath := filepath.Join(env.root, "example.com", "19990101000000", "index.html")
	if job.LocalPath != wantPath {
		t.Errorf("expected page at %s, got %s", wantPath, job.LocalPath)
	}
	saved, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("page not written: %v", err)
	}
	if !strings.Contains(string(saved), `href="/about.html"`) {
		t.Error("expected the page to be saved unmodified")
	}

	if job.Stats.LinksEnqueued != 1 {
		t.Errorf("expected 1 enqueued link, got %d", job.Stats.LinksEnqueued)
	}
	if job.Stats.AssetsFetched != 2 {
		t.Errorf("expected 2 fetched assets, got %d", job.Stats.AssetsFetched)
	}
	if job.Stats.AssetsFailed != 1 {
		t.Errorf("expected 1 failed asset, got %d", job.Stats.AssetsFailed)
	}
	if len(pauser.pauses) != 2 {
		t.Errorf("expected a pause between each of 3 downloads, got %v", pauser.pauses)
	}

	about, err := env.db.GetEntry(ctx, "http://www.example.com/about.html", "19990101000000")
	if err != nil {
		t.Fatalf("failed to get entry: %v", err)
	}
	if about == nil || about.Status != model.StatusPending {
		t.Errorf("expected about.html pending, got %+v", about)
	}
	external, err := env.db.GetEntry(ctx, "http://other.example.org/", "19990101000000")
	if err != nil {
		t.Fatalf("failed to get entry: %v", err)
	}
	if external != nil {
		t.Error("expected external link not to be enqueued")
	}

	t.Run("second pass reuses stored assets", func(t *testing.T) {
		stored := []string{
			"/web/19990101000000cs_/http://www.example.com/style.css",
			"/web/19990101000000im_/http://www.example.com/logo.png",
		}
		again := newTestJob(t)
		if err := p.Execute(ctx, again); err != nil {
			t.Fatalf("pipeline failed: %v", err)
		}
		if again.Stats.AssetsCached != 2 {
			t.Errorf("expected 2 cached assets, got %d", again.Stats.AssetsCached)
		}
		if again.Stats.AssetsFetched != 0 {
			t.Errorf("expected no downloads, got %d", again.Stats.AssetsFetched)
		}
		if again.Stats.LinksEnqueued != 0 {
			t.Errorf("expected no new links, got %d", again.Stats.LinksEnqueued)
		}
		for _, path := range stored {
			if got := env.log.count(path); got != 1 {
				t.Errorf("expected %s to be requested once across both passes, got %d", path, got)
			}
		}
	})
}

func TestFetchPageStepNotFound(t *testing.T) {
	t.Parallel()

	env := setupEnv(t, map[string]string{})
	step := NewFetchPageStep(env.fetcher)

	err := step.Do(context.Background(), newTestJob(t))
	if !errors.Is(err, wayback.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchPageStepDecodesCharset(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<html><body>caf\xe9</body></html>"))
	}))
	t.Cleanup(server.Close)

	fetcher := wayback.NewFetcher(wayback.WithBaseURL(server.URL+"/web"), wayback.WithHTTPClient(server.Client()))
	job := newTestJob(t)
	if err := NewFetchPageStep(fetcher).Do(context.Background(), job); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !strings.Contains(job.HTML, "café") {
		t.Errorf("expected decoded text, got %q", job.HTML)
	}
	if job.Doc == nil {
		t.Error("expected parsed document")
	}
	if job.Stats.FetchAttempts != 1 {
		t.Errorf("expected 1 attempt, got %d", job.Stats.FetchAttempts)
	}
}

func TestCaptureAssetsStepCancelled(t *testing.T) {
	t.Parallel()

	env := setupEnv(t, map[string]string{})
	step := NewCaptureAssetsStep(env.fetcher, env.store)

	job := newTestJob(t)
	job.Assets = nil
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := step.Do(ctx, job); err != nil {
		t.Errorf("expected no error without assets, got %v", err)
	}

	job.Assets = append(job.Assets, assetRef("http://www.example.com/a.png"))
	if err := step.Do(ctx, job); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func assetRef(u string) extractor.AssetRef {
	return extractor.AssetRef{URL: u, Kind: model.KindImage}
}

// denyFilter rejects links containing a substring.
type denyFilter string

func (d denyFilter) Allow(rawURL string) bool {
	return !strings.Contains(rawURL, string(d))
}

func TestDiscoverLinksStepFilter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := setupEnv(t, map[string]string{})

	doc, err := dom.ParseString(`<a href="/keep.html">k</a><a href="/private/drop.html">d</a>`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	job := newTestJob(t)
	job.Doc = doc

	step := NewDiscoverLinksStep(env.db, denyFilter("/private/"), nil)
	if err := step.Do(ctx, job); err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	if job.Stats.LinksDiscovered != 2 || job.Stats.LinksEnqueued != 1 {
		t.Errorf("expected 2 discovered and 1 enqueued, got %+v", job.Stats)
	}
	dropped, err := env.db.GetEntry(ctx, "http://www.example.com/private/drop.html", "19990101000000")
	if err != nil {
		t.Fatalf("failed to get entry: %v", err)
	}
	if dropped != nil {
		t.Error("expected filtered link not to be enqueued")
	}
}
