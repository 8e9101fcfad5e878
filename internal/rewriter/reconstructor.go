package rewriter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ViewableDir is the per-snapshot directory holding rewritten pages.
const ViewableDir = "_viewable"

// TimelineFile is the timeline index written at the domain root.
const TimelineFile = "index.html"

// ErrDomainNotFound is returned when the domain has no capture directory.
var ErrDomainNotFound = errors.New("domain directory not found")

// ReconstructStats summarizes a reconstruction pass.
type ReconstructStats struct {
	Snapshots      int
	FilesRewritten int
	URLsRewritten  int
	FilesFailed    int
}

// Reconstructor rewrites every captured page of a domain for offline viewing.
type Reconstructor struct {
	root   string
	domain string
	jobs   int
	logger *slog.Logger
}

// ReconstructorOption configures a Reconstructor.
type ReconstructorOption func(*Reconstructor)

// WithJobs sets how many snapshots are processed at once.
func WithJobs(n int) ReconstructorOption {
	return func(r *Reconstructor) {
		if n > 0 {
			r.jobs = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ReconstructorOption {
	return func(r *Reconstructor) {
		r.logger = logger
	}
}

// NewReconstructor creates a Reconstructor for <root>/<domain>.
func NewReconstructor(root, domain string, opts ...ReconstructorOption) *Reconstructor {
	r := &Reconstructor{
		root:   root,
		domain: domain,
		jobs:   1,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DomainDir returns the directory holding the domain's snapshots.
func (r *Reconstructor) DomainDir() string {
	return filepath.Join(r.root, r.domain)
}

// Snapshots returns the snapshot directory names, oldest first.
// Snapshot directories are the ones whose names start with a digit.
func (r *Reconstructor) Snapshots() ([]string, error) {
	entries, err := os.ReadDir(r.DomainDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDomainNotFound, r.DomainDir())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var timestamps []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() && name != "" && name[0] >= '0' && name[0] <= '9' {
			timestamps = append(timestamps, name)
		}
	}
	sort.Strings(timestamps)
	return timestamps, nil
}

// Run rewrites all snapshots and writes the timeline index.
// A page that fails to rewrite is logged and counted; it does not stop the pass.
func (r *Reconstructor) Run(ctx context.Context) (ReconstructStats, error) {
	timestamps, err := r.Snapshots()
	if err != nil {
		return ReconstructStats{}, err
	}

	r.logger.Info("reconstructing snapshots", "domain", r.domain, "snapshots", len(timestamps), "jobs", r.jobs)

	var files, urls, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.jobs)

	for _, ts := range timestamps {
		g.Go(func() error {
			res, err := r.processSnapshot(gctx, ts)
			files.Add(int64(res.FilesRewritten))
			urls.Add(int64(res.URLsRewritten))
			failed.Add(int64(res.FilesFailed))
			if err != nil {
				return err
			}
			if res.FilesRewritten > 0 {
				r.logger.Info("snapshot rewritten", "timestamp", ts, "files", res.FilesRewritten, "urls", res.URLsRewritten)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ReconstructStats{}, err
	}

	stats := ReconstructStats{
		Snapshots:      len(timestamps),
		FilesRewritten: int(files.Load()),
		URLsRewritten:  int(urls.Load()),
		FilesFailed:    int(failed.Load()),
	}

	if _, err := r.WriteTimeline(timestamps); err != nil {
		return stats, err
	}
	return stats, nil
}

// processSnapshot rewrites the pages of one snapshot into its viewable directory.
func (r *Reconstructor) processSnapshot(ctx context.Context, timestamp string) (ReconstructStats, error) {
	var res ReconstructStats
	snapshotDir := filepath.Join(r.DomainDir(), timestamp)
	viewableDir := filepath.Join(snapshotDir, ViewableDir)

	err := filepath.WalkDir(snapshotDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != snapshotDir && (d.Name() == ViewableDir || d.Name() == "assets") {
				return filepath.SkipDir
			}
			return nil
		}
		if !isHTML(path) {
			return nil
		}

		rel, err := filepath.Rel(snapshotDir, path)
		if err != nil {
			return err
		}
		n, err := rewriteFile(path, filepath.Join(viewableDir, rel), r.domain)
		if err != nil {
			r.logger.Warn("failed to rewrite page", "path", path, "error", err)
			res.FilesFailed++
			return nil
		}
		res.FilesRewritten++
		res.URLsRewritten += n
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("snapshot %s: %w", timestamp, err)
	}
	return res, nil
}

// rewriteFile rewrites src into dst and returns the number of references changed.
func rewriteFile(src, dst, domain string) (int, error) {
	data, err := os.ReadFile(src) //nolint:gosec // path comes from walking the archive
	if err != nil {
		return 0, err
	}

	// Pages are stored as UTF-8; invalid bytes become U+FFFD.
	out, n, err := rewriteHTML(strings.ToValidUTF8(string(data), "�"), domain)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return 0, err
	}
	if err := os.WriteFile(dst, []byte(out), 0600); err != nil {
		return 0, err
	}
	return n, nil
}

func isHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}
