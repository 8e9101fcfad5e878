package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/archivist/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *CrawlDB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), DefaultFileName), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// mustEntry builds a valid queue entry or fails the test.
func mustEntry(t *testing.T, url, ts string) *model.QueueEntry {
	t.Helper()

	entry, err := model.NewQueueEntry(url, ts, "example.com")
	if err != nil {
		t.Fatalf("failed to build entry: %v", err)
	}
	return entry
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbPath := filepath.Join(t.TempDir(), "newdir", "subdir", "crawl.db")
		db, err := Open(dbPath, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("expected path %q, got %q", dbPath, db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbPath := filepath.Join(t.TempDir(), "missing", "crawl.db")
		_, err := Open(dbPath, Options{CreateIfNotExists: false, EnableWAL: true})
		if err == nil {
			t.Fatal("expected error when CreateIfNotExists=false and database does not exist")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("expected informative error, got %q", err.Error())
		}
		if _, statErr := os.Stat(filepath.Dir(dbPath)); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		dbPath := filepath.Join(t.TempDir(), "crawl.db")

		db1, err := Open(dbPath, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		if _, err := db1.Enqueue(ctx, mustEntry(t, "http://www.example.com/", "19990101000000")); err != nil {
			t.Fatalf("failed to enqueue: %v", err)
		}
		db1.Close()

		db2, err := Open(dbPath, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		defer db2.Close()

		entry, err := db2.GetEntry(ctx, "http://www.example.com/", "19990101000000")
		if err != nil {
			t.Fatalf("failed to get entry: %v", err)
		}
		if entry == nil {
			t.Error("expected entry to persist across reopen")
		}
	})
}

// TestDefaultOptions tests the default options values.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists {
		t.Error("expected CreateIfNotExists to be true by default")
	}
	if !opts.EnableWAL {
		t.Error("expected EnableWAL to be true by default")
	}
}

func TestEnqueue(t *testing.T) {
	t.Parallel()

	t.Run("enqueue twice yields one row", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := setupTestDB(t)
		entry := mustEntry(t, "http://www.example.com/", "19990101000000")

		created, err := db.Enqueue(ctx, entry)
		if err != nil {
			t.Fatalf("first enqueue failed: %v", err)
		}
		if !created {
			t.Error("expected first enqueue to create a row")
		}

		created, err = db.Enqueue(ctx, entry)
		if err != nil {
			t.Fatalf("second enqueue failed: %v", err)
		}
		if created {
			t.Error("expected second enqueue to be a no-op")
		}

		entries, err := db.ListEntries(ctx, "")
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected 1 row, got %d", len(entries))
		}
	})

	t.Run("enqueue does not reset a terminal entry", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := setupTestDB(t)
		entry := mustEntry(t, "http://www.example.com/a.html", "19990101000000")

		if _, err := db.Enqueue(ctx, entry); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
		if err := db.MarkCompleted(ctx, entry.URL, entry.Timestamp, "/tmp/a.html"); err != nil {
			t.Fatalf("mark completed failed: %v", err)
		}
		if _, err := db.Enqueue(ctx, entry); err != nil {
			t.Fatalf("re-enqueue failed: %v", err)
		}

		got, err := db.GetEntry(ctx, entry.URL, entry.Timestamp)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Status != model.StatusCompleted {
			t.Errorf("expected status completed, got %s", got.Status)
		}
		if got.LocalPath != "/tmp/a.html" {
			t.Errorf("expected local path to be kept, got %q", got.LocalPath)
		}
	})

	t.Run("same url at different timestamps are distinct", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := setupTestDB(t)

		for _, ts := range []string{"19990101000000", "20000101000000"} {
			if _, err := db.Enqueue(ctx, mustEntry(t, "http://www.example.com/", ts)); err != nil {
				t.Fatalf("enqueue failed: %v", err)
			}
		}

		stats, err := db.Stats(ctx)
		if err != nil {
			t.Fatalf("stats failed: %v", err)
		}
		if stats[model.StatusPending] != 2 {
			t.Errorf("expected 2 pending, got %d", stats[model.StatusPending])
		}
	})
}

func TestNextPending(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when empty", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		entry, err := db.NextPending(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry != nil {
			t.Errorf("expected nil, got %+v", entry)
		}
	})

	t.Run("returns entries in discovery order", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := setupTestDB(t)
		urls := []string{
			"http://www.example.com/c.html",
			"http://www.example.com/a.html",
			"http://www.example.com/b.html",
		}
		for _, u := range urls {
			if _, err := db.Enqueue(ctx, mustEntry(t, u, "19990101000000")); err != nil {
				t.Fatalf("enqueue failed: %v", err)
			}
		}

		for _, want := range urls {
			entry, err := db.NextPending(ctx)
			if err != nil {
				t.Fatalf("next pending failed: %v", err)
			}
			if entry == nil {
				t.Fatalf("expected %s, got nil", want)
			}
			if entry.URL != want {
				t.Errorf("expected %s, got %s", want, entry.URL)
			}
			if entry.DiscoveredAt.IsZero() {
				t.Error("expected discovered_at to be set")
			}
			if err := db.MarkCompleted(ctx, entry.URL, entry.Timestamp, "/tmp/x"); err != nil {
				t.Fatalf("mark failed: %v", err)
			}
		}

		entry, err := db.NextPending(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry != nil {
			t.Errorf("expected no pending entries, got %s", entry.URL)
		}
	})
}

func TestNextPendingFor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)
	entries := []struct{ url, domain string }{
		{"http://www.other.org/", "other.org"},
		{"http://www.example.com/", "example.com"},
		{"http://www.other.org/b.html", "other.org"},
	}
	for _, e := range entries {
		entry, err := model.NewQueueEntry(e.url, "19990101000000", e.domain)
		if err != nil {
			t.Fatalf("failed to build entry: %v", err)
		}
		if _, err := db.Enqueue(ctx, entry); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	t.Run("limits to the domain", func(t *testing.T) {
		t.Parallel()

		entry, err := db.NextPendingFor(ctx, "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry == nil || entry.URL != "http://www.example.com/" {
			t.Errorf("expected example.com entry, got %+v", entry)
		}
	})

	t.Run("empty domain matches all", func(t *testing.T) {
		t.Parallel()

		entry, err := db.NextPendingFor(ctx, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry == nil || entry.URL != "http://www.other.org/" {
			t.Errorf("expected oldest entry, got %+v", entry)
		}
	})

	t.Run("unknown domain has nothing pending", func(t *testing.T) {
		t.Parallel()

		entry, err := db.NextPendingFor(ctx, "nowhere.net")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry != nil {
			t.Errorf("expected nil, got %+v", entry)
		}
	})
}

func TestMarkTerminal(t *testing.T) {
	t.Parallel()

	t.Run("mark failed records reason", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := setupTestDB(t)
		entry := mustEntry(t, "http://www.example.com/", "19990101000000")
		if _, err := db.Enqueue(ctx, entry); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}

		if err := db.MarkFailed(ctx, entry.URL, entry.Timestamp, "not found"); err != nil {
			t.Fatalf("mark failed: %v", err)
		}

		got, err := db.GetEntry(ctx, entry.URL, entry.Timestamp)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Status != model.StatusFailed {
			t.Errorf("expected failed, got %s", got.Status)
		}
		if got.Error != "not found" {
			t.Errorf("expected reason 'not found', got %q", got.Error)
		}
		if got.FetchedAt.IsZero() {
			t.Error("expected fetched_at to be set")
		}
	})

	t.Run("re-marking overwrites outcome", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := setupTestDB(t)
		entry := mustEntry(t, "http://www.example.com/", "19990101000000")
		if _, err := db.Enqueue(ctx, entry); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
		if err := db.MarkFailed(ctx, entry.URL, entry.Timestamp, "timeout"); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
		if err := db.MarkCompleted(ctx, entry.URL, entry.Timestamp, "/tmp/index.html"); err != nil {
			t.Fatalf("mark completed: %v", err)
		}

		got, err := db.GetEntry(ctx, entry.URL, entry.Timestamp)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Status != model.StatusCompleted {
			t.Errorf("expected completed, got %s", got.Status)
		}
		if got.Error != "" {
			t.Errorf("expected error to be cleared, got %q", got.Error)
		}
	})

	t.Run("unknown entry returns ErrEntryNotFound", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		err := db.MarkCompleted(context.Background(), "http://nowhere/", "19990101000000", "/tmp/x")
		if !errors.Is(err, ErrEntryNotFound) {
			t.Errorf("expected ErrEntryNotFound, got %v", err)
		}
	})
}

func TestResumeAfterReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "crawl.db")

	db, err := Open(dbPath, DefaultOptions())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	for _, u := range []string{"http://www.example.com/a", "http://www.example.com/b"} {
		if _, err := db.Enqueue(ctx, mustEntry(t, u, "19990101000000")); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}
	if err := db.MarkCompleted(ctx, "http://www.example.com/a", "19990101000000", "/tmp/a"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	// Simulate a process killed after the first commit.
	db.Close()

	db, err = Open(dbPath, DefaultOptions())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	next, err := db.NextPending(ctx)
	if err != nil {
		t.Fatalf("next pending failed: %v", err)
	}
	if next == nil || next.URL != "http://www.example.com/b" {
		t.Fatalf("expected b to still be pending, got %+v", next)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats[model.StatusCompleted] != 1 || stats[model.StatusPending] != 1 || stats[model.StatusFailed] != 0 {
		t.Errorf("unexpected stats after resume: %v", stats)
	}
}

func TestRequeueFailed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)
	for _, u := range []string{"http://www.example.com/a", "http://www.example.com/b", "http://www.example.com/c"} {
		if _, err := db.Enqueue(ctx, mustEntry(t, u, "19990101000000")); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}
	if err := db.MarkFailed(ctx, "http://www.example.com/a", "19990101000000", "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := db.MarkCompleted(ctx, "http://www.example.com/b", "19990101000000", "/tmp/b"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	t.Run("recent failures are kept when a cooldown applies", func(t *testing.T) {
		n, err := db.RequeueFailed(ctx, 24*time.Hour)
		if err != nil {
			t.Fatalf("requeue failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0 requeued, got %d", n)
		}
	})

	t.Run("zero cooldown requeues every failure", func(t *testing.T) {
		n, err := db.RequeueFailed(ctx, 0)
		if err != nil {
			t.Fatalf("requeue failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 requeued, got %d", n)
		}

		got, err := db.GetEntry(ctx, "http://www.example.com/a", "19990101000000")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Status != model.StatusPending || got.Error != "" {
			t.Errorf("expected pending with cleared error, got %s %q", got.Status, got.Error)
		}
	})
}

func TestSnapshotSummaries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)
	for _, ts := range []string{"20000101000000", "19990101000000"} {
		for _, u := range []string{"http://www.example.com/a", "http://www.example.com/b"} {
			if _, err := db.Enqueue(ctx, mustEntry(t, u, ts)); err != nil {
				t.Fatalf("enqueue failed: %v", err)
			}
		}
	}
	if err := db.MarkCompleted(ctx, "http://www.example.com/a", "19990101000000", "/tmp/a"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	summaries, err := db.SnapshotSummaries(ctx, "example.com")
	if err != nil {
		t.Fatalf("summaries failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(summaries))
	}
	if summaries[0].Timestamp != "19990101000000" {
		t.Errorf("expected oldest first, got %s", summaries[0].Timestamp)
	}
	if summaries[0].Completed != 1 || summaries[0].Pending != 1 || summaries[0].Total() != 2 {
		t.Errorf("unexpected summary %+v", summaries[0])
	}
}

func TestCrawlerState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	value, err := db.GetState(ctx, "hash_algorithm")
	if err != nil {
		t.Fatalf("get state failed: %v", err)
	}
	if value != "" {
		t.Errorf("expected empty value, got %q", value)
	}

	if err := db.SetState(ctx, "hash_algorithm", "sha256"); err != nil {
		t.Fatalf("set state failed: %v", err)
	}
	if err := db.SetState(ctx, "hash_algorithm", "blake2b"); err != nil {
		t.Fatalf("set state failed: %v", err)
	}

	value, err = db.GetState(ctx, "hash_algorithm")
	if err != nil {
		t.Fatalf("get state failed: %v", err)
	}
	if value != "blake2b" {
		t.Errorf("expected blake2b, got %q", value)
	}
}
