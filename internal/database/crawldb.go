package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultFileName is the database file name used when only a directory is given.
const DefaultFileName = "archivist.db"

// CrawlDB provides SQLite-based storage for the crawl ledger and asset index.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	// With WAL an interrupted process leaves the last committed state intact.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB at the specified file path.
// If CreateIfNotExists is true, the parent directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbPath string, opts Options) (*CrawlDB, error) {
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a new file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer and the crawler is single-threaded.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- The crawl ledger. rowid preserves discovery order.
	CREATE TABLE IF NOT EXISTS queue (
		url TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		domain TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		local_path TEXT,
		error TEXT,
		discovered_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		fetched_at DATETIME,
		PRIMARY KEY (url, timestamp)
	);

	CREATE INDEX IF NOT EXISTS idx_queue_status ON queue(status);
	CREATE INDEX IF NOT EXISTS idx_queue_domain ON queue(domain, timestamp);

	-- The asset index. content_hash is the physical dedup key.
	CREATE TABLE IF NOT EXISTS assets (
		wayback_url TEXT PRIMARY KEY,
		original_url TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		local_path TEXT NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		mime_type TEXT,
		domain TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		download_count INTEGER NOT NULL DEFAULT 1,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_assets_hash ON assets(content_hash);
	CREATE INDEX IF NOT EXISTS idx_assets_domain ON assets(domain, timestamp);

	-- Settings that must stay stable for the lifetime of the database.
	CREATE TABLE IF NOT EXISTS crawler_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// GetState returns the value stored under key, or "" if the key is unset.
func (cdb *CrawlDB) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := cdb.db.QueryRowContext(ctx, "SELECT value FROM crawler_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read crawler state %q: %w", key, err)
	}
	return value, nil
}

// SetState stores value under key, replacing any previous value.
func (cdb *CrawlDB) SetState(ctx context.Context, key, value string) error {
	_, err := cdb.db.ExecContext(ctx, `
	INSERT INTO crawler_state (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write crawler state %q: %w", key, err)
	}
	return nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseNullTimestamp parses a nullable DATETIME column.
func parseNullTimestamp(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	return parseTimestamp(s.String)
}
