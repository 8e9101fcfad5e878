package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/archivist/internal/model"
)

// queueColumns is the column list shared by all ledger SELECTs.
const queueColumns = `url, timestamp, domain, status, local_path, error, discovered_at, fetched_at`

// Enqueue inserts a pending ledger entry for (url, timestamp).
// If the pair already exists the call is a no-op, whatever the existing
// status is: discovery never overwrites an entry that is in flight or terminal.
// It reports whether a new row was created.
func (cdb *CrawlDB) Enqueue(ctx context.Context, entry *model.QueueEntry) (bool, error) {
	result, err := cdb.db.ExecContext(ctx, `
	INSERT INTO queue (url, timestamp, domain, status)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(url, timestamp) DO NOTHING
	`,
		entry.URL,
		entry.Timestamp,
		entry.Domain,
		model.StatusPending.String(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue %s@%s: %w", entry.URL, entry.Timestamp, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read enqueue result: %w", err)
	}
	return n > 0, nil
}

// NextPending returns the oldest pending entry of any domain in discovery
// order, or nil when no pending entries remain.
func (cdb *CrawlDB) NextPending(ctx context.Context) (*model.QueueEntry, error) {
	return cdb.NextPendingFor(ctx, "")
}

// NextPendingFor is NextPending limited to one domain. An empty domain
// matches every entry.
func (cdb *CrawlDB) NextPendingFor(ctx context.Context, domain string) (*model.QueueEntry, error) {
	row := cdb.db.QueryRowContext(ctx, `
	SELECT `+queueColumns+`
	FROM queue
	WHERE status = ? AND (? = '' OR domain = ?)
	ORDER BY rowid
	LIMIT 1
	`, model.StatusPending.String(), domain, domain)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next pending entry: %w", err)
	}
	return entry, nil
}

// GetEntry returns the entry for (url, timestamp), or nil if it does not exist.
func (cdb *CrawlDB) GetEntry(ctx context.Context, url, timestamp string) (*model.QueueEntry, error) {
	row := cdb.db.QueryRowContext(ctx, `
	SELECT `+queueColumns+`
	FROM queue
	WHERE url = ? AND timestamp = ?
	`, url, timestamp)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return entry, nil
}

// MarkCompleted moves an entry to completed and records where the page was saved.
// Calling it on an already terminal entry overwrites the previous outcome.
func (cdb *CrawlDB) MarkCompleted(ctx context.Context, url, timestamp, localPath string) error {
	return cdb.markTerminal(ctx, url, timestamp, model.StatusCompleted, localPath, "")
}

// MarkFailed moves an entry to failed and records the reason.
// Calling it on an already terminal entry overwrites the previous outcome.
func (cdb *CrawlDB) MarkFailed(ctx context.Context, url, timestamp, reason string) error {
	return cdb.markTerminal(ctx, url, timestamp, model.StatusFailed, "", reason)
}

// markTerminal performs the single-statement terminal transition.
func (cdb *CrawlDB) markTerminal(ctx context.Context, url, timestamp string, status model.Status, localPath, reason string) error {
	result, err := cdb.db.ExecContext(ctx, `
	UPDATE queue
	SET status = ?, local_path = ?, error = ?, fetched_at = CURRENT_TIMESTAMP
	WHERE url = ? AND timestamp = ?
	`,
		status.String(),
		nullString(localPath),
		nullString(reason),
		url,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to mark %s@%s %s: %w", url, timestamp, status, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s@%s", ErrEntryNotFound, url, timestamp)
	}
	return nil
}

// Stats returns the number of ledger entries per status.
// Every status is present in the result, with zero when there are no entries.
func (cdb *CrawlDB) Stats(ctx context.Context) (map[model.Status]int, error) {
	return cdb.statsWhere(ctx, "", nil)
}

// DomainStats is Stats restricted to a single domain.
func (cdb *CrawlDB) DomainStats(ctx context.Context, domain string) (map[model.Status]int, error) {
	return cdb.statsWhere(ctx, "WHERE domain = ?", []any{domain})
}

func (cdb *CrawlDB) statsWhere(ctx context.Context, where string, args []any) (map[model.Status]int, error) {
	rows, err := cdb.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM queue "+where+" GROUP BY status", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[model.Status]int, len(model.AllStatuses))
	for _, s := range model.AllStatuses {
		stats[s] = 0
	}

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan ledger stats: %w", err)
		}
		s, err := model.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		stats[s] = count
	}

	return stats, rows.Err()
}

// ListEntries returns entries with the given status in discovery order.
// An empty status returns every entry.
func (cdb *CrawlDB) ListEntries(ctx context.Context, status model.Status) ([]*model.QueueEntry, error) {
	query := "SELECT " + queueColumns + " FROM queue"
	args := make([]any, 0, 1)
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status.String())
	}
	query += " ORDER BY rowid"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.QueueEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RequeueFailed moves failed entries back to pending so the next crawl retries them.
// Only entries that failed at least olderThan ago are moved; zero moves all of them.
// It returns the number of entries requeued.
func (cdb *CrawlDB) RequeueFailed(ctx context.Context, olderThan time.Duration) (int64, error) {
	modifier := fmt.Sprintf("-%d seconds", int64(olderThan.Seconds()))

	result, err := cdb.db.ExecContext(ctx, `
	UPDATE queue
	SET status = ?, error = NULL, local_path = NULL
	WHERE status = ? AND (fetched_at IS NULL OR fetched_at <= datetime('now', ?))
	`,
		model.StatusPending.String(),
		model.StatusFailed.String(),
		modifier,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue failed entries: %w", err)
	}
	return result.RowsAffected()
}

// SnapshotSummary is the ledger breakdown for one snapshot timestamp.
type SnapshotSummary struct {
	Timestamp string
	Pending   int
	Completed int
	Failed    int
}

// Total returns the number of entries in the snapshot.
func (s SnapshotSummary) Total() int {
	return s.Pending + s.Completed + s.Failed
}

// SnapshotSummaries returns per-timestamp ledger counts for a domain, oldest first.
func (cdb *CrawlDB) SnapshotSummaries(ctx context.Context, domain string) ([]SnapshotSummary, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT timestamp,
		SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END)
	FROM queue
	WHERE domain = ?
	GROUP BY timestamp
	ORDER BY timestamp
	`, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize snapshots: %w", err)
	}
	defer rows.Close()

	var results []SnapshotSummary
	for rows.Next() {
		var s SnapshotSummary
		if err := rows.Scan(&s.Timestamp, &s.Pending, &s.Completed, &s.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot summary: %w", err)
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry reads one ledger row selected with queueColumns.
func scanEntry(row rowScanner) (*model.QueueEntry, error) {
	var entry model.QueueEntry
	var status string
	var localPath, errMsg, discoveredAt, fetchedAt sql.NullString

	if err := row.Scan(
		&entry.URL,
		&entry.Timestamp,
		&entry.Domain,
		&status,
		&localPath,
		&errMsg,
		&discoveredAt,
		&fetchedAt,
	); err != nil {
		return nil, err
	}

	s, err := model.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	entry.Status = s
	entry.LocalPath = localPath.String
	entry.Error = errMsg.String
	entry.DiscoveredAt = parseNullTimestamp(discoveredAt)
	entry.FetchedAt = parseNullTimestamp(fetchedAt)

	return &entry, nil
}

// nullString maps "" to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
