package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nao1215/archivist/internal/model"
)

// assetColumns is the column list shared by all asset SELECTs.
const assetColumns = `wayback_url, original_url, content_hash, local_path, size_bytes, mime_type, domain, timestamp, download_count, fetched_at`

// GetAsset returns the asset row for a Wayback URL, or nil if there is none.
func (cdb *CrawlDB) GetAsset(ctx context.Context, waybackURL string) (*model.Asset, error) {
	row := cdb.db.QueryRowContext(ctx, "SELECT "+assetColumns+" FROM assets WHERE wayback_url = ?", waybackURL)

	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return asset, nil
}

// LocalPathsByHash returns the distinct local paths recorded for a content hash.
// In a consistent database there is at most one, but a path whose file was
// removed by hand may have been superseded, so callers check each on disk.
func (cdb *CrawlDB) LocalPathsByHash(ctx context.Context, contentHash string) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT local_path FROM assets
	WHERE content_hash = ?
	GROUP BY local_path
	ORDER BY MIN(rowid)
	`, contentHash)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets by hash: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan asset path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// UpsertAsset records an asset row.
// A new Wayback URL is inserted with its download count; an existing one has
// its content fields replaced and its download count incremented.
func (cdb *CrawlDB) UpsertAsset(ctx context.Context, asset *model.Asset) error {
	if err := asset.Validate(); err != nil {
		return fmt.Errorf("invalid asset %s: %w", asset.WaybackURL, err)
	}

	_, err := cdb.db.ExecContext(ctx, `
	INSERT INTO assets (wayback_url, original_url, content_hash, local_path, size_bytes, mime_type, domain, timestamp, download_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(wayback_url) DO UPDATE SET
		original_url = excluded.original_url,
		content_hash = excluded.content_hash,
		local_path = excluded.local_path,
		size_bytes = excluded.size_bytes,
		mime_type = excluded.mime_type,
		download_count = assets.download_count + 1,
		fetched_at = CURRENT_TIMESTAMP
	`,
		asset.WaybackURL,
		asset.OriginalURL,
		asset.ContentHash,
		asset.LocalPath,
		asset.SizeBytes,
		nullString(asset.MimeType),
		asset.Domain,
		asset.Timestamp,
		asset.DownloadCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert asset: %w", err)
	}
	return nil
}

// IncrementDownloadCount records a cache hit for a Wayback URL.
func (cdb *CrawlDB) IncrementDownloadCount(ctx context.Context, waybackURL string) error {
	result, err := cdb.db.ExecContext(ctx,
		"UPDATE assets SET download_count = download_count + 1 WHERE wayback_url = ?", waybackURL)
	if err != nil {
		return fmt.Errorf("failed to increment download count: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, waybackURL)
	}
	return nil
}

// AssetSummary aggregates the asset index for one domain.
type AssetSummary struct {
	// Rows is the number of distinct Wayback URLs.
	Rows int

	// Files is the number of distinct files on disk.
	Files int

	// StoredBytes is the size of the distinct files.
	StoredBytes int64

	// ReferencedBytes is the size the archive would use without dedup.
	ReferencedBytes int64

	// Downloads is the sum of download counts.
	Downloads int
}

// SavedBytes returns the bytes avoided by content deduplication.
func (s AssetSummary) SavedBytes() int64 {
	return s.ReferencedBytes - s.StoredBytes
}

// AssetSummary returns asset index totals for a domain.
// An empty domain summarizes the whole index.
func (cdb *CrawlDB) AssetSummary(ctx context.Context, domain string) (AssetSummary, error) {
	where := ""
	args := make([]any, 0, 2)
	if domain != "" {
		where = "WHERE domain = ?"
		args = append(args, domain)
	}

	var s AssetSummary
	err := cdb.db.QueryRowContext(ctx, `
	SELECT COUNT(*), COALESCE(SUM(size_bytes), 0), COALESCE(SUM(download_count), 0)
	FROM assets `+where, args...).Scan(&s.Rows, &s.ReferencedBytes, &s.Downloads)
	if err != nil {
		return s, fmt.Errorf("failed to summarize assets: %w", err)
	}

	err = cdb.db.QueryRowContext(ctx, `
	SELECT COUNT(*), COALESCE(SUM(size), 0) FROM (
		SELECT local_path, MAX(size_bytes) AS size FROM assets `+where+` GROUP BY local_path
	)`, args...).Scan(&s.Files, &s.StoredBytes)
	if err != nil {
		return s, fmt.Errorf("failed to summarize asset files: %w", err)
	}

	return s, nil
}

// scanAsset reads one asset row selected with assetColumns.
func scanAsset(row rowScanner) (*model.Asset, error) {
	var a model.Asset
	var mimeType, fetchedAt sql.NullString

	if err := row.Scan(
		&a.WaybackURL,
		&a.OriginalURL,
		&a.ContentHash,
		&a.LocalPath,
		&a.SizeBytes,
		&mimeType,
		&a.Domain,
		&a.Timestamp,
		&a.DownloadCount,
		&fetchedAt,
	); err != nil {
		return nil, err
	}

	a.MimeType = mimeType.String
	a.FetchedAt = parseNullTimestamp(fetchedAt)
	return &a, nil
}
