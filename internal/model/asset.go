package model

import "time"

// Asset is one row of the asset index.
//
// The index is keyed by WaybackURL, but physical storage is keyed by
// ContentHash: every Asset sharing a hash shares a LocalPath.
type Asset struct {
	// WaybackURL is the full remote URL including timestamp and modifier.
	WaybackURL string `json:"wayback_url"`

	// OriginalURL is the URL the captured page referenced.
	OriginalURL string `json:"original_url"`

	// ContentHash is the hex digest of the asset bytes.
	ContentHash string `json:"content_hash"`

	// LocalPath is where the bytes live on disk.
	LocalPath string `json:"local_path"`

	// SizeBytes is the length of the content.
	SizeBytes int64 `json:"size_bytes"`

	// MimeType is the Content-Type reported by the archive, if any.
	MimeType string `json:"mime_type,omitempty"`

	// Domain is the crawled domain the asset was discovered under.
	Domain string `json:"domain"`

	// Timestamp is the snapshot timestamp the asset was requested at.
	Timestamp string `json:"timestamp"`

	// DownloadCount is the number of times this Wayback URL was resolved.
	// It starts at 1 and only grows.
	DownloadCount int `json:"download_count"`

	// FetchedAt is when the row was first written.
	FetchedAt time.Time `json:"fetched_at"`
}

// NewAsset creates an Asset row with a download count of one.
func NewAsset(waybackURL, originalURL, contentHash, localPath string, size int64) (*Asset, error) {
	if waybackURL == "" || originalURL == "" {
		return nil, ErrEmptyURL
	}
	if contentHash == "" {
		return nil, ErrEmptyHash
	}
	if localPath == "" {
		return nil, ErrEmptyLocalPath
	}
	return &Asset{
		WaybackURL:    waybackURL,
		OriginalURL:   originalURL,
		ContentHash:   contentHash,
		LocalPath:     localPath,
		SizeBytes:     size,
		DownloadCount: 1,
	}, nil
}

// Validate checks the invariants of an asset loaded or built elsewhere.
func (a *Asset) Validate() error {
	if a.WaybackURL == "" {
		return ErrEmptyURL
	}
	if a.ContentHash == "" {
		return ErrEmptyHash
	}
	if a.LocalPath == "" {
		return ErrEmptyLocalPath
	}
	if a.DownloadCount < 1 {
		return ErrInvalidDownloadCount
	}
	return nil
}

// Touch records one more cache hit for the asset.
func (a *Asset) Touch() {
	a.DownloadCount++
}
