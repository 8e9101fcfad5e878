package model

import "time"

// CrawlStats holds process-local counters for one crawl run.
// It is never persisted; the ledger is the durable record.
type CrawlStats struct {
	PagesFetched    int
	PagesFailed     int
	LinksDiscovered int
	AssetsFetched   int
	AssetsCached    int
	AssetsDeduped   int
	AssetsFailed    int
	StartedAt       time.Time
}

// NewCrawlStats returns zeroed stats with StartedAt set to now.
func NewCrawlStats() *CrawlStats {
	return &CrawlStats{StartedAt: time.Now()}
}

// Elapsed returns the time since the run started.
func (s *CrawlStats) Elapsed() time.Duration {
	return time.Since(s.StartedAt)
}

// PagesProcessed returns the number of pages that reached a terminal state.
func (s *CrawlStats) PagesProcessed() int {
	return s.PagesFetched + s.PagesFailed
}
