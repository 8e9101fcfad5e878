package pipeline

import (
	"github.com/nao1215/archivist/internal/dom"
	"github.com/nao1215/archivist/internal/extractor"
	"github.com/nao1215/archivist/internal/model"
)

// Job is one ledger entry moving through the pipeline.
type Job struct {
	// Entry is the ledger entry being processed.
	Entry *model.QueueEntry

	// ContentType is the Content-Type of the fetched page.
	ContentType string

	// Charset is the encoding the page was decoded from.
	Charset string

	// HTML is the page decoded to UTF-8.
	HTML string

	// Doc is the parsed page.
	Doc *dom.Document

	// LocalPath is where the page was saved.
	LocalPath string

	// Links are the internal links found on the page.
	Links []string

	// Assets are the asset references found on the page.
	Assets []extractor.AssetRef

	// Stats counts what the steps did.
	Stats JobStats

	// PerformedSteps lists the steps that completed, in order.
	PerformedSteps []string
}

// NewJob creates a Job for entry.
func NewJob(entry *model.QueueEntry) *Job {
	return &Job{Entry: entry}
}

// JobStats are the per-page counters.
type JobStats struct {
	// FetchAttempts is the number of requests the page fetch took.
	FetchAttempts int

	// LinksDiscovered is the number of internal links found.
	LinksDiscovered int

	// LinksEnqueued is the number of those that were new to the ledger.
	LinksEnqueued int

	// AssetsFetched is the number of assets downloaded and written.
	AssetsFetched int

	// AssetsCached is the number of assets already stored under their URL.
	AssetsCached int

	// AssetsDeduped is the number of downloaded assets whose bytes were
	// already stored under another URL.
	AssetsDeduped int

	// AssetsFailed is the number of assets that could not be fetched or stored.
	AssetsFailed int

	// AssetBytes is the number of asset bytes downloaded.
	AssetBytes int64
}

// Apply adds the job's counters to the run totals.
func (s JobStats) Apply(stats *model.CrawlStats) {
	stats.LinksDiscovered += s.LinksEnqueued
	stats.AssetsFetched += s.AssetsFetched
	stats.AssetsCached += s.AssetsCached
	stats.AssetsDeduped += s.AssetsDeduped
	stats.AssetsFailed += s.AssetsFailed
}
