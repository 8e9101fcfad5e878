// Package model defines the core data structures used throughout archivist.
//
// This package contains the following main types:
//   - QueueEntry: One row of the crawl ledger, keyed by (url, timestamp)
//   - Asset: One row of the content-addressed asset index, keyed by Wayback URL
//   - AssetKind: The category of a referenced resource (page, image, stylesheet, ...)
//   - CrawlStats: Process-local counters for a single crawl run
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The database, crawler, extractor and report packages all need
// these types, so centralizing them prevents import cycles.
//
// Constructors validate the invariants that the persisted schema relies on.
// Records loaded from the database are trusted and built directly.
package model
