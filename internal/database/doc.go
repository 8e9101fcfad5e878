// Package database provides SQLite-based storage for archivist.
//
// This package implements the CrawlDB, which stores:
//   - The crawl ledger: one row per (url, timestamp) with its crawl status
//   - The asset index: one row per Wayback URL with its content hash and local path
//   - A small key/value table for run-independent settings (hash algorithm)
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. No external dependencies - the database is a single file next to the archive
// 2. CGO-free implementation allows easy cross-compilation
// 3. Every statement commits atomically, which is what makes crawls resumable
// 4. WAL mode survives the process being killed between two statements
//
// Only one process may write to a database at a time. Concurrent crawler
// instances against the same file are not supported.
package database
