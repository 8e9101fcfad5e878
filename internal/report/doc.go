// Package report renders crawl progress for humans and tools.
//
// Two documents are produced:
//   - Status: a snapshot of the ledger and the asset index, built by Collect
//   - Summary: the counters of one crawl run, printed when the run ends
//
// Writers implement the Writer interface so the CLI can pick a format
// (plain text, Markdown, JSON) or fan out to several with MultiWriter.
//
// Design decision: Report data lives in this package rather than in model
// because it is assembled from several database queries and exists only
// for output. The model package stays limited to what the ledger persists.
package report
