// Package crawler drives the archive crawl.
//
// # Architecture
//
// The Engine owns the loop and nothing else: the Gate decides when a request
// may go out, the Ledger hands out the next pending entry and records its
// outcome, and a pipeline.Pipeline does the per-page work. Exactly one entry
// is in flight at a time.
//
//	for {
//	    gate.AwaitWindow()
//	    entry := ledger.NextPendingFor(domain) // nil: done
//	    pipeline.Execute(entry)                // fetch, save, discover, capture
//	    ledger.MarkCompleted / MarkFailed      // one commit per entry
//	    gate.Politeness()
//	}
//
// A page failure never stops the run; it is recorded on the entry. Only
// cancellation and ledger write errors end Run early. A canceled entry is
// left pending so the next run picks it up again.
//
// # Seeding
//
// The ledger is seeded from a snapshot list file ("timestamp|url" per line)
// or from the CDX captures of the domain's home page. Seeding is idempotent;
// entries already in the ledger keep their status.
//
// # Link filtering
//
// PathFilter applies ignore and follow globs to discovered links before they
// are enqueued.
package crawler
