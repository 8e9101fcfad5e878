// Package pipeline runs the per-page steps of a crawl.
//
// One ledger entry becomes one Job. The default steps are, in order:
//
//  1. fetch_page: fetch the raw capture and decode it to UTF-8
//  2. save_page: write the page under <root>/<domain>/<timestamp>/
//  3. discover_links: enqueue internal links at the same timestamp
//  4. capture_assets: fetch or reuse every referenced asset
//
// Each stage is a Step that receives the Job and fills in its part. The
// pipeline stops at the first failing step; the caller records the entry as
// failed with that error. Asset failures are counted on the Job and never
// fail the page.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. It allows easy addition/removal of steps without modifying core logic
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context between steps
package pipeline
