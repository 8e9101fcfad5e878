// Package wayback talks to the Wayback Machine.
//
// It builds replay URLs of the form
//
//	https://web.archive.org/web/<timestamp><modifier>/<original URL>
//
// where the modifier selects the raw rendering for a resource type (id_ for
// pages, im_ for images, cs_ for stylesheets, js_ for scripts). The Fetcher
// issues one request at a time with a bounded retry budget:
//
//   - 404 is permanent and returns ErrNotFound without retrying
//   - 429 waits for the server's Retry-After (60s when absent) and retries
//   - network errors and other statuses back off linearly and retry
//
// The CDXClient lists the captures of a domain for a date range.
package wayback
