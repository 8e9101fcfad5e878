// Package scheduler gates crawl requests in time.
//
// A Window restricts requests to a daily wall-clock range such as 22:00 to
// 06:00. The Scheduler blocks until the window opens and inserts a
// randomized delay between requests. Every wait honors context
// cancellation, so an interrupt wakes the crawler immediately.
//
// The clock, the sleep function and the random source are injectable so
// tests never sleep for real.
package scheduler
