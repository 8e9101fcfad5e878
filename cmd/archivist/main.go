// Package main provides the entry point for the archivist CLI.
//
// archivist mirrors the history of a domain from the Wayback Machine into a
// local directory tree that can be browsed offline.
//
// Usage:
//
//	archivist crawl --domain example.com --from 1998 --to 2004
//	archivist reconstruct --domain example.com
//	archivist status --domain example.com
//
// See --help for all available options.
package main

// main is the entry point for archivist.
func main() {
	Execute()
}
