// Package assetstore implements the content-addressed store for page assets.
//
// Every asset is indexed by its Wayback URL but stored on disk by content
// hash: two Wayback URLs whose bytes hash identically share one file. The
// index lives in the crawl database; the bytes live under the snapshot tree:
//
//	<root>/<domain>/<timestamp>/assets/<path>
//	<root>/<domain>/<timestamp>/assets/external/<host>/<path>
//
// Bytes are written to a temporary file and renamed into place before the
// index row is committed, so a committed row never points at a partial file.
//
// # Hash algorithms
//
// SHA-256 is the default. BLAKE2b-256 can be selected instead. The algorithm
// is recorded in the database on first use and a Store refuses to open a
// database that was populated with a different one.
package assetstore
