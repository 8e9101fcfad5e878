// Package rewriter turns captured pages into an offline-browsable copy.
//
// Rewrite maps every asset reference in a page to the local asset tree:
//
//	data:, #fragment, javascript:, mailto:  unchanged
//	http(s)://host[:port]/path              assets/external/host[:port]/path
//	relative or root-relative path          assets/external/www.<domain>:80/path
//
// The Reconstructor applies Rewrite to every captured HTML file of a domain
// and writes the result under <timestamp>/_viewable/. Captured files are
// never modified. It also writes a timeline index at <root>/<domain>/index.html
// listing every snapshot grouped by year.
package rewriter
