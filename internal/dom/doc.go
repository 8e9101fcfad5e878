// Package dom is the typed HTML document model shared by the extractor and
// the rewriter.
//
// A Document is parsed once and queried by tag name plus an attribute
// predicate. Elements expose typed attribute access and in-place mutation;
// Render serializes the (possibly modified) tree back to HTML.
//
// The package also decodes captured pages to UTF-8 using the charset from
// the Content-Type header or the document's own meta tags, and scans CSS
// text for url(...) references.
package dom
