package extractor

import (
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/nao1215/archivist/internal/dom"
	"github.com/nao1215/archivist/internal/model"
	"github.com/nao1215/archivist/internal/wayback"
)

// AssetRef is one asset referenced by a page.
type AssetRef struct {
	// URL is the absolute original URL of the asset.
	URL string

	// Kind selects the replay modifier used to fetch it.
	Kind model.AssetKind

	// External is true when the asset is hosted outside the crawled domain.
	External bool
}

// Extractor pulls links and assets out of pages of one domain.
type Extractor struct {
	domain string
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used to report skipped references.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New creates an Extractor for domain (without any www. prefix).
func New(domain string, opts ...Option) *Extractor {
	e := &Extractor{
		domain: strings.ToLower(strings.TrimPrefix(domain, "www.")),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// linkSources are the elements whose targets are pages.
var linkSources = []struct {
	tag  string
	attr string
}{
	{"a", "href"},
	{"area", "href"},
	{"frame", "src"},
	{"iframe", "src"},
}

// Links returns the internal page URLs referenced by doc, deduplicated,
// without fragments and sorted.
func (e *Extractor) Links(doc *dom.Document, baseURL string) []string {
	base, ok := e.documentBase(doc, baseURL)
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	for _, src := range linkSources {
		doc.Each(src.tag, dom.HasAttr(src.attr), func(el *dom.Element) {
			u, ok := e.resolve(base, el.AttrOr(src.attr))
			if !ok || !e.IsInternal(u) {
				return
			}
			seen[u.String()] = true
		})
	}

	links := make([]string, 0, len(seen))
	for l := range seen {
		links = append(links, l)
	}
	sort.Strings(links)
	return links
}

// Assets returns the assets referenced by doc in document order, each URL once.
func (e *Extractor) Assets(doc *dom.Document, baseURL string) []AssetRef {
	base, ok := e.documentBase(doc, baseURL)
	if !ok {
		return nil
	}

	var refs []AssetRef
	seen := make(map[string]bool)
	add := func(raw string, kind model.AssetKind) {
		u, ok := e.resolve(base, raw)
		if !ok {
			return
		}
		key := u.String()
		if seen[key] {
			return
		}
		seen[key] = true
		refs = append(refs, AssetRef{URL: key, Kind: kind, External: !e.IsInternal(u)})
	}

	for _, tag := range []string{"img", "source"} {
		doc.Each(tag, nil, func(el *dom.Element) {
			if src := el.AttrOr("src"); strings.TrimSpace(src) != "" {
				add(src, model.KindImage)
				return
			}
			if src := firstSrcset(el.AttrOr("srcset")); src != "" {
				add(src, model.KindImage)
			}
		})
	}
	doc.Each("link", dom.AttrHasWord("rel", "stylesheet"), func(el *dom.Element) {
		add(el.AttrOr("href"), model.KindStylesheet)
	})
	doc.Each("link", dom.AttrHasWord("rel", "icon"), func(el *dom.Element) {
		add(el.AttrOr("href"), model.KindImage)
	})
	doc.Each("script", dom.HasAttr("src"), func(el *dom.Element) {
		add(el.AttrOr("src"), model.KindScript)
	})
	doc.Each("*", dom.HasAttr("style"), func(el *dom.Element) {
		for _, ref := range dom.CSSURLs(el.AttrOr("style")) {
			add(ref, model.KindImage)
		}
	})
	doc.Each("style", nil, func(el *dom.Element) {
		for _, ref := range dom.CSSURLs(el.Text()) {
			add(ref, model.KindImage)
		}
	})
	doc.Each("*", dom.HasAttr("background"), func(el *dom.Element) {
		add(el.AttrOr("background"), model.KindImage)
	})
	doc.Each("embed", dom.HasAttr("src"), func(el *dom.Element) {
		add(el.AttrOr("src"), model.KindOther)
	})
	doc.Each("object", dom.HasAttr("data"), func(el *dom.Element) {
		add(el.AttrOr("data"), model.KindOther)
	})
	doc.Each("input", dom.AttrEquals("type", "image"), func(el *dom.Element) {
		add(el.AttrOr("src"), model.KindImage)
	})

	return refs
}

// IsInternal reports whether u is hosted on the crawled domain or its www.
// variant. Ports are ignored.
func (e *Extractor) IsInternal(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	return host == e.domain || host == "www."+e.domain
}

// documentBase returns the URL references resolve against: the first
// <base href> of doc resolved against pageURL, else pageURL itself.
func (e *Extractor) documentBase(doc *dom.Document, pageURL string) (*url.URL, bool) {
	page, err := url.Parse(pageURL)
	if err != nil {
		e.logger.Warn("invalid base URL", "url", pageURL, "error", err)
		return nil, false
	}

	var href string
	found := false
	doc.Each("base", dom.HasAttr("href"), func(el *dom.Element) {
		if !found {
			href, found = el.AttrOr("href"), true
		}
	})
	if !found {
		return page, true
	}

	base, ok := e.resolve(page, href)
	if !ok {
		e.logger.Debug("ignoring unusable base href", "href", href)
		return page, true
	}
	return base, true
}

// resolve turns a raw reference into an absolute http(s) URL without fragment.
func (e *Extractor) resolve(base *url.URL, raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw[0] == '#' || hasScheme(raw, "data:", "javascript:", "mailto:", "tel:") {
		return nil, false
	}

	if r, err := wayback.ParseURL(raw); err == nil {
		raw = r.Original
	}

	ref, err := url.Parse(raw)
	if err != nil {
		e.logger.Debug("skipping malformed reference", "ref", raw, "error", err)
		return nil, false
	}

	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.Host == "" {
		e.logger.Debug("skipping reference without host", "ref", raw)
		return nil, false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u, true
}

// hasScheme reports whether s starts with any of the prefixes, ignoring case.
func hasScheme(s string, prefixes ...string) bool {
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// firstSrcset returns the URL of the first srcset candidate.
func firstSrcset(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ExtractLinks parses html and returns its internal page links.
func ExtractLinks(html, baseURL, domain string) ([]string, error) {
	doc, err := dom.ParseString(html)
	if err != nil {
		return nil, err
	}
	return New(domain).Links(doc, baseURL), nil
}

// ExtractAssets parses html and returns its asset references.
func ExtractAssets(html, baseURL, domain string) ([]AssetRef, error) {
	doc, err := dom.ParseString(html)
	if err != nil {
		return nil, err
	}
	return New(domain).Assets(doc, baseURL), nil
}
