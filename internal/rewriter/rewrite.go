package rewriter

import (
	"net/url"
	"strings"

	"github.com/nao1215/archivist/internal/dom"
)

// externalPrefix is where rewritten references point.
const externalPrefix = "assets/external/"

// passThrough are reference prefixes that are never rewritten.
var passThrough = []string{"data:", "#", "javascript:", "mailto:"}

// RewriteURL maps one reference to its local asset path.
// References that cannot point at a captured asset are returned unchanged.
func RewriteURL(ref, domain string) string {
	if ref == "" {
		return ref
	}
	lower := strings.ToLower(ref)
	for _, p := range passThrough {
		if strings.HasPrefix(lower, p) {
			return ref
		}
	}

	// Scheme-relative references are absolute for our purposes.
	abs := ref
	if strings.HasPrefix(ref, "//") {
		abs = "http:" + ref
	}

	if u, err := url.Parse(abs); err == nil && u.Scheme != "" {
		if u.Scheme != "http" && u.Scheme != "https" {
			return ref
		}
		p := strings.TrimLeft(u.Path, "/")
		if p == "" {
			p = "index.html"
		}
		return externalPrefix + u.Host + "/" + p
	}

	p := trimRelative(ref)
	if p == "" {
		return ref
	}
	return externalPrefix + "www." + strings.TrimPrefix(domain, "www.") + ":80/" + p
}

// trimRelative strips leading slashes and ./ or ../ segments from a relative reference.
func trimRelative(ref string) string {
	p := ref
	for {
		switch {
		case strings.HasPrefix(p, "/"):
			p = p[1:]
		case strings.HasPrefix(p, "./"):
			p = p[2:]
		case strings.HasPrefix(p, "../"):
			p = p[3:]
		default:
			return p
		}
	}
}

// Rewrite rewrites every asset reference in html for offline viewing.
func Rewrite(html, domain string) (string, error) {
	out, _, err := rewriteHTML(html, domain)
	return out, err
}

// rewriteHTML rewrites html and returns how many references changed.
func rewriteHTML(html, domain string) (string, int, error) {
	doc, err := dom.ParseString(html)
	if err != nil {
		return "", 0, err
	}

	n := RewriteDocument(doc, domain)

	out, err := doc.Render()
	if err != nil {
		return "", 0, err
	}
	return out, n, nil
}

// attrTargets are the tag/attribute pairs holding asset references.
var attrTargets = []struct {
	tag  string
	attr string
	pred dom.Predicate
}{
	{"img", "src", nil},
	{"*", "background", nil},
	{"link", "href", nil},
	{"script", "src", nil},
	{"embed", "src", nil},
	{"embed", "data", nil},
	{"object", "src", nil},
	{"object", "data", nil},
	{"input", "src", dom.AttrEquals("type", "image")},
}

// RewriteDocument rewrites doc in place and returns how many references changed.
func RewriteDocument(doc *dom.Document, domain string) int {
	count := 0
	rewrite := func(ref string) string {
		out := RewriteURL(ref, domain)
		if out != ref {
			count++
		}
		return out
	}

	for _, target := range attrTargets {
		pred := dom.HasAttr(target.attr)
		if target.pred != nil {
			extra := target.pred
			pred = func(e *dom.Element) bool {
				return extra(e) && dom.HasAttr(target.attr)(e)
			}
		}
		doc.Each(target.tag, pred, func(e *dom.Element) {
			v := e.AttrOr(target.attr)
			if v == "" {
				return
			}
			e.SetAttr(target.attr, rewrite(v))
		})
	}

	doc.Each("*", dom.HasAttr("style"), func(e *dom.Element) {
		style := e.AttrOr("style")
		if !strings.Contains(style, "url(") {
			return
		}
		e.SetAttr("style", dom.RewriteCSSURLs(style, rewrite))
	})

	doc.Each("style", nil, func(e *dom.Element) {
		css := e.Text()
		if !strings.Contains(css, "url(") {
			return
		}
		e.SetText(dom.RewriteCSSURLs(css, rewrite))
	})

	return count
}
