package dom

import (
	"regexp"
	"strings"
)

// cssURL matches url(...) references in CSS text.
var cssURL = regexp.MustCompile(`url\(([^)]+)\)`)

// unquote strips surrounding whitespace and quotes from a url() argument.
func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}

// CSSURLs returns the url(...) references in css, in order, unquoted.
func CSSURLs(css string) []string {
	matches := cssURL.FindAllStringSubmatch(css, -1)
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		if u := unquote(m[1]); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// RewriteCSSURLs replaces each url(...) reference in css with url(fn(ref)).
// The replacement is written unquoted.
func RewriteCSSURLs(css string, fn func(string) string) string {
	return cssURL.ReplaceAllStringFunc(css, func(match string) string {
		m := cssURL.FindStringSubmatch(match)
		return "url(" + fn(unquote(m[1])) + ")"
	})
}
