package crawler

import (
	"net/url"
	"path"
	"strings"
)

// PathFilter limits link discovery with glob patterns on the URL path.
//
// A link is skipped when its path matches any ignore pattern. When follow
// patterns are set, a link must also match at least one of them.
type PathFilter struct {
	ignore []string
	follow []string
}

// NewPathFilter creates a PathFilter. Patterns use path.Match syntax plus two
// shorthands: "/dir/*" matches everything below /dir, and "*.ext" matches the
// extension at any depth.
func NewPathFilter(ignore, follow []string) *PathFilter {
	return &PathFilter{ignore: ignore, follow: follow}
}

// Empty reports whether the filter lets everything through.
func (f *PathFilter) Empty() bool {
	return len(f.ignore) == 0 && len(f.follow) == 0
}

// Allow reports whether rawURL should be enqueued.
func (f *PathFilter) Allow(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range f.ignore {
		if matchPattern(pattern, p) {
			return false
		}
	}
	if len(f.follow) == 0 {
		return true
	}
	for _, pattern := range f.follow {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// matchPattern reports whether the URL path p matches pattern.
func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	if ext, ok := strings.CutPrefix(pattern, "*."); ok && !strings.Contains(ext, "/") {
		if strings.HasSuffix(p, "."+ext) {
			return true
		}
	}
	if matched, err := path.Match(pattern, p); err == nil && matched {
		return true
	}
	// Slash-free patterns also match the last segment ("logout*").
	if !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(p)); err == nil && matched {
			return true
		}
	}
	return false
}
