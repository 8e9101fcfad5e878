package pipeline

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/nao1215/archivist/internal/assetstore"
)

// PagePath returns where a captured page is saved:
// <root>/<domain>/<timestamp>/<path>. An empty path becomes index.html and a
// path not ending in .html or .htm is treated as a directory holding
// index.html.
func PagePath(root, domain, timestamp, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %s: %w", pageURL, err)
	}

	segs := assetstore.Segments(u.Path)
	if len(segs) == 0 || !hasHTMLExt(segs[len(segs)-1]) {
		segs = append(segs, "index.html")
	}

	parts := append([]string{root, domain, timestamp}, segs...)
	return filepath.Join(parts...), nil
}

func hasHTMLExt(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm")
}
