package assetstore

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// AssetsDir is the per-snapshot directory holding asset files.
const AssetsDir = "assets"

// ExternalDir is the directory under AssetsDir holding third-party assets.
const ExternalDir = "external"

// LocalPath derives the deterministic on-disk location of an asset.
//
// The original URL's path is percent-decoded. An empty path or one ending in
// a slash gets a literal "index" segment. Internal assets live under
// <root>/<domain>/<timestamp>/assets/, external ones under
// <root>/<domain>/<timestamp>/assets/external/<host>/.
func LocalPath(root, domain, timestamp, originalURL string, external bool) (string, error) {
	u, err := url.Parse(originalURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidAssetURL, originalURL, err)
	}

	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		p += "index"
	}
	segs := Segments(p)
	if len(segs) == 0 {
		segs = []string{"index"}
	}

	parts := []string{root, domain, timestamp, AssetsDir}
	if external {
		host := Segments(u.Host)
		if len(host) != 1 {
			return "", fmt.Errorf("%w: %s has no usable host", ErrInvalidAssetURL, originalURL)
		}
		parts = append(parts, ExternalDir, host[0])
	}
	parts = append(parts, segs...)

	return filepath.Join(parts...), nil
}

// Segments splits a slash-separated path into segments that are safe to join
// under a directory. Empty, "." and ".." segments are dropped so the result
// can never climb out of the directory it is joined to.
func Segments(p string) []string {
	var segs []string
	for _, s := range strings.Split(path.Clean("/"+p), "/") {
		switch s {
		case "", ".", "..":
			continue
		}
		// Backslashes would become separators on Windows.
		segs = append(segs, strings.ReplaceAll(s, `\`, "_"))
	}
	return segs
}

// withHashSuffix inserts a short content hash before the file extension.
// It disambiguates two different payloads that map to the same path.
func withHashSuffix(p, sum string) string {
	if len(sum) > 12 {
		sum = sum[:12]
	}
	ext := filepath.Ext(p)
	return strings.TrimSuffix(p, ext) + "~" + sum + ext
}
