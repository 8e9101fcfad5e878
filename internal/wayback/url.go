package wayback

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/nao1215/archivist/internal/model"
)

// DefaultBaseURL is the replay endpoint of the public archive.
const DefaultBaseURL = "https://web.archive.org/web"

// BuildURL returns the replay URL for original at timestamp.
// The modifier is chosen from kind.
func BuildURL(base, timestamp string, kind model.AssetKind, original string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimSuffix(base, "/") + "/" + timestamp + kind.Modifier() + "/" + original
}

// replayPath matches "/web/<timestamp>[modifier]/<original>" anywhere a page
// may have left the archive's own prefix on a link.
var replayPath = regexp.MustCompile(`^/web/(\d{1,14})([a-z]{2}_)?/(.+)$`)

// Replay is a parsed replay URL.
type Replay struct {
	Timestamp string
	Modifier  string
	Original  string
}

// ParseURL splits a replay URL into its parts.
// It accepts absolute archive URLs and root-relative "/web/..." paths.
func ParseURL(raw string) (Replay, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Replay{}, fmt.Errorf("%w: %s", ErrNotWaybackURL, raw)
	}
	if u.Host != "" && !isArchiveHost(u.Hostname()) {
		return Replay{}, fmt.Errorf("%w: %s", ErrNotWaybackURL, raw)
	}

	// EscapedPath would re-encode the embedded URL; use the raw request URI.
	rest := u.RequestURI()
	if u.Fragment != "" {
		rest += "#" + u.Fragment
	}
	m := replayPath.FindStringSubmatch(rest)
	if m == nil {
		return Replay{}, fmt.Errorf("%w: %s", ErrNotWaybackURL, raw)
	}

	return Replay{
		Timestamp: m[1],
		Modifier:  m[2],
		Original:  fixScheme(m[3]),
	}, nil
}

// Unwrap returns the original URL behind a replay URL, or raw unchanged.
func Unwrap(raw string) string {
	r, err := ParseURL(raw)
	if err != nil {
		return raw
	}
	return r.Original
}

// fixScheme repairs "http:/host" which proxies collapse from "http://host",
// and adds a scheme to bare hosts.
func fixScheme(s string) string {
	for _, scheme := range []string{"http:", "https:"} {
		if strings.HasPrefix(s, scheme+"/") && !strings.HasPrefix(s, scheme+"//") {
			return scheme + "//" + strings.TrimPrefix(s, scheme+"/")
		}
		if strings.HasPrefix(s, scheme) {
			return s
		}
	}
	return "http://" + s
}

func isArchiveHost(host string) bool {
	return host == "web.archive.org" || host == "archive.org" || host == "wayback.archive.org"
}
