package crawler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/nao1215/archivist/internal/model"
	"github.com/nao1215/archivist/internal/wayback"
)

// Seed is a snapshot to start crawling from.
type Seed struct {
	Timestamp string
	URL       string
	Domain    string
}

// SnapshotList is a parsed snapshot list file.
type SnapshotList struct {
	// Seeds are the accepted lines in file order.
	Seeds []Seed

	// Rejected are the malformed lines.
	Rejected []*LineError
}

// LoadSnapshotList reads a snapshot list file.
func LoadSnapshotList(path string) (*SnapshotList, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot list: %w", err)
	}
	defer f.Close()

	return ParseSnapshotList(f)
}

// ParseSnapshotList parses "timestamp|url" lines. Blank lines and lines
// starting with # are skipped. The domain of each seed is the URL's host
// without a leading "www.".
func ParseSnapshotList(r io.Reader) (*SnapshotList, error) {
	list := &SnapshotList{}
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		seed, err := parseSeed(line)
		if err != nil {
			list.Rejected = append(list.Rejected, &LineError{Line: lineNo, Text: line, Err: err})
			continue
		}
		list.Seeds = append(list.Seeds, seed)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot list: %w", err)
	}
	return list, nil
}

func parseSeed(line string) (Seed, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 2 {
		return Seed{}, ErrMalformedLine
	}

	ts := strings.TrimSpace(parts[0])
	raw := strings.TrimSpace(parts[1])
	if !model.ValidTimestamp(ts) {
		return Seed{}, fmt.Errorf("%w: bad timestamp", ErrMalformedLine)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Seed{}, fmt.Errorf("%w: bad url", ErrMalformedLine)
	}

	return Seed{
		Timestamp: ts,
		URL:       raw,
		Domain:    strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."),
	}, nil
}

// SnapshotSeeds turns CDX captures of domain into seeds.
func SnapshotSeeds(domain string, snapshots []wayback.Snapshot) []Seed {
	seeds := make([]Seed, 0, len(snapshots))
	for _, s := range snapshots {
		seeds = append(seeds, Seed{Timestamp: s.Timestamp, URL: s.Original, Domain: domain})
	}
	return seeds
}

// Enqueuer adds entries to the ledger.
type Enqueuer interface {
	Enqueue(ctx context.Context, entry *model.QueueEntry) (bool, error)
}

// SeedLedger enqueues seeds in order and returns how many were new.
// Seeds already in the ledger keep their status.
func SeedLedger(ctx context.Context, ledger Enqueuer, seeds []Seed) (int, error) {
	added := 0
	for _, s := range seeds {
		entry, err := model.NewQueueEntry(s.URL, s.Timestamp, s.Domain)
		if err != nil {
			return added, fmt.Errorf("invalid seed %s|%s: %w", s.Timestamp, s.URL, err)
		}
		created, err := ledger.Enqueue(ctx, entry)
		if err != nil {
			return added, err
		}
		if created {
			added++
		}
	}
	return added, nil
}
