package wayback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"github.com/nao1215/archivist/internal/model"
)

// DefaultCDXURL is the capture index endpoint of the public archive.
const DefaultCDXURL = "https://web.archive.org/cdx/search/cdx"

// Snapshot is one capture listed by the CDX API.
type Snapshot struct {
	Timestamp string
	Original  string
}

// CDXClient lists captures through the CDX API.
// It shares the Fetcher's retry policy, rate-limit handling and credentials.
type CDXClient struct {
	fetcher  *Fetcher
	endpoint string
}

// NewCDXClient creates a CDXClient. An empty endpoint selects DefaultCDXURL.
func NewCDXClient(fetcher *Fetcher, endpoint string) *CDXClient {
	if endpoint == "" {
		endpoint = DefaultCDXURL
	}
	return &CDXClient{fetcher: fetcher, endpoint: endpoint}
}

// Snapshots returns the distinct captures of the domain's home page between
// from and to (CDX date prefixes such as "1999" or "20010315"), oldest first.
// Only captures that returned 200 are listed and identical content is
// collapsed by digest.
func (c *CDXClient) Snapshots(ctx context.Context, domain, from, to string) ([]Snapshot, error) {
	q := url.Values{}
	q.Set("url", "www."+domain+"/")
	q.Set("output", "json")
	q.Set("fl", "timestamp,original")
	q.Set("filter", "statuscode:200")
	q.Set("collapse", "digest")
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}

	resp, err := c.fetcher.FetchURL(ctx, c.endpoint+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("CDX query for %s failed: %w", domain, err)
	}
	return parseCDX(resp.Body)
}

// parseCDX decodes the JSON output: an array of rows whose first row is the
// field header.
func parseCDX(body []byte) ([]Snapshot, error) {
	if len(body) == 0 {
		return nil, nil
	}

	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode CDX response: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	tsCol, origCol := -1, -1
	for i, name := range rows[0] {
		switch name {
		case "timestamp":
			tsCol = i
		case "original":
			origCol = i
		}
	}
	if tsCol < 0 || origCol < 0 {
		return nil, fmt.Errorf("CDX response lacks timestamp/original columns: %v", rows[0])
	}

	seen := make(map[Snapshot]bool)
	snapshots := make([]Snapshot, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) <= tsCol || len(row) <= origCol {
			continue
		}
		s := Snapshot{Timestamp: row[tsCol], Original: row[origCol]}
		if !model.ValidTimestamp(s.Timestamp) || s.Original == "" || seen[s] {
			continue
		}
		seen[s] = true
		snapshots = append(snapshots, s)
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp < snapshots[j].Timestamp
	})
	return snapshots, nil
}
