package rewriter

import (
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed templates/timeline.html.tmpl
var timelineTemplateText string

var timelineTemplate = template.Must(template.New("timeline").Parse(timelineTemplateText))

// TimelineEntry is one snapshot link on the timeline page.
type TimelineEntry struct {
	Timestamp string
	Href      string
	Date      string
	Time      string
}

// TimelineYear groups the snapshots of one year.
type TimelineYear struct {
	Year      string
	Snapshots []TimelineEntry
}

// timelineData is the template input.
type timelineData struct {
	Domain    string
	Count     int
	FirstYear string
	LastYear  string
	Years     []TimelineYear
}

// BuildTimeline groups sorted timestamps by year. Each entry links to the
// viewable copy when it exists, else to the raw capture.
func (r *Reconstructor) BuildTimeline(timestamps []string) []TimelineYear {
	var years []TimelineYear
	for _, ts := range timestamps {
		year := ts
		if len(ts) >= 4 {
			year = ts[:4]
		}
		if len(years) == 0 || years[len(years)-1].Year != year {
			years = append(years, TimelineYear{Year: year})
		}
		entry := TimelineEntry{
			Timestamp: ts,
			Href:      r.snapshotHref(ts),
		}
		if len(ts) >= 8 {
			entry.Date = fmt.Sprintf("%s/%s/%s", ts[4:6], ts[6:8], ts[:4])
		}
		if len(ts) >= 14 {
			entry.Time = fmt.Sprintf("%s:%s:%s", ts[8:10], ts[10:12], ts[12:14])
		}
		cur := &years[len(years)-1]
		cur.Snapshots = append(cur.Snapshots, entry)
	}
	return years
}

// snapshotHref returns the link target for a snapshot, relative to the domain dir.
func (r *Reconstructor) snapshotHref(ts string) string {
	viewable := filepath.Join(r.DomainDir(), ts, ViewableDir, "index.html")
	if _, err := os.Stat(viewable); err == nil {
		return path.Join(ts, ViewableDir, "index.html")
	}
	return path.Join(ts, "index.html")
}

// WriteTimeline renders the timeline index and returns its path.
func (r *Reconstructor) WriteTimeline(timestamps []string) (string, error) {
	years := r.BuildTimeline(timestamps)
	data := timelineData{
		Domain: r.domain,
		Count:  len(timestamps),
		Years:  years,
	}
	if len(years) > 0 {
		data.FirstYear = years[0].Year
		data.LastYear = years[len(years)-1].Year
	}

	var sb strings.Builder
	if err := timelineTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render timeline: %w", err)
	}

	out := filepath.Join(r.DomainDir(), TimelineFile)
	if err := os.WriteFile(out, []byte(sb.String()), 0600); err != nil {
		return "", fmt.Errorf("failed to write timeline: %w", err)
	}
	r.logger.Info("timeline written", "path", out, "snapshots", len(timestamps))
	return out, nil
}
