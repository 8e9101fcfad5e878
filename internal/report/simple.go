package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/archivist/internal/model"
)

const ruleWidth = 60

// SimpleWriter outputs plain text for the terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints sections that have nothing to list.
	showEmpty bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteStatus outputs the status in human-readable form.
func (w *SimpleWriter) WriteStatus(status *Status) (int, error) {
	var sb strings.Builder

	writeTitle(&sb, "ARCHIVE STATUS: "+status.Title())
	fmt.Fprintf(&sb, "Database:   %s\n", status.Database)
	fmt.Fprintf(&sb, "Generated:  %s\n", status.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if status.HashAlgorithm != "" {
		fmt.Fprintf(&sb, "Hash:       %s\n", status.HashAlgorithm)
	}
	sb.WriteString("\n")

	writeSection(&sb, "LEDGER")
	for _, s := range model.AllStatuses {
		fmt.Fprintf(&sb, "  %-10s %s\n", s.String()+":", humanize.Comma(int64(status.Count(s))))
	}
	fmt.Fprintf(&sb, "  %-10s %s (%.1f%% done)\n", "total:", humanize.Comma(int64(status.Total())), status.Progress())
	sb.WriteString("\n")

	w.writeSnapshots(&sb, status)
	w.writeAssets(&sb, status)
	w.writeFailures(&sb, status)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeSnapshots(sb *strings.Builder, status *Status) {
	if len(status.Snapshots) == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "SNAPSHOTS")
	if len(status.Snapshots) == 0 {
		sb.WriteString("  none\n\n")
		return
	}
	fmt.Fprintf(sb, "  %-16s %9s %9s %9s\n", "timestamp", "pending", "completed", "failed")
	for _, s := range status.Snapshots {
		fmt.Fprintf(sb, "  %-16s %9d %9d %9d\n", s.Timestamp, s.Pending, s.Completed, s.Failed)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeAssets(sb *strings.Builder, status *Status) {
	a := status.Assets
	if a.Rows == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "ASSETS")
	fmt.Fprintf(sb, "  URLs:       %s\n", humanize.Comma(int64(a.Rows)))
	fmt.Fprintf(sb, "  files:      %s\n", humanize.Comma(int64(a.Files)))
	fmt.Fprintf(sb, "  stored:     %s\n", humanize.Bytes(nonNegative(a.StoredBytes)))
	fmt.Fprintf(sb, "  saved:      %s\n", humanize.Bytes(nonNegative(a.SavedBytes())))
	fmt.Fprintf(sb, "  downloads:  %s\n", humanize.Comma(int64(a.Downloads)))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, status *Status) {
	if len(status.Failures) == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "FAILURES")
	if len(status.Failures) == 0 {
		sb.WriteString("  none\n\n")
		return
	}
	for _, e := range status.Failures {
		when := ""
		if !e.FetchedAt.IsZero() {
			when = " (" + humanize.Time(e.FetchedAt) + ")"
		}
		fmt.Fprintf(sb, "  [-] %s %s%s\n", e.Timestamp, e.URL, when)
		if e.Error != "" {
			fmt.Fprintf(sb, "      %s\n", e.Error)
		}
	}
	if status.FailuresOmitted > 0 {
		fmt.Fprintf(sb, "  ... and %d more\n", status.FailuresOmitted)
	}
	sb.WriteString("\n")
}

// WriteSummary outputs the run summary in human-readable form.
func (w *SimpleWriter) WriteSummary(summary *Summary) (int, error) {
	var sb strings.Builder
	s := summary.Stats

	title := "CRAWL COMPLETE"
	if summary.Interrupted {
		title = "CRAWL INTERRUPTED"
	}
	writeTitle(&sb, title+": "+summary.Domain)

	fmt.Fprintf(&sb, "Run:              %s\n", summary.RunID)
	fmt.Fprintf(&sb, "Elapsed:          %s\n", summary.Elapsed.Round(time.Second))
	fmt.Fprintf(&sb, "Pages fetched:    %s\n", humanize.Comma(int64(s.PagesFetched)))
	fmt.Fprintf(&sb, "Pages failed:     %s\n", humanize.Comma(int64(s.PagesFailed)))
	fmt.Fprintf(&sb, "Links discovered: %s\n", humanize.Comma(int64(s.LinksDiscovered)))
	fmt.Fprintf(&sb, "Assets fetched:   %s\n", humanize.Comma(int64(s.AssetsFetched)))
	fmt.Fprintf(&sb, "Assets cached:    %s\n", humanize.Comma(int64(s.AssetsCached)))
	fmt.Fprintf(&sb, "Assets deduped:   %s\n", humanize.Comma(int64(s.AssetsDeduped)))
	fmt.Fprintf(&sb, "Assets failed:    %s\n", humanize.Comma(int64(s.AssetsFailed)))
	fmt.Fprintf(&sb, "Still pending:    %s\n", humanize.Comma(int64(summary.Pending)))
	if summary.Interrupted && summary.Pending > 0 {
		sb.WriteString("\nRun the same command again to resume.\n")
	}
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

func writeTitle(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

func writeSection(sb *strings.Builder, name string) {
	sb.WriteString(name)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
}

func nonNegative(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}
