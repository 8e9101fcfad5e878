package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/archivist/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
//
// Design decision: We use the nao1215/markdown library for tables, alerts
// and mermaid charts instead of formatting Markdown by hand.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// WriteStatus outputs the status as a Markdown document.
func (w *MarkdownWriter) WriteStatus(status *Status) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Archive Status: " + status.Title())
	md.PlainText("")
	rows := [][]string{
		{"Database", "`" + status.Database + "`"},
		{"Generated", status.GeneratedAt.Format(time.RFC3339)},
	}
	if status.HashAlgorithm != "" {
		rows = append(rows, []string{"Hash algorithm", status.HashAlgorithm})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeLedger(md, status)
	w.writeSnapshots(md, status)
	w.writeAssets(md, status)
	w.writeFailures(md, status)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeLedger(md *markdown.Markdown, status *Status) {
	md.H2("Ledger")
	md.PlainText("")

	rows := make([][]string, 0, len(model.AllStatuses)+1)
	for _, s := range model.AllStatuses {
		rows = append(rows, []string{s.String(), strconv.Itoa(status.Count(s))})
	}
	rows = append(rows, []string{"**total**", strconv.Itoa(status.Total())})
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Entries"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case status.Total() == 0:
		md.Note("The ledger is empty. Run `archivist crawl` to seed it.")
	case status.Count(model.StatusFailed) > 0:
		md.Warningf("%d entries failed. Run `archivist requeue` to retry them.", status.Count(model.StatusFailed))
	case status.Count(model.StatusPending) == 0:
		md.Tip("Every entry is complete. Run `archivist reconstruct` to build the viewable site.")
	default:
		md.Note(fmt.Sprintf("%.1f%% of entries processed.", status.Progress()))
	}
	md.PlainText("")

	if status.Total() > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Ledger Status"),
			piechart.WithShowData(true),
		)
		for _, s := range model.AllStatuses {
			if n := status.Count(s); n > 0 {
				chart.LabelAndIntValue(s.String(), uint64(n))
			}
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeSnapshots(md *markdown.Markdown, status *Status) {
	if len(status.Snapshots) == 0 {
		return
	}
	md.H2("Snapshots")
	md.PlainText("")

	rows := make([][]string, 0, len(status.Snapshots))
	for _, s := range status.Snapshots {
		rows = append(rows, []string{
			s.Timestamp,
			strconv.Itoa(s.Pending),
			strconv.Itoa(s.Completed),
			strconv.Itoa(s.Failed),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Timestamp", "Pending", "Completed", "Failed"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeAssets(md *markdown.Markdown, status *Status) {
	a := status.Assets
	if a.Rows == 0 {
		return
	}
	md.H2("Assets")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Wayback URLs", humanize.Comma(int64(a.Rows))},
			{"Files on disk", humanize.Comma(int64(a.Files))},
			{"Stored", humanize.Bytes(nonNegative(a.StoredBytes))},
			{"Saved by dedup", humanize.Bytes(nonNegative(a.SavedBytes()))},
			{"Downloads", humanize.Comma(int64(a.Downloads))},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, status *Status) {
	if len(status.Failures) == 0 {
		return
	}
	md.H2("Failures")
	md.PlainText("")

	rows := make([][]string, 0, len(status.Failures))
	for _, e := range status.Failures {
		rows = append(rows, []string{e.Timestamp, "`" + e.URL + "`", truncateString(e.Error, 80)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Timestamp", "URL", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
	if status.FailuresOmitted > 0 {
		md.PlainTextf("%d more failures not shown.", status.FailuresOmitted)
		md.PlainText("")
	}
}

// WriteSummary outputs the run summary as a Markdown document.
func (w *MarkdownWriter) WriteSummary(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)
	s := summary.Stats

	md.H1("Crawl Summary: " + summary.Domain)
	md.PlainText("")
	if summary.Interrupted {
		md.Cautionf("The run was interrupted with %d entries pending.", summary.Pending)
		md.PlainText("")
	}
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Run", summary.RunID},
			{"Elapsed", summary.Elapsed.Round(time.Second).String()},
			{"Pages fetched", strconv.Itoa(s.PagesFetched)},
			{"Pages failed", strconv.Itoa(s.PagesFailed)},
			{"Links discovered", strconv.Itoa(s.LinksDiscovered)},
			{"Assets fetched", strconv.Itoa(s.AssetsFetched)},
			{"Assets cached", strconv.Itoa(s.AssetsCached)},
			{"Assets deduped", strconv.Itoa(s.AssetsDeduped)},
			{"Assets failed", strconv.Itoa(s.AssetsFailed)},
			{"Still pending", strconv.Itoa(summary.Pending)},
		},
	})
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [archivist](https://github.com/nao1215/archivist)*")
}

// truncateString shortens s to maxLen runes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
