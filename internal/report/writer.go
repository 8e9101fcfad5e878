package report

import (
	"io"
)

// Writer renders reports.
//
// Design decision: We use an interface so the status command and the crawl
// summary share one format switch, and so output can go to stdout and a
// file at once through MultiWriter.
type Writer interface {
	// WriteStatus outputs a database status.
	// Returns the number of bytes written and any error encountered.
	WriteStatus(status *Status) (int, error)

	// WriteSummary outputs the summary of one crawl run.
	WriteSummary(summary *Summary) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteStatus outputs the status to every Writer. Stops on the first error.
func (m *MultiWriter) WriteStatus(status *Status) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteStatus(status)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to every Writer. Stops on the first error.
func (m *MultiWriter) WriteSummary(summary *Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter holds the destination shared by all writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Format names an output format.
type Format string

// Supported formats.
const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// NewWriter returns the Writer for format. Unknown formats fall back to text.
func NewWriter(format Format, output io.Writer) Writer {
	switch format {
	case FormatMarkdown:
		return NewMarkdownWriter(output)
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint())
	default:
		return NewSimpleWriter(output)
	}
}
