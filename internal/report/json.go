package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/portsweep/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string.
	indentString string

	// version is recorded in the document when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the portsweep version in the document.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Summary holds per-status totals.
type Summary struct {
	Open     int `json:"open"`
	Closed   int `json:"closed"`
	Filtered int `json:"filtered"`
}

// NewSummary counts the results of report.
func NewSummary(report *model.ScanReport) Summary {
	counts := report.Counts()
	return Summary{
		Open:     counts[model.StatusOpen],
		Closed:   counts[model.StatusClosed],
		Filtered: counts[model.StatusFiltered],
	}
}

// JSONReport is the document written by JSONWriter.
type JSONReport struct {
	// Version is the portsweep version that produced the report.
	Version string `json:"version,omitempty"`

	// Summary holds per-status totals.
	Summary Summary `json:"summary"`

	// Report is the full scan report.
	Report *model.ScanReport `json:"report"`
}

// Write outputs the report wrapped in a JSONReport.
func (w *JSONWriter) Write(report *model.ScanReport) (int, error) {
	doc := JSONReport{
		Version: w.version,
		Summary: NewSummary(report),
		Report:  report,
	}

	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(doc, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
