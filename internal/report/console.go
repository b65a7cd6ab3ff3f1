package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/nao1215/portsweep/internal/model"
)

// ConsoleWriter prints the "Port N: status - service" summary for a
// terminal. Status words are colored unless color is disabled.
type ConsoleWriter struct {
	baseWriter

	// colors maps each status to its terminal color.
	colors map[model.Status]*color.Color

	// openOnly hides closed and filtered ports.
	openOnly bool
}

// ConsoleWriterOption configures a ConsoleWriter.
type ConsoleWriterOption func(*ConsoleWriter)

// WithColor forces colored output on or off. Without this option color
// follows fatih/color's terminal detection.
func WithColor(enabled bool) ConsoleWriterOption {
	return func(w *ConsoleWriter) {
		for _, c := range w.colors {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// WithOpenOnly limits the summary to open ports.
func WithOpenOnly(openOnly bool) ConsoleWriterOption {
	return func(w *ConsoleWriter) {
		w.openOnly = openOnly
	}
}

// NewConsoleWriter creates a ConsoleWriter that outputs to the given writer.
func NewConsoleWriter(output io.Writer, opts ...ConsoleWriterOption) *ConsoleWriter {
	w := &ConsoleWriter{
		baseWriter: newBaseWriter(output),
		colors: map[model.Status]*color.Color{
			model.StatusOpen:     color.New(color.FgGreen, color.Bold),
			model.StatusClosed:   color.New(color.FgRed),
			model.StatusFiltered: color.New(color.FgYellow),
		},
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one line per result in report order.
func (w *ConsoleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	for _, r := range report.Results {
		if w.openOnly && r.Status != model.StatusOpen {
			continue
		}
		status := r.Status.String()
		if c, ok := w.colors[r.Status]; ok {
			status = c.Sprint(status)
		}
		sb.WriteString(fmt.Sprintf("Port %d: %s - %s\n", r.Port, status, serviceLabel(r)))
	}

	if report.Cancelled {
		sb.WriteString(fmt.Sprintf("[!] Scan interrupted: %d of %d ports probed\n",
			len(report.Results), report.Ports.Len()))
	}

	return w.output.Write([]byte(sb.String()))
}
