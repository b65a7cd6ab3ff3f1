package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/portsweep/internal/model"
)

// maxBannerColumn bounds the banner text shown in the open ports table.
const maxBannerColumn = 60

// MarkdownWriter outputs reports as a Markdown document.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeOpenPorts(md, report)
	w.writeBanners(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("Port Scan Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + report.Target + "`"},
			{"Ports", report.Ports.String()},
			{"Protocol", report.Protocol.String()},
			{"Scan Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", fmt.Sprintf("%.2fs", report.Duration.Seconds())},
			{"Workers", strconv.Itoa(report.Workers)},
			{"Timeout", report.Timeout.String()},
			{"Stealth", strconv.FormatBool(report.Stealth)},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

func statusText(report *model.ScanReport) string {
	if report.Cancelled {
		return fmt.Sprintf("Interrupted (%d of %d ports)", len(report.Results), report.Ports.Len())
	}
	return "Complete"
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.ScanReport) {
	summary := NewSummary(report)

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Ports"},
		Rows: [][]string{
			{"Open", strconv.Itoa(summary.Open)},
			{"Closed", strconv.Itoa(summary.Closed)},
			{"Filtered", strconv.Itoa(summary.Filtered)},
		},
	})
	md.PlainText("")

	if len(report.Results) > 0 {
		w.writePieChart(md, summary)
	}

	switch {
	case report.Cancelled:
		md.Warningf("The scan was interrupted. %d port(s) were not probed.",
			report.Ports.Len()-len(report.Results))
	case summary.Open > 0:
		md.Importantf("%d open port(s) found.", summary.Open)
	default:
		md.Tip("No open ports found.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Port Status Distribution"),
		piechart.WithShowData(true),
	)

	if summary.Open > 0 {
		chart.LabelAndIntValue("Open", uint64(summary.Open))
	}
	if summary.Closed > 0 {
		chart.LabelAndIntValue("Closed", uint64(summary.Closed))
	}
	if summary.Filtered > 0 {
		chart.LabelAndIntValue("Filtered", uint64(summary.Filtered))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeOpenPorts(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Open Ports")
	md.PlainText("")

	open := report.OpenPorts()
	if len(open) == 0 {
		md.PlainText("No open ports.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(open))
	for i, r := range open {
		banner := strings.ReplaceAll(firstLine(r.Banner), "|", `\|`)
		if banner == "" {
			banner = "-"
		}
		rows[i] = []string{
			strconv.Itoa(r.Port),
			serviceLabel(r),
			"`" + truncateString(banner, maxBannerColumn) + "`",
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Port", "Service", "Banner"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeBanners writes the full banners in collapsible blocks.
func (w *MarkdownWriter) writeBanners(md *markdown.Markdown, report *model.ScanReport) {
	var withBanner []model.PortResult
	for _, r := range report.OpenPorts() {
		if r.Banner != "" {
			withBanner = append(withBanner, r)
		}
	}
	if len(withBanner) == 0 {
		return
	}

	md.H2("Banners")
	md.PlainText("")
	for _, r := range withBanner {
		md.Details(fmt.Sprintf("Port %d (%s)", r.Port, serviceLabel(r)), r.Banner)
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [portsweep](https://github.com/nao1215/portsweep)*")
}

// firstLine returns s up to its first line break.
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimRight(line, "\r")
}

// truncateString truncates a string to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
