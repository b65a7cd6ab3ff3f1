package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/nao1215/portsweep/internal/model"
)

// lineSeparator separates the fields of a result line.
const lineSeparator = " - "

// ErrMalformedLine is returned by ParseLines for a line it cannot read.
var ErrMalformedLine = errors.New("malformed result line")

// LineWriter writes one "<ip>:<port> - <status> - <service>" line per result.
type LineWriter struct {
	baseWriter
}

// NewLineWriter creates a LineWriter that outputs to the given writer.
func NewLineWriter(output io.Writer) *LineWriter {
	return &LineWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs every result of the report in report order.
func (w *LineWriter) Write(report *model.ScanReport) (int, error) {
	bw := bufio.NewWriter(w.output)

	var total int
	for _, r := range report.Results {
		n, err := fmt.Fprintf(bw, "%s:%d%s%s%s%s\n",
			report.Target, r.Port, lineSeparator, r.Status, lineSeparator, serviceLabel(r))
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, bw.Flush()
}

// Line is one parsed result line.
type Line struct {
	Target  string
	Port    int
	Status  model.Status
	Service string
}

// ParseLines reads the output of LineWriter. Blank lines are skipped and the
// UnknownService label of an open port is read back as an empty service.
func ParseLines(r io.Reader) ([]Line, error) {
	var lines []Line

	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		line, err := parseLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func parseLine(text string) (Line, error) {
	address, rest, ok := strings.Cut(text, lineSeparator)
	if !ok {
		return Line{}, fmt.Errorf("%w: %q", ErrMalformedLine, text)
	}

	statusText, service, ok := strings.Cut(rest, lineSeparator)
	if !ok {
		// An empty service may have lost its trailing space.
		statusText, ok = strings.CutSuffix(rest, " -")
		if !ok {
			return Line{}, fmt.Errorf("%w: %q", ErrMalformedLine, text)
		}
	}

	host, portText, err := net.SplitHostPort(address)
	if err != nil {
		return Line{}, fmt.Errorf("%w: %q: %w", ErrMalformedLine, text, err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port < model.MinPort || port > model.MaxPort {
		return Line{}, fmt.Errorf("%w: bad port in %q", ErrMalformedLine, text)
	}
	status, err := model.ParseStatus(statusText)
	if err != nil {
		return Line{}, fmt.Errorf("%w: %w", ErrMalformedLine, err)
	}

	if status == model.StatusOpen && service == UnknownService {
		service = ""
	}

	return Line{Target: host, Port: port, Status: status, Service: service}, nil
}
