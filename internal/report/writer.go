package report

import (
	"io"

	"github.com/nao1215/portsweep/internal/model"
)

// UnknownService labels open ports whose service name is not known.
const UnknownService = "unknown service"

// Writer writes a scan report in one output format.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *model.ScanReport) (int, error)
}

// baseWriter holds the destination shared by all writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// serviceLabel returns the service text printed for r.
func serviceLabel(r model.PortResult) string {
	if r.Status == model.StatusOpen && r.Service == "" {
		return UnknownService
	}
	return r.Service
}
