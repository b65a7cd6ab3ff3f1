package model

import (
	"slices"
	"time"
)

// PortResult is the outcome of probing one port. The scanner writes exactly
// one PortResult per port and never replaces it.
type PortResult struct {
	// Port is the probed port number.
	Port int `json:"port"`

	// Status is open, closed or filtered.
	Status Status `json:"status"`

	// Service is the well-known service name for the port, or empty.
	// Only looked up for open ports.
	Service string `json:"service,omitempty"`

	// Banner is the text read from an open TCP port, or empty.
	Banner string `json:"banner,omitempty"`
}

// ScanReport is the aggregated result of one scan.
type ScanReport struct {
	// ID uniquely identifies the scan in the history database.
	ID string `json:"id"`

	// Target is the scanned IPv4 address.
	Target string `json:"target"`

	// Protocol is the transport protocol used.
	Protocol Protocol `json:"protocol"`

	// Ports is the requested range.
	Ports PortRange `json:"ports"`

	// Workers is the effective worker count (after stealth override).
	Workers int `json:"workers"`

	// Timeout is the effective per-probe timeout (after stealth override).
	Timeout time.Duration `json:"timeout"`

	// Stealth records whether stealth mode was on.
	Stealth bool `json:"stealth"`

	// StartedAt is when the first worker was launched.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall time from launch until every worker finished.
	Duration time.Duration `json:"duration"`

	// Cancelled is true when the scan stopped before every port was probed.
	// Results then cover only the processed ports.
	Cancelled bool `json:"cancelled"`

	// Results holds one entry per probed port, ordered by port after Sort.
	Results []PortResult `json:"results"`
}

// Sort orders the results by port number.
func (r *ScanReport) Sort() {
	slices.SortFunc(r.Results, func(a, b PortResult) int {
		return a.Port - b.Port
	})
}

// Counts returns the number of results per status.
func (r *ScanReport) Counts() map[Status]int {
	counts := map[Status]int{
		StatusOpen:     0,
		StatusClosed:   0,
		StatusFiltered: 0,
	}
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// OpenPorts returns the open results in report order.
func (r *ScanReport) OpenPorts() []PortResult {
	open := make([]PortResult, 0)
	for _, res := range r.Results {
		if res.Status == StatusOpen {
			open = append(open, res)
		}
	}
	return open
}

// Result returns the result for port and whether it exists.
func (r *ScanReport) Result(port int) (PortResult, bool) {
	for _, res := range r.Results {
		if res.Port == port {
			return res, true
		}
	}
	return PortResult{}, false
}
