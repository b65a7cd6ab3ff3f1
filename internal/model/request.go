package model

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Port number bounds.
const (
	MinPort = 1
	MaxPort = 65535
)

// Request validation errors.
var (
	// ErrInvalidPortRange is returned when a range is outside 1..65535
	// or its start is greater than its end.
	ErrInvalidPortRange = errors.New("invalid port range: ports must be in 1..65535 and start <= end")

	// ErrEmptyTarget is returned when the request has no target address.
	ErrEmptyTarget = errors.New("empty target address")

	// ErrInvalidTarget is returned when the target is not an IPv4 literal.
	ErrInvalidTarget = errors.New("invalid target: must be an IPv4 address")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidTimeout is returned when the probe timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")
)

// PortRange is an inclusive range of port numbers.
type PortRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Validate checks that 1 <= Start <= End <= 65535.
func (r PortRange) Validate() error {
	if r.Start < MinPort || r.End > MaxPort || r.Start > r.End {
		return fmt.Errorf("%w: %s", ErrInvalidPortRange, r)
	}
	return nil
}

// Len returns the number of ports in the range, or 0 for an invalid range.
func (r PortRange) Len() int {
	if r.Start > r.End {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether port lies inside the range.
func (r PortRange) Contains(port int) bool {
	return port >= r.Start && port <= r.End
}

// String formats the range as "start-end".
func (r PortRange) String() string {
	return strconv.Itoa(r.Start) + "-" + strconv.Itoa(r.End)
}

// ScanRequest describes one scan. It is treated as immutable once a scan
// starts; policy overrides (stealth) produce a modified copy.
type ScanRequest struct {
	// Target is the IPv4 address to probe. Resolution happens before the
	// request is built.
	Target string

	// Ports is the inclusive range to probe.
	Ports PortRange

	// Protocol selects TCP or UDP probing.
	Protocol Protocol

	// Workers is the number of concurrent probes.
	Workers int

	// Timeout bounds every connect, send and read of a single probe.
	Timeout time.Duration

	// Stealth forces single-worker scanning with a long timeout.
	Stealth bool
}

// Validate checks the request before any scanning begins.
func (r ScanRequest) Validate() error {
	if r.Target == "" {
		return ErrEmptyTarget
	}
	ip := net.ParseIP(r.Target)
	if ip == nil || ip.To4() == nil {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, r.Target)
	}
	if err := r.Ports.Validate(); err != nil {
		return err
	}
	if _, err := ParseProtocol(string(r.Protocol)); err != nil {
		return err
	}
	if r.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if r.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}
