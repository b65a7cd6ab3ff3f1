package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidProtocol is returned when a protocol name is neither tcp nor udp.
var ErrInvalidProtocol = errors.New("invalid protocol: must be tcp or udp")

// ErrInvalidStatus is returned when a status word cannot be parsed.
var ErrInvalidStatus = errors.New("invalid port status")

// Protocol is the transport protocol used to probe ports.
type Protocol string

const (
	// ProtocolTCP probes ports with a full TCP connect.
	ProtocolTCP Protocol = "tcp"

	// ProtocolUDP probes ports with a datagram socket.
	ProtocolUDP Protocol = "udp"
)

// ParseProtocol converts a user supplied protocol name into a Protocol.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(s))) {
	case ProtocolTCP:
		return ProtocolTCP, nil
	case ProtocolUDP:
		return ProtocolUDP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidProtocol, s)
	}
}

// String returns the protocol name.
func (p Protocol) String() string {
	return string(p)
}

// Status is the reachability state of a probed port.
// Every PortResult carries exactly one of the three values below.
type Status int

const (
	// StatusFiltered means no conclusive response arrived (timeout,
	// unreachable or an unexpected error). It is the zero value so that a
	// result that was never classified can only be reported as filtered.
	StatusFiltered Status = iota

	// StatusClosed means the target explicitly rejected the probe.
	StatusClosed

	// StatusOpen means the probe connected (TCP) or got an answer (UDP).
	StatusOpen
)

// String returns the lower-case status word used in all output formats.
func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	default:
		return "filtered"
	}
}

// ParseStatus converts a status word back into a Status.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return StatusOpen, nil
	case "closed":
		return StatusClosed, nil
	case "filtered":
		return StatusFiltered, nil
	default:
		return StatusFiltered, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// MarshalText implements encoding.TextMarshaler so JSON carries the word.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
