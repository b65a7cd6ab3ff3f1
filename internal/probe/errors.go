package probe

import "errors"

// ErrInvalidProxyAddress is returned by NewDialer for a malformed proxy address.
var ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port")

// ErrInvalidUDPMode is returned by ParseUDPMode for an unknown mode name.
var ErrInvalidUDPMode = errors.New("invalid udp mode: must be probe or connect")

// ErrUnresolvableHost is returned by ResolveIPv4 when a target has no IPv4 address.
var ErrUnresolvableHost = errors.New("cannot resolve target to an IPv4 address")
