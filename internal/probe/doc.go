// Package probe performs single-port probes and classifies their outcome.
//
// # Architecture
//
// An Executor owns everything one probe needs: the dialer, the service name
// table and the BannerReader. Probe never returns an error; every transport
// failure becomes a filtered (or, for an explicit rejection, closed) result.
//
// # Classification
//
// TCP:
//   - connect succeeds: open
//   - connection refused (RST, or a SOCKS5 "connection refused" reply): closed
//   - timeout, host/network unreachable, any other error: filtered
//
// UDP (UDPModeProbe, the default):
//   - a datagram comes back: open
//   - ICMP port unreachable, surfaced as ECONNREFUSED: closed
//   - no answer before the deadline, any other error: filtered
//
// UDP (UDPModeConnect): a successful connect() of the datagram socket is
// reported open. This only proves the address is routable.
//
// # Banners
//
// For open TCP ports the BannerReader sends a minimal HTTP GET request line
// regardless of the service behind the port and performs one bounded read.
// A banner is best-effort; failing to read one never changes the status.
//
// # Proxies
//
// TCP probes dial through a golang.org/x/net/proxy dialer, so they can be
// carried by a SOCKS5 proxy. UDP probes always dial directly.
package probe
