package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/portsweep/internal/model"
	"golang.org/x/net/proxy"
)

// UDPMode selects how UDP ports are classified.
type UDPMode string

const (
	// UDPModeProbe sends one datagram and waits for an answer or an ICMP
	// port-unreachable error.
	UDPModeProbe UDPMode = "probe"

	// UDPModeConnect reports a port open as soon as connect() on the
	// datagram socket succeeds, without sending anything.
	UDPModeConnect UDPMode = "connect"
)

// ParseUDPMode converts a mode name into a UDPMode.
func ParseUDPMode(s string) (UDPMode, error) {
	switch UDPMode(strings.ToLower(strings.TrimSpace(s))) {
	case UDPModeProbe:
		return UDPModeProbe, nil
	case UDPModeConnect:
		return UDPModeConnect, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidUDPMode, s)
	}
}

// udpProbePayload is the datagram sent to UDP ports.
var udpProbePayload = []byte{0x00}

// udpReadSize bounds the answer read from a UDP port.
const udpReadSize = 512

// Executor probes single ports. It is safe for concurrent use by many
// workers: all of its fields are read-only after construction.
type Executor struct {
	// dialer carries TCP probes, possibly through a SOCKS5 proxy.
	dialer proxy.Dialer

	// udpDialer carries UDP probes. Proxies never apply to UDP.
	udpDialer proxy.Dialer

	// services resolves service names for open ports.
	services *Services

	// banner reads banners from open TCP ports.
	banner *BannerReader

	// udpMode selects the UDP classification strategy.
	udpMode UDPMode

	// logger receives per-probe debug records.
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithDialer sets the dialer used for TCP probes.
func WithDialer(d proxy.Dialer) Option {
	return func(e *Executor) {
		if d != nil {
			e.dialer = d
		}
	}
}

// WithServices sets the service name table.
func WithServices(s *Services) Option {
	return func(e *Executor) {
		if s != nil {
			e.services = s
		}
	}
}

// WithBannerReader sets the banner reader used for open TCP ports.
func WithBannerReader(b *BannerReader) Option {
	return func(e *Executor) {
		if b != nil {
			e.banner = b
		}
	}
}

// WithUDPMode sets the UDP classification strategy.
func WithUDPMode(mode UDPMode) Option {
	return func(e *Executor) {
		if mode != "" {
			e.udpMode = mode
		}
	}
}

// WithLogger sets the logger for probe debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an Executor that dials directly, uses the system
// service table and probes UDP ports with a datagram.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		dialer:    proxy.Direct,
		udpDialer: proxy.Direct,
		udpMode:   UDPModeProbe,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.services == nil {
		e.services = SystemServices()
	}
	if e.banner == nil {
		e.banner = NewBannerReader()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

// Probe performs one probe of host:port with the given protocol. The
// timeout bounds the connect and every subsequent send or read. Probe never
// fails: transport errors become closed or filtered results.
func (e *Executor) Probe(ctx context.Context, host string, port int, proto model.Protocol, timeout time.Duration) model.PortResult {
	if proto == model.ProtocolUDP {
		return e.probeUDP(ctx, host, port, timeout)
	}
	return e.probeTCP(ctx, host, port, timeout)
}

// probeTCP performs a full TCP connect and, on success, grabs a banner.
func (e *Executor) probeTCP(ctx context.Context, host string, port int, timeout time.Duration) model.PortResult {
	result := model.PortResult{Port: port, Status: model.StatusFiltered}
	address := net.JoinHostPort(host, strconv.Itoa(port))

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialContext(dialCtx, e.dialer, "tcp", address)
	if err != nil {
		status, reason := classifyError(err)
		result.Status = status
		e.logger.Debug("tcp probe failed", "address", address, "status", status.String(), "reason", reason)
		return result
	}
	defer conn.Close()

	result.Status = model.StatusOpen
	result.Service = e.services.Lookup(port, model.ProtocolTCP)

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		e.logger.Debug("failed to set banner deadline", "address", address, "error", err)
		return result
	}
	if banner, ok := e.banner.Read(conn, host, port); ok {
		result.Banner = banner
	}

	e.logger.Debug("tcp port open", "address", address, "service", result.Service, "banner", result.Banner)
	return result
}

// probeUDP classifies a UDP port according to the executor's UDP mode.
func (e *Executor) probeUDP(ctx context.Context, host string, port int, timeout time.Duration) model.PortResult {
	result := model.PortResult{Port: port, Status: model.StatusFiltered}
	address := net.JoinHostPort(host, strconv.Itoa(port))

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialContext(dialCtx, e.udpDialer, "udp", address)
	if err != nil {
		_, reason := classifyError(err)
		e.logger.Debug("udp connect failed", "address", address, "reason", reason)
		return result
	}
	defer conn.Close()

	if e.udpMode == UDPModeConnect {
		result.Status = model.StatusOpen
		result.Service = e.services.Lookup(port, model.ProtocolUDP)
		return result
	}

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		e.logger.Debug("failed to set udp deadline", "address", address, "error", err)
		return result
	}

	if _, err := conn.Write(udpProbePayload); err != nil {
		status, reason := classifyError(err)
		result.Status = status
		e.logger.Debug("udp send failed", "address", address, "status", status.String(), "reason", reason)
		return result
	}

	buf := make([]byte, udpReadSize)
	if _, err := conn.Read(buf); err != nil {
		status, reason := classifyError(err)
		result.Status = status
		e.logger.Debug("udp probe got no answer", "address", address, "status", status.String(), "reason", reason)
		return result
	}

	result.Status = model.StatusOpen
	result.Service = e.services.Lookup(port, model.ProtocolUDP)
	e.logger.Debug("udp port open", "address", address, "service", result.Service)
	return result
}
