package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/net/proxy"
)

// NewDialer returns the dialer used for TCP probes.
// An empty proxyAddress yields a direct dialer; otherwise TCP connections
// are tunnelled through the SOCKS5 proxy at proxyAddress ("host:port").
func NewDialer(proxyAddress string) (proxy.Dialer, error) {
	if proxyAddress == "" {
		return proxy.Direct, nil
	}
	if !isValidProxyAddress(proxyAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, proxyAddress)
	}

	// No auth: local SOCKS5 forwarders (ssh -D, tor) accept anonymous clients.
	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, &net.Dialer{})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	return dialer, nil
}

// isValidProxyAddress checks that address is "host:port" with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || strings.Contains(host, " ") {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// dialContext dials address through dialer respecting ctx.
// Dialers implementing proxy.ContextDialer are called directly; for the rest
// the dial runs in a goroutine and ctx cancellation abandons it.
func dialContext(ctx context.Context, dialer proxy.Dialer, network, address string) (net.Conn, error) {
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}

	resultCh := make(chan dialResult, 1)

	go func() {
		conn, err := dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case <-ctx.Done():
		// Close a connection that completes after we stopped waiting.
		go func() {
			if r := <-resultCh; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case result := <-resultCh:
		return result.conn, result.err
	}
}
