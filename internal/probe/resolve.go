package probe

import (
	"context"
	"fmt"
	"net"
)

// ResolveIPv4 returns host as an IPv4 literal. IPv4 literals are returned
// unchanged; names are looked up and the first IPv4 address is used.
func ResolveIPv4(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
		return "", fmt.Errorf("%w: %s is not an IPv4 address", ErrUnresolvableHost, host)
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnresolvableHost, host, err)
	}
	if len(ips) == 0 {
		return "", fmt.Errorf("%w: %s has no IPv4 address", ErrUnresolvableHost, host)
	}
	return ips[0].String(), nil
}
