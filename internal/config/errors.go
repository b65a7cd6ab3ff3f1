package config

import "errors"

// Configuration validation errors returned by Config.Validate. They are
// reported before any scanning begins.
var (
	// ErrNoTarget is returned when --ip is missing.
	ErrNoTarget = errors.New("no target specified: use --ip")

	// ErrInvalidPortRange is returned when a port is outside 1..65535 or the
	// start port is greater than the end port.
	ErrInvalidPortRange = errors.New("invalid port range: ports must be in 1..65535 and start <= end")

	// ErrInvalidProtocol is returned for a protocol other than tcp or udp.
	ErrInvalidProtocol = errors.New("invalid protocol: must be tcp or udp")

	// ErrInvalidThreads is returned when the thread count is not positive.
	ErrInvalidThreads = errors.New("invalid thread count: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidUDPMode is returned for a UDP mode other than probe or connect.
	ErrInvalidUDPMode = errors.New("invalid udp mode: must be probe or connect")

	// ErrInvalidBannerSize is returned when the banner size is not positive.
	ErrInvalidBannerSize = errors.New("invalid banner size: must be positive")

	// ErrProxyWithUDP is returned when a SOCKS5 proxy is combined with UDP.
	ErrProxyWithUDP = errors.New("a SOCKS5 proxy can only carry tcp scans")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrReportFormatWithoutOutput is returned when --json or --markdown is
	// given without --output.
	ErrReportFormatWithoutOutput = errors.New("--json and --markdown require --output")
)
