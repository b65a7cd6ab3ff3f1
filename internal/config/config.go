package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/portsweep/internal/model"
)

// Default configuration values.
const (
	// DefaultStartPort is the first port scanned when --start-port is not given.
	DefaultStartPort = model.MinPort

	// DefaultEndPort is the last port scanned when --end-port is not given.
	DefaultEndPort = model.MaxPort

	// DefaultProtocol is the transport scanned by default.
	DefaultProtocol = "tcp"

	// DefaultThreads is the number of concurrent probes.
	DefaultThreads = 100

	// DefaultTimeout bounds each connect, send and read of one probe.
	DefaultTimeout = 1 * time.Second

	// DefaultUDPMode sends a datagram to each UDP port.
	DefaultUDPMode = "probe"

	// DefaultBannerSize is the maximum number of banner bytes read from an
	// open TCP port.
	DefaultBannerSize = 1024

	// AppName is the application name used for XDG directory paths.
	AppName = "portsweep"
)

// Config holds all options of one scan run. It is filled from CLI flags and
// the optional config file, validated once, and then turned into a
// model.ScanRequest.
type Config struct {
	// Target is the host to scan. After resolution it is an IPv4 literal.
	Target string

	// StartPort and EndPort bound the inclusive range to scan.
	StartPort int
	EndPort   int

	// Protocol is "tcp" or "udp".
	Protocol string

	// Threads is the number of concurrent probes.
	Threads int

	// Timeout bounds each connect, send and read of one probe.
	Timeout time.Duration

	// Stealth forces one thread and a 5 second timeout.
	Stealth bool

	// UDPMode is "probe" or "connect".
	UDPMode string

	// ProxyAddress is an optional SOCKS5 proxy ("host:port") for TCP scans.
	ProxyAddress string

	// BannerSize bounds the single banner read on an open TCP port.
	BannerSize int

	// OpenOnly limits the console summary to open ports.
	OpenOnly bool

	// OutputFile is where results are saved. Empty means no file.
	OutputFile string

	// JSONReport writes OutputFile as JSON instead of result lines.
	JSONReport bool

	// MarkdownReport writes OutputFile as Markdown instead of result lines.
	MarkdownReport bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit config file path. When empty the file is
	// searched for (see FindConfigFile).
	ConfigFilePath string

	// TargetConfigs holds the profiles loaded from the config file, if any.
	TargetConfigs *File

	// DBDir is the directory of the history database.
	DBDir string

	// SaveToDB records finished scans in the history database.
	SaveToDB bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		StartPort:  DefaultStartPort,
		EndPort:    DefaultEndPort,
		Protocol:   DefaultProtocol,
		Threads:    DefaultThreads,
		Timeout:    DefaultTimeout,
		UDPMode:    DefaultUDPMode,
		BannerSize: DefaultBannerSize,
		DBDir:      XDGDataDir(),
		SaveToDB:   true,
	}
}

// XDGDataDir returns the XDG data directory for portsweep.
// On Linux: ~/.local/share/portsweep
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for portsweep.
// On Linux: ~/.config/portsweep
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return ErrNoTarget
	}

	if c.StartPort < model.MinPort || c.EndPort > model.MaxPort || c.StartPort > c.EndPort {
		return ErrInvalidPortRange
	}

	if _, err := model.ParseProtocol(c.Protocol); err != nil {
		return ErrInvalidProtocol
	}

	if c.Threads <= 0 {
		return ErrInvalidThreads
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	switch strings.ToLower(c.UDPMode) {
	case "probe", "connect":
	default:
		return ErrInvalidUDPMode
	}

	if c.BannerSize <= 0 {
		return ErrInvalidBannerSize
	}

	if c.ProxyAddress != "" && strings.EqualFold(c.Protocol, string(model.ProtocolUDP)) {
		return ErrProxyWithUDP
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if (c.JSONReport || c.MarkdownReport) && c.OutputFile == "" {
		return ErrReportFormatWithoutOutput
	}

	return nil
}

// ScanRequest converts a validated configuration into a scan request.
func (c *Config) ScanRequest() (model.ScanRequest, error) {
	proto, err := model.ParseProtocol(c.Protocol)
	if err != nil {
		return model.ScanRequest{}, err
	}

	req := model.ScanRequest{
		Target:   c.Target,
		Ports:    model.PortRange{Start: c.StartPort, End: c.EndPort},
		Protocol: proto,
		Workers:  c.Threads,
		Timeout:  c.Timeout,
		Stealth:  c.Stealth,
	}
	if err := req.Validate(); err != nil {
		return model.ScanRequest{}, err
	}
	return req, nil
}
