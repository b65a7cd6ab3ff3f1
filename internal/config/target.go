package config

import "time"

// Names of the settings a target profile can carry. They match the scan
// command's flag names so that explicitly set flags can win over the file.
const (
	SettingStartPort = "start-port"
	SettingEndPort   = "end-port"
	SettingProtocol  = "protocol"
	SettingThreads   = "threads"
	SettingTimeout   = "timeout"
	SettingStealth   = "stealth"
	SettingUDPMode   = "udp-mode"
	SettingProxy     = "proxy"
)

// TargetConfig holds settings for one target, or the defaults for all.
// Zero values mean "not set".
type TargetConfig struct {
	// StartPort and EndPort override the scanned range.
	StartPort int `yaml:"start_port,omitempty"`
	EndPort   int `yaml:"end_port,omitempty"`

	// Protocol is "tcp" or "udp".
	Protocol string `yaml:"protocol,omitempty"`

	// Threads is the number of concurrent probes.
	Threads int `yaml:"threads,omitempty"`

	// Timeout is a Go duration string such as "500ms" or "2s".
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Stealth enables stealth mode.
	Stealth bool `yaml:"stealth,omitempty"`

	// UDPMode is "probe" or "connect".
	UDPMode string `yaml:"udp_mode,omitempty"`

	// Proxy is a SOCKS5 proxy address for TCP scans.
	Proxy string `yaml:"proxy,omitempty"`
}

// File represents the structure of the .portsweep configuration file.
type File struct {
	// Defaults apply to every target.
	Defaults TargetConfig `yaml:"defaults,omitempty"`

	// Targets maps a target, as given to --ip, to its profile.
	Targets map[string]TargetConfig `yaml:"targets,omitempty"`
}

// GetTargetConfig returns the defaults overlaid with the profile of target.
func (f *File) GetTargetConfig(target string) TargetConfig {
	result := f.Defaults

	tc, ok := f.Targets[target]
	if !ok {
		return result
	}

	if tc.StartPort != 0 {
		result.StartPort = tc.StartPort
	}
	if tc.EndPort != 0 {
		result.EndPort = tc.EndPort
	}
	if tc.Protocol != "" {
		result.Protocol = tc.Protocol
	}
	if tc.Threads != 0 {
		result.Threads = tc.Threads
	}
	if tc.Timeout != 0 {
		result.Timeout = tc.Timeout
	}
	if tc.Stealth {
		result.Stealth = true
	}
	if tc.UDPMode != "" {
		result.UDPMode = tc.UDPMode
	}
	if tc.Proxy != "" {
		result.Proxy = tc.Proxy
	}

	return result
}

// Apply copies the settings of tc into c. Settings for which isSet reports
// true were given explicitly on the command line and are left alone.
func (c *Config) Apply(tc TargetConfig, isSet func(setting string) bool) {
	if isSet == nil {
		isSet = func(string) bool { return false }
	}

	if tc.StartPort != 0 && !isSet(SettingStartPort) {
		c.StartPort = tc.StartPort
	}
	if tc.EndPort != 0 && !isSet(SettingEndPort) {
		c.EndPort = tc.EndPort
	}
	if tc.Protocol != "" && !isSet(SettingProtocol) {
		c.Protocol = tc.Protocol
	}
	if tc.Threads != 0 && !isSet(SettingThreads) {
		c.Threads = tc.Threads
	}
	if tc.Timeout != 0 && !isSet(SettingTimeout) {
		c.Timeout = tc.Timeout
	}
	if tc.Stealth && !isSet(SettingStealth) {
		c.Stealth = true
	}
	if tc.UDPMode != "" && !isSet(SettingUDPMode) {
		c.UDPMode = tc.UDPMode
	}
	if tc.Proxy != "" && !isSet(SettingProxy) {
		c.ProxyAddress = tc.Proxy
	}
}
