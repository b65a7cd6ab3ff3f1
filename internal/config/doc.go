// Package config provides the configuration of a portsweep run: defaults,
// validation, the optional .portsweep YAML file with per-target profiles,
// and the XDG directories used for the history database.
package config
