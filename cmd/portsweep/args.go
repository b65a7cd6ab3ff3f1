package main

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

// legacyFlags maps the single-dash multi-letter flags of the classic
// command line to their long names. pflag only allows one-letter
// shorthands, so these are rewritten before parsing.
var legacyFlags = map[string]string{
	"-ip":    "--ip",
	"-sp":    "--start-port",
	"-ep":    "--end-port",
	"-proto": "--protocol",
	"-to":    "--timeout",
}

// normalizeLegacyArgs rewrites legacy flags in args, including the
// "-sp=20" form. Everything after a "--" terminator is left alone.
func normalizeLegacyArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			return append(out, args[i:]...)
		}

		name, value, hasValue := strings.Cut(arg, "=")
		long, ok := legacyFlags[name]
		if !ok {
			out = append(out, arg)
			continue
		}
		if hasValue {
			out = append(out, long+"="+value)
			continue
		}
		out = append(out, long)
	}
	return out
}

// rootOnlyFlags are the flags that the root command handles by itself.
var rootOnlyFlags = []string{"-v", "--verbose"}

// withDefaultCommand routes a command line that starts with a flag and names
// no subcommand to scan, so "portsweep -ip 192.0.2.10" runs a scan. Help,
// version and a bare --verbose stay with the root command.
func withDefaultCommand(root *cobra.Command, args []string) []string {
	if len(args) == 0 || !strings.HasPrefix(args[0], "-") {
		return args
	}

	// Arguments after a terminator belong to the scan command.
	head, terminated := beforeTerminator(args)
	rootOnly := !terminated
	for _, arg := range head {
		switch {
		case arg == "-h", arg == "--help", arg == "--version":
			return args
		case isSubcommand(root, arg):
			return args
		case !slices.Contains(rootOnlyFlags, arg):
			rootOnly = false
		}
	}
	if rootOnly {
		return args
	}
	return append([]string{"scan"}, args...)
}

// isSubcommand reports whether name selects a subcommand of root.
func isSubcommand(root *cobra.Command, name string) bool {
	if name == "help" || name == "completion" {
		return true
	}
	for _, sub := range root.Commands() {
		if sub.Name() == name || sub.HasAlias(name) {
			return true
		}
	}
	return false
}

// beforeTerminator returns the arguments before the first "--" and whether
// one was present.
func beforeTerminator(args []string) ([]string, bool) {
	i := slices.Index(args, "--")
	if i < 0 {
		return args, false
	}
	return args[:i], true
}
