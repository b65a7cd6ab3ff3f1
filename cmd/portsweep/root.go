package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for portsweep.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portsweep",
		Short: "Concurrent TCP/UDP port scanner",
		Long: `portsweep scans a range of TCP or UDP ports on one IPv4 host with a pool
of concurrent workers and classifies every port as open, closed or filtered.

Open TCP ports are sent a small HTTP request and any UTF-8 reply is shown
as the service banner, with control characters escaped. Finished scans are
stored in a local history database so later scans of the same host can be
compared.

Flags given without a subcommand are passed to scan:
  portsweep -ip 192.0.2.10 -sp 1 -ep 1024`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	cmd := NewRootCmd()
	cmd.SetArgs(withDefaultCommand(cmd, normalizeLegacyArgs(os.Args[1:])))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
