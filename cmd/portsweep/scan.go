package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/portsweep/internal/config"
	"github.com/nao1215/portsweep/internal/database"
	plog "github.com/nao1215/portsweep/internal/log"
	"github.com/nao1215/portsweep/internal/model"
	"github.com/nao1215/portsweep/internal/probe"
	"github.com/nao1215/portsweep/internal/report"
	"github.com/nao1215/portsweep/internal/scanner"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a range of ports on one IPv4 host",
		Long: `Scan probes every port in the range [start-port, end-port] on the target
and prints one line per port once all workers have finished.

TCP ports are open when the handshake completes, closed when the host
actively refuses the connection and filtered when the attempt times out or
the host is unreachable. UDP ports are open when they answer a one-byte
datagram (--udp-mode probe) or as soon as the datagram socket connects
(--udp-mode connect).

The classic single-dash spellings -ip, -sp, -ep, -proto and -to are
accepted as aliases of --ip, --start-port, --end-port, --protocol and
--timeout.

Examples:
  # Scan all TCP ports with 100 workers
  portsweep scan --ip 192.0.2.10

  # Scan the well-known ports and save the result
  portsweep scan -ip 192.0.2.10 -sp 1 -ep 1024 -t 200 -o result.txt

  # Slow single-worker scan with a five second timeout
  portsweep scan --ip 192.0.2.10 --stealth

  # UDP scan
  portsweep scan --ip 192.0.2.10 -sp 50 -ep 60 -proto udp

  # TCP scan through a SOCKS5 proxy, Markdown report
  portsweep scan --ip 192.0.2.10 --proxy 127.0.0.1:9050 -m -o report.md

Configuration file (.portsweep) example:
  defaults:
    threads: 200
  targets:
    192.0.2.10:
      end_port: 1024
      timeout: 2s`,
		Args: cobra.NoArgs,
		RunE: runScanCmd,
	}

	cmd.Flags().String("ip", "", "Target IPv4 address or host name (required)")
	cmd.Flags().Int(config.SettingStartPort, config.DefaultStartPort, "First port to scan (alias -sp)")
	cmd.Flags().Int(config.SettingEndPort, config.DefaultEndPort, "Last port to scan (alias -ep)")
	cmd.Flags().String(config.SettingProtocol, config.DefaultProtocol, "Protocol to scan: tcp or udp (alias -proto)")
	cmd.Flags().IntP(config.SettingThreads, "t", config.DefaultThreads, "Number of concurrent workers")
	cmd.Flags().Int(config.SettingTimeout, int(config.DefaultTimeout/time.Second), "Per-port timeout in seconds (alias -to)")
	cmd.Flags().BoolP(config.SettingStealth, "s", false, "Stealth mode: one worker and a 5 second timeout")
	cmd.Flags().String(config.SettingUDPMode, config.DefaultUDPMode, "UDP classification: probe or connect")
	cmd.Flags().String(config.SettingProxy, "", "SOCKS5 proxy address for TCP scans (host:port)")
	cmd.Flags().Int("banner-size", config.DefaultBannerSize, "Maximum number of banner bytes read from an open TCP port")
	cmd.Flags().Bool("open-only", false, "Print only open ports in the console summary")

	cmd.Flags().StringP("output", "o", "", "Write results to the file (truncated if it exists)")
	cmd.Flags().BoolP("json", "j", false, "Write the output file as JSON (requires --output)")
	cmd.Flags().BoolP("markdown", "m", false, "Write the output file as Markdown (requires --output)")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .portsweep in current or home directory)")
	cmd.Flags().Bool("no-history", false, "Do not save the scan to the history database")
	cmd.Flags().String("db-dir", "", "Directory of the history database (default: XDG data directory)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runScan(ctx, cmd.OutOrStdout(), cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the
// configuration file. Flags set on the command line win over the file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	if cfg.Target, err = flags.GetString("ip"); err != nil {
		return nil, err
	}
	if cfg.StartPort, err = flags.GetInt(config.SettingStartPort); err != nil {
		return nil, err
	}
	if cfg.EndPort, err = flags.GetInt(config.SettingEndPort); err != nil {
		return nil, err
	}
	if cfg.Protocol, err = flags.GetString(config.SettingProtocol); err != nil {
		return nil, err
	}
	if cfg.Threads, err = flags.GetInt(config.SettingThreads); err != nil {
		return nil, err
	}

	timeoutSeconds, err := flags.GetInt(config.SettingTimeout)
	if err != nil {
		return nil, err
	}
	cfg.Timeout = time.Duration(timeoutSeconds) * time.Second

	if cfg.Stealth, err = flags.GetBool(config.SettingStealth); err != nil {
		return nil, err
	}
	if cfg.UDPMode, err = flags.GetString(config.SettingUDPMode); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString(config.SettingProxy); err != nil {
		return nil, err
	}
	if cfg.BannerSize, err = flags.GetInt("banner-size"); err != nil {
		return nil, err
	}
	if cfg.OpenOnly, err = flags.GetBool("open-only"); err != nil {
		return nil, err
	}
	if cfg.OutputFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicitly named file must exist; otherwise a missing file just
	// means no profile.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		cfg.TargetConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	default:
		cfg.TargetConfigs = &config.File{
			Targets: make(map[string]config.TargetConfig),
		}
	}

	cfg.Apply(cfg.TargetConfigs.GetTargetConfig(cfg.Target), flags.Changed)

	return cfg, nil
}

// setupLogger creates the stderr logger. Records pass through the
// SecureHandler so proxy credentials and banner control bytes never reach
// the terminal raw.
func setupLogger(verbose bool) *slog.Logger {
	return plog.NewSecureLogger(os.Stderr, verbose)
}

// runScan resolves the target, runs the scan and emits every output.
func runScan(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) error {
	host, err := probe.ResolveIPv4(ctx, cfg.Target)
	if err != nil {
		return err
	}
	cfg.Target = host

	req, err := cfg.ScanRequest()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	udpMode, err := probe.ParseUDPMode(cfg.UDPMode)
	if err != nil {
		return err
	}

	dialer, err := probe.NewDialer(cfg.ProxyAddress)
	if err != nil {
		return err
	}

	executor := probe.NewExecutor(
		probe.WithDialer(dialer),
		probe.WithServices(probe.SystemServices()),
		probe.WithUDPMode(udpMode),
		probe.WithBannerReader(probe.NewBannerReader(probe.WithBannerSize(cfg.BannerSize))),
		probe.WithLogger(logger),
	)

	// Banner lines come from several workers at once.
	var outMu sync.Mutex
	coordinator := scanner.New(executor,
		scanner.WithLogger(logger),
		scanner.WithBannerHook(func(addr string, port int, banner string) {
			outMu.Lock()
			defer outMu.Unlock()
			fmt.Fprintln(out, bannerLine(addr, port, banner))
		}),
	)

	if req.Stealth {
		fmt.Fprintln(out, "[*] Stealth mode enabled. Scanning will be slow to avoid detection.")
	}
	fmt.Fprintf(out, "[*] Scanning IP: %s | Ports: %d-%d | Protocol: %s\n",
		req.Target, req.Ports.Start, req.Ports.End, req.Protocol)

	scanReport, runErr := coordinator.Run(ctx, req)
	if scanReport == nil {
		return runErr
	}

	if _, err := report.NewConsoleWriter(out, report.WithOpenOnly(cfg.OpenOnly)).Write(scanReport); err != nil {
		return fmt.Errorf("failed to print results: %w", err)
	}

	var outputErr error
	if cfg.OutputFile != "" {
		if outputErr = outputReport(cfg, scanReport); outputErr == nil {
			fmt.Fprintf(out, "[+] Results saved to %s\n", cfg.OutputFile)
		} else {
			logger.Error("failed to write output file", "path", cfg.OutputFile, "error", outputErr)
		}
	}

	if cfg.SaveToDB {
		if err := saveScanReport(ctx, cfg.DBDir, scanReport, logger); err != nil {
			logger.Error("failed to save scan history", "error", err)
		}
	}

	fmt.Fprintf(out, "[*] Scan completed in %.2f seconds\n", scanReport.Duration.Seconds())

	return errors.Join(runErr, outputErr)
}

// bannerLine formats a captured banner for the terminal. Trailing line
// breaks are dropped and other control characters are escaped.
func bannerLine(host string, port int, banner string) string {
	banner = plog.EscapeControl(strings.TrimRight(banner, "\r\n"))
	return fmt.Sprintf("[+] Banner from %s:%d: %s", host, port, banner)
}

// outputReport writes scanReport to cfg.OutputFile in the requested format.
func outputReport(cfg *config.Config, scanReport *model.ScanReport) error {
	dir := filepath.Dir(cfg.OutputFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(f, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(f)
	default:
		writer = report.NewLineWriter(f)
	}

	if _, err := writer.Write(scanReport); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return f.Close()
}

// saveScanReport stores scanReport in the history database under dbDir.
func saveScanReport(ctx context.Context, dbDir string, scanReport *model.ScanReport, logger *slog.Logger) error {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	// An interrupted scan is still worth keeping.
	id, err := db.SaveScanReport(context.WithoutCancel(ctx), scanReport)
	if err != nil {
		return fmt.Errorf("failed to save scan report: %w", err)
	}

	logger.Info("scan report saved to database", "target", scanReport.Target, "id", id)
	return nil
}
