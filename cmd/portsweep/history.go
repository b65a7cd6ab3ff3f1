package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/portsweep/internal/config"
	"github.com/nao1215/portsweep/internal/database"
	"github.com/nao1215/portsweep/internal/model"
	"github.com/nao1215/portsweep/internal/probe"
	"github.com/spf13/cobra"
)

// Exposure directions of a comparison.
const (
	exposureIncreased = "increased"
	exposureDecreased = "decreased"
	exposureUnchanged = "unchanged"
)

// defaultHistoryLimit bounds the scan list printed without a target.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [ip]",
		Short: "Show and compare stored scan results",
		Long: `History reads the scan results saved by 'portsweep scan'.

Without arguments it lists the most recent scans of every target. With a
target it lists that target's scans, and with --compare it shows which
ports changed status between the two latest scans of the same protocol:
- ports that became open
- ports that are no longer open
- ports that moved between closed and filtered

Examples:
  # List recent scans
  portsweep history

  # List scans of one host
  portsweep history 192.0.2.10

  # Compare the latest two scans of a host
  portsweep history --compare 192.0.2.10

  # Compare the latest scan with a specific stored scan
  portsweep history --compare --with-scan-id 3 192.0.2.10

  # Which hosts had port 22/tcp open in their latest scan
  portsweep history --open-port 22

  # List all scanned hosts
  portsweep history --list-targets`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-targets", "L", false, "List all scanned targets in the database")
	cmd.Flags().Int("limit", defaultHistoryLimit, "Maximum number of scans listed without a target (0 for all)")

	cmd.Flags().Bool("compare", false, "Compare the latest two scans of the target")
	cmd.Flags().Int64("with-scan-id", 0, "Compare the latest scan with the stored scan of this ID")

	cmd.Flags().Int("open-port", 0, "List targets whose latest scan found this port open")
	cmd.Flags().String("protocol", config.DefaultProtocol, "Protocol of --open-port: tcp or udp")

	cmd.Flags().BoolP("json", "j", false, "Output the comparison in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output the comparison in Markdown format")

	cmd.Flags().String("db-dir", "", "Directory of the history database (default: XDG data directory)")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	target      string
	listTargets bool
	limit       int
	compare     bool
	withScanID  int64
	openPort    int
	proto       model.Protocol
	json        bool
	markdown    bool
	dbDir       string
}

// parseHistoryOptions reads and validates the history flags before the
// database is opened.
func parseHistoryOptions(cmd *cobra.Command, args []string) (historyOptions, error) {
	var (
		opts historyOptions
		err  error
	)
	flags := cmd.Flags()

	if opts.listTargets, err = flags.GetBool("list-targets"); err != nil {
		return opts, err
	}
	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return opts, err
	}
	if opts.compare, err = flags.GetBool("compare"); err != nil {
		return opts, err
	}
	if opts.withScanID, err = flags.GetInt64("with-scan-id"); err != nil {
		return opts, err
	}
	if opts.openPort, err = flags.GetInt("open-port"); err != nil {
		return opts, err
	}
	proto, err := flags.GetString("protocol")
	if err != nil {
		return opts, err
	}
	if opts.proto, err = model.ParseProtocol(proto); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return opts, err
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}

	if opts.json && opts.markdown {
		return opts, config.ErrConflictingReportFormats
	}
	allPorts := model.PortRange{Start: model.MinPort, End: model.MaxPort}
	if flags.Changed("open-port") && !allPorts.Contains(opts.openPort) {
		return opts, fmt.Errorf("%w: %d", model.ErrInvalidPortRange, opts.openPort)
	}

	if len(args) > 0 {
		opts.target, err = probe.ResolveIPv4(cmd.Context(), args[0])
		if err != nil {
			return opts, err
		}
	}
	if (opts.compare || opts.withScanID != 0) && opts.target == "" {
		return opts, errors.New("a target is required for --compare (use --list-targets to see scanned targets)")
	}

	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	// Flags are validated first so a bad invocation never opens the database.
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case opts.listTargets:
		return listTargets(ctx, out, db)
	case cmd.Flags().Changed("open-port"):
		return listOpenPort(ctx, out, db, opts.openPort, opts.proto)
	case opts.compare || opts.withScanID != 0:
		return runComparison(ctx, out, db, opts)
	case opts.target != "":
		return listScanHistory(ctx, out, db, opts.target)
	default:
		return listRecentScans(ctx, out, db, opts.limit)
	}
}

// listTargets lists every target with stored scans.
func listTargets(ctx context.Context, out io.Writer, db *database.ScanDB) error {
	targets, err := db.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	if len(targets) == 0 {
		fmt.Fprintln(out, "No scanned targets found in the database.")
		fmt.Fprintln(out, "\nUse 'portsweep scan --ip <address>' to scan a host.")
		return nil
	}

	fmt.Fprintf(out, "Scanned targets (%d):\n\n", len(targets))
	for _, target := range targets {
		fmt.Fprintf(out, "  • %s\n", target)
	}
	fmt.Fprintln(out, "\nUse 'portsweep history <address>' to see the scans of a target.")

	return nil
}

// listScanHistory lists every stored scan of target.
func listScanHistory(ctx context.Context, out io.Writer, db *database.ScanDB, target string) error {
	scans, err := db.GetScanHistory(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(scans) == 0 {
		fmt.Fprintf(out, "No scan history found for %s\n", target)
		fmt.Fprintln(out, "\nUse 'portsweep scan' to scan this host.")
		return nil
	}

	fmt.Fprintf(out, "Scan history for %s (%d scans):\n\n", target, len(scans))
	writeScanTable(out, scans, false)

	fmt.Fprintln(out, "\nUse 'portsweep history --compare <address>' to compare the latest two scans.")
	fmt.Fprintln(out, "Use 'portsweep history --compare --with-scan-id <id> <address>' to compare with a specific scan.")

	return nil
}

// listRecentScans lists the latest scans of all targets.
func listRecentScans(ctx context.Context, out io.Writer, db *database.ScanDB, limit int) error {
	scans, err := db.GetRecentScans(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to get recent scans: %w", err)
	}

	if len(scans) == 0 {
		fmt.Fprintln(out, "No scans found in the database.")
		fmt.Fprintln(out, "\nUse 'portsweep scan --ip <address>' to scan a host.")
		return nil
	}

	fmt.Fprintf(out, "Recent scans (%d):\n\n", len(scans))
	writeScanTable(out, scans, true)

	return nil
}

func writeScanTable(out io.Writer, scans []database.ScanReportMetadata, withTarget bool) {
	if withTarget {
		fmt.Fprintf(out, "  %-6s  %-20s  %-16s  %-5s  %-12s  %s\n", "ID", "Date", "Target", "Proto", "Ports", "Open/Closed/Filtered")
	} else {
		fmt.Fprintf(out, "  %-6s  %-20s  %-5s  %-12s  %s\n", "ID", "Date", "Proto", "Ports", "Open/Closed/Filtered")
	}
	fmt.Fprintln(out, "  "+strings.Repeat("-", 80))

	for _, meta := range scans {
		counts := fmt.Sprintf("%d/%d/%d", meta.Open, meta.Closed, meta.Filtered)
		if meta.Cancelled {
			counts += " (interrupted)"
		}
		date := meta.StartedAt.Local().Format("2006-01-02 15:04:05")
		if withTarget {
			fmt.Fprintf(out, "  %-6d  %-20s  %-16s  %-5s  %-12s  %s\n",
				meta.ID, date, meta.Target, meta.Protocol, meta.Ports, counts)
			continue
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-5s  %-12s  %s\n",
			meta.ID, date, meta.Protocol, meta.Ports, counts)
	}
}

// listOpenPort lists the targets whose latest scan found port open.
func listOpenPort(ctx context.Context, out io.Writer, db *database.ScanDB, port int, proto model.Protocol) error {
	records, err := db.FindOpenPort(ctx, port, proto)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No target has %d/%s open in its latest scan.\n", port, proto)
		return nil
	}

	fmt.Fprintf(out, "Targets with %d/%s open (%d):\n\n", port, proto, len(records))
	for _, rec := range records {
		service := rec.Service
		if service == "" {
			service = "-"
		}
		fmt.Fprintf(out, "  • %s  %s  (scan %d)\n", rec.Target, service, rec.ReportID)
	}

	return nil
}

// ScanSummary describes one side of a comparison.
type ScanSummary struct {
	// ScanID is the report UUID.
	ScanID string `json:"scan_id"`

	// StartedAt is when the scan began.
	StartedAt time.Time `json:"started_at"`

	// Ports is the scanned range.
	Ports string `json:"ports"`

	// Open, Closed and Filtered are the per-status totals.
	Open     int `json:"open"`
	Closed   int `json:"closed"`
	Filtered int `json:"filtered"`
}

// PortChange is one port whose status differs between two scans.
type PortChange struct {
	Port     int          `json:"port"`
	Previous model.Status `json:"previous"`
	Current  model.Status `json:"current"`
	Service  string       `json:"service,omitempty"`
}

// ComparisonResult is the difference between two scans of one target.
type ComparisonResult struct {
	// Target is the compared address.
	Target string `json:"target"`

	// Protocol is the protocol both scans used.
	Protocol model.Protocol `json:"protocol"`

	// PreviousScan and CurrentScan summarise the two scans.
	PreviousScan ScanSummary `json:"previous_scan"`
	CurrentScan  ScanSummary `json:"current_scan"`

	// Opened lists ports that are open now but were not before.
	Opened []PortChange `json:"opened,omitempty"`

	// Shut lists ports that were open but are not any more.
	Shut []PortChange `json:"shut,omitempty"`

	// Moved lists ports that changed between closed and filtered.
	Moved []PortChange `json:"moved,omitempty"`

	// UnchangedCount is the number of ports with the same status in both.
	UnchangedCount int `json:"unchanged_count"`

	// Exposure tells whether the number of open ports went up or down.
	Exposure string `json:"exposure"`
}

// runComparison compares the latest scan of opts.target with the one
// before it, or with the scan opts.withScanID.
func runComparison(ctx context.Context, out io.Writer, db *database.ScanDB, opts historyOptions) error {
	reports, err := db.GetLatestScanReports(ctx, opts.target, -1)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		return fmt.Errorf("no scan history found for %s", opts.target)
	}

	current := reports[0]
	var previous *model.ScanReport

	if opts.withScanID != 0 {
		previous, err = db.GetScanReportByID(ctx, opts.withScanID)
		if err != nil {
			return err
		}
		if previous == nil {
			return fmt.Errorf("scan ID %d not found", opts.withScanID)
		}
		if previous.Target != current.Target {
			return fmt.Errorf("scan ID %d belongs to %s, not %s", opts.withScanID, previous.Target, current.Target)
		}
		if previous.Protocol != current.Protocol {
			return fmt.Errorf("scan ID %d is a %s scan, the latest scan is %s", opts.withScanID, previous.Protocol, current.Protocol)
		}
	} else {
		for _, r := range reports[1:] {
			if r.Protocol == current.Protocol {
				previous = r
				break
			}
		}
		if previous == nil {
			return fmt.Errorf("at least 2 %s scans of %s are required for comparison", current.Protocol, opts.target)
		}
	}

	result := compareReports(previous, current)

	switch {
	case opts.json:
		return outputComparisonJSON(out, result)
	case opts.markdown:
		return outputComparisonMarkdown(out, result)
	default:
		return outputComparisonText(out, result)
	}
}

func newScanSummary(r *model.ScanReport) ScanSummary {
	counts := r.Counts()
	return ScanSummary{
		ScanID:    r.ID,
		StartedAt: r.StartedAt,
		Ports:     r.Ports.String(),
		Open:      counts[model.StatusOpen],
		Closed:    counts[model.StatusClosed],
		Filtered:  counts[model.StatusFiltered],
	}
}

// compareReports compares the ports probed in both scans. Ports present in
// only one of them are ignored.
func compareReports(previous, current *model.ScanReport) *ComparisonResult {
	result := &ComparisonResult{
		Target:       current.Target,
		Protocol:     current.Protocol,
		PreviousScan: newScanSummary(previous),
		CurrentScan:  newScanSummary(current),
	}

	for _, cur := range current.Results {
		prev, ok := previous.Result(cur.Port)
		if !ok {
			continue
		}
		if prev.Status == cur.Status {
			result.UnchangedCount++
			continue
		}

		service := cur.Service
		if service == "" {
			service = prev.Service
		}
		change := PortChange{
			Port:     cur.Port,
			Previous: prev.Status,
			Current:  cur.Status,
			Service:  service,
		}

		switch {
		case cur.Status == model.StatusOpen:
			result.Opened = append(result.Opened, change)
		case prev.Status == model.StatusOpen:
			result.Shut = append(result.Shut, change)
		default:
			result.Moved = append(result.Moved, change)
		}
	}

	switch delta := len(result.Opened) - len(result.Shut); {
	case delta > 0:
		result.Exposure = exposureIncreased
	case delta < 0:
		result.Exposure = exposureDecreased
	default:
		result.Exposure = exposureUnchanged
	}

	return result
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)

	md.H1f("Scan Comparison: %s (%s)", result.Target, result.Protocol)
	md.PlainText("")
	md.H2("Summary")
	md.PlainText("")
	md.PlainTextf("**Exposure:** %s", formatExposure(result.Exposure))
	md.PlainText("")

	prev, cur := result.PreviousScan, result.CurrentScan
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Date", prev.StartedAt.Format("2006-01-02 15:04"), cur.StartedAt.Format("2006-01-02 15:04"), "-"},
			{"Ports", prev.Ports, cur.Ports, "-"},
			{"Open", strconv.Itoa(prev.Open), strconv.Itoa(cur.Open), formatDelta(cur.Open - prev.Open)},
			{"Closed", strconv.Itoa(prev.Closed), strconv.Itoa(cur.Closed), formatDelta(cur.Closed - prev.Closed)},
			{"Filtered", strconv.Itoa(prev.Filtered), strconv.Itoa(cur.Filtered), formatDelta(cur.Filtered - prev.Filtered)},
		},
	})
	md.PlainText("")

	sections := []struct {
		title   string
		changes []PortChange
	}{
		{"Newly Open Ports", result.Opened},
		{"No Longer Open", result.Shut},
		{"Closed/Filtered Changes", result.Moved},
	}
	for _, s := range sections {
		if len(s.changes) == 0 {
			continue
		}
		md.H2f("%s (%d)", s.title, len(s.changes))
		md.PlainText("")
		rows := make([][]string, len(s.changes))
		for i, c := range s.changes {
			rows[i] = []string{strconv.Itoa(c.Port), c.Previous.String(), c.Current.String(), serviceOrDash(c.Service)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Port", "Previous", "Current", "Service"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d ports unchanged*", result.UnchangedCount)
	}

	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Scan Comparison: %s (%s)\n", result.Target, result.Protocol)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nExposure: %s\n", formatExposure(result.Exposure))

	prev, cur := result.PreviousScan, result.CurrentScan
	fmt.Fprintf(out, "\nPrevious scan: %s (ports %s)\n", prev.StartedAt.Local().Format("2006-01-02 15:04:05"), prev.Ports)
	fmt.Fprintf(out, "Current scan:  %s (ports %s)\n", cur.StartedAt.Local().Format("2006-01-02 15:04:05"), cur.Ports)

	fmt.Fprintln(out, "\nPort Summary:")
	fmt.Fprintf(out, "  %-10s  %-10s  %-10s  %-10s\n", "Status", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Open", prev.Open, cur.Open, formatDelta(cur.Open-prev.Open))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Closed", prev.Closed, cur.Closed, formatDelta(cur.Closed-prev.Closed))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Filtered", prev.Filtered, cur.Filtered, formatDelta(cur.Filtered-prev.Filtered))

	if len(result.Opened) > 0 {
		fmt.Fprintf(out, "\nNewly Open (%d):\n", len(result.Opened))
		for _, c := range result.Opened {
			fmt.Fprintf(out, "  [+] %d: %s -> %s  %s\n", c.Port, c.Previous, c.Current, serviceOrDash(c.Service))
		}
	}

	if len(result.Shut) > 0 {
		fmt.Fprintf(out, "\nNo Longer Open (%d):\n", len(result.Shut))
		for _, c := range result.Shut {
			fmt.Fprintf(out, "  [-] %d: %s -> %s  %s\n", c.Port, c.Previous, c.Current, serviceOrDash(c.Service))
		}
	}

	if len(result.Moved) > 0 {
		fmt.Fprintf(out, "\nClosed/Filtered Changes (%d):\n", len(result.Moved))
		for _, c := range result.Moved {
			fmt.Fprintf(out, "  [~] %d: %s -> %s\n", c.Port, c.Previous, c.Current)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d ports\n", result.UnchangedCount)
	}

	return nil
}

func serviceOrDash(service string) string {
	if service == "" {
		return "-"
	}
	return service
}

// formatExposure formats the exposure direction for display.
func formatExposure(direction string) string {
	switch direction {
	case exposureIncreased:
		return "INCREASED (more open ports)"
	case exposureDecreased:
		return "DECREASED (fewer open ports)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
