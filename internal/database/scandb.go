package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/portsweep/internal/model"
)

// DBFileName is the name of the history database file inside its directory.
const DBFileName = "portsweep.db"

// ScanDB stores finished scan reports.
// It is safe for concurrent use; database/sql serialises access to the
// single SQLite connection.
type ScanDB struct {
	db *sql.DB

	dbPath string
}

// Options configures database behavior.
type Options struct {
	// CreateIfNotExists creates the database file and directory when missing.
	CreateIfNotExists bool

	// EnableWAL turns on write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens (or creates) the history database in dbDir.
func Open(dbDir string, opts Options) (*ScanDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &ScanDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Close closes the database connection.
func (sdb *ScanDB) Close() error {
	return sdb.db.Close()
}

// Path returns the database file path.
func (sdb *ScanDB) Path() string {
	return sdb.dbPath
}

func (sdb *ScanDB) createTables() error {
	schema := `
	-- One row per finished scan; the full report is kept as JSON
	CREATE TABLE IF NOT EXISTS scan_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL UNIQUE,
		target TEXT NOT NULL,
		protocol TEXT NOT NULL,
		port_start INTEGER NOT NULL,
		port_end INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		open_count INTEGER NOT NULL DEFAULT 0,
		closed_count INTEGER NOT NULL DEFAULT 0,
		filtered_count INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_target ON scan_reports(target);
	CREATE INDEX IF NOT EXISTS idx_reports_started ON scan_reports(started_at);

	-- Open ports of each scan, for cross-target lookups
	CREATE TABLE IF NOT EXISTS open_ports (
		report_id INTEGER NOT NULL REFERENCES scan_reports(id) ON DELETE CASCADE,
		target TEXT NOT NULL,
		protocol TEXT NOT NULL,
		port INTEGER NOT NULL,
		service TEXT,
		banner TEXT,
		PRIMARY KEY (report_id, port)
	);

	CREATE INDEX IF NOT EXISTS idx_open_ports_port ON open_ports(port, protocol);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveScanReport stores a finished report and its open ports in one
// transaction. It returns the database ID of the new row.
func (sdb *ScanDB) SaveScanReport(ctx context.Context, report *model.ScanReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	counts := report.Counts()
	result, err := tx.ExecContext(ctx, `
	INSERT INTO scan_reports (scan_id, target, protocol, port_start, port_end, started_at,
		open_count, closed_count, filtered_count, cancelled, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.Target,
		report.Protocol.String(),
		report.Ports.Start,
		report.Ports.End,
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		counts[model.StatusOpen],
		counts[model.StatusClosed],
		counts[model.StatusFiltered],
		report.Cancelled,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save scan report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get report id: %w", err)
	}

	for _, r := range report.OpenPorts() {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO open_ports (report_id, target, protocol, port, service, banner)
		VALUES (?, ?, ?, ?, ?, ?)
		`, id, report.Target, report.Protocol.String(), r.Port, r.Service, r.Banner); err != nil {
			return 0, fmt.Errorf("failed to save open port %d: %w", r.Port, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit scan report: %w", err)
	}
	return id, nil
}

// ScanReportMetadata summarises a stored scan without loading its results.
type ScanReportMetadata struct {
	// ID is the database ID of the scan.
	ID int64

	// ScanID is the report's UUID.
	ScanID string

	// Target is the scanned address.
	Target string

	// Protocol is the scanned protocol.
	Protocol model.Protocol

	// Ports is the scanned range.
	Ports model.PortRange

	// StartedAt is when the scan began.
	StartedAt time.Time

	// Open, Closed and Filtered are the per-status totals.
	Open     int
	Closed   int
	Filtered int

	// Cancelled is true for interrupted scans.
	Cancelled bool
}

const metadataColumns = `id, scan_id, target, protocol, port_start, port_end, started_at,
	open_count, closed_count, filtered_count, cancelled`

// GetScanHistory returns the metadata of every scan of target, newest first.
func (sdb *ScanDB) GetScanHistory(ctx context.Context, target string) ([]ScanReportMetadata, error) {
	query := `SELECT ` + metadataColumns + `
	FROM scan_reports
	WHERE target = ?
	ORDER BY id DESC
	`
	return sdb.queryMetadata(ctx, query, target)
}

// GetRecentScans returns the metadata of the latest scans of all targets,
// newest first. A non-positive limit returns every scan.
func (sdb *ScanDB) GetRecentScans(ctx context.Context, limit int) ([]ScanReportMetadata, error) {
	query := `SELECT ` + metadataColumns + `
	FROM scan_reports
	ORDER BY id DESC
	LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}
	return sdb.queryMetadata(ctx, query, limit)
}

func (sdb *ScanDB) queryMetadata(ctx context.Context, query string, args ...any) ([]ScanReportMetadata, error) {
	rows, err := sdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var results []ScanReportMetadata
	for rows.Next() {
		var (
			meta      ScanReportMetadata
			protocol  string
			startedAt string
		)
		if err := rows.Scan(
			&meta.ID,
			&meta.ScanID,
			&meta.Target,
			&protocol,
			&meta.Ports.Start,
			&meta.Ports.End,
			&startedAt,
			&meta.Open,
			&meta.Closed,
			&meta.Filtered,
			&meta.Cancelled,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Protocol = model.Protocol(protocol)
		meta.StartedAt = parseTimestamp(startedAt)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetLatestScanReports returns up to limit full reports of target, newest
// first.
func (sdb *ScanDB) GetLatestScanReports(ctx context.Context, target string, limit int) ([]*model.ScanReport, error) {
	rows, err := sdb.db.QueryContext(ctx, `
	SELECT report_json FROM scan_reports
	WHERE target = ?
	ORDER BY id DESC
	LIMIT ?
	`, target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.ScanReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		var report model.ScanReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// GetScanReportByID returns the report stored under id, or nil when there
// is none.
func (sdb *ScanDB) GetScanReportByID(ctx context.Context, id int64) (*model.ScanReport, error) {
	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, `
	SELECT report_json FROM scan_reports
	WHERE id = ?
	`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	var report model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListTargets returns every scanned target in lexical order.
func (sdb *ScanDB) ListTargets(ctx context.Context) ([]string, error) {
	rows, err := sdb.db.QueryContext(ctx, `
	SELECT DISTINCT target FROM scan_reports
	ORDER BY target
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}

	return targets, rows.Err()
}

// OpenPortRecord is one stored open port.
type OpenPortRecord struct {
	ReportID int64
	Target   string
	Protocol model.Protocol
	Port     int
	Service  string
	Banner   string
}

// FindOpenPort returns the targets on which port/proto was last seen open,
// one record per target taken from that target's latest scan. Targets whose
// latest scan found the port closed are not returned.
func (sdb *ScanDB) FindOpenPort(ctx context.Context, port int, proto model.Protocol) ([]OpenPortRecord, error) {
	rows, err := sdb.db.QueryContext(ctx, `
	SELECT o.report_id, o.target, o.protocol, o.port, COALESCE(o.service, ''), COALESCE(o.banner, '')
	FROM open_ports o
	WHERE o.port = ? AND o.protocol = ?
	  AND o.report_id = (
		SELECT MAX(r.id) FROM scan_reports r
		WHERE r.target = o.target AND r.protocol = o.protocol
		  AND r.port_start <= o.port AND r.port_end >= o.port
	  )
	ORDER BY o.target
	`, port, proto.String())
	if err != nil {
		return nil, fmt.Errorf("failed to find open port: %w", err)
	}
	defer rows.Close()

	var records []OpenPortRecord
	for rows.Next() {
		var (
			rec      OpenPortRecord
			protocol string
		)
		if err := rows.Scan(&rec.ReportID, &rec.Target, &protocol, &rec.Port, &rec.Service, &rec.Banner); err != nil {
			return nil, fmt.Errorf("failed to scan open port: %w", err)
		}
		rec.Protocol = model.Protocol(protocol)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses s with the first matching format, or returns the
// zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
