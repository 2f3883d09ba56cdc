package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fareprobe/internal/scenario"
)

// Run is one archived scenario execution.
type Run struct {
	ID            int64
	RunID         string
	TestID        string
	Description   string
	OriginCity    string
	OriginCode    string
	DestCity      string
	DestCode      string
	Strategy      string
	Attempts      int
	BeforeCount   int
	AfterCount    int
	OffersChecked int
	OffersPassed  int
	OffersFailed  int
	Status        string
	Reason        string
	ReportJSON    string
	CreatedAt     time.Time
}

// DB wraps the local SQLite run archive.
type DB struct {
	db *sql.DB
}

// Open opens or creates the archive at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets a results viewer read while a run is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the archive.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		test_id TEXT NOT NULL,
		description TEXT,
		origin_city TEXT,
		origin_code TEXT,
		dest_city TEXT,
		dest_code TEXT,
		strategy TEXT,
		attempts INTEGER DEFAULT 0,
		before_count INTEGER DEFAULT 0,
		after_count INTEGER DEFAULT 0,
		offers_checked INTEGER DEFAULT 0,
		offers_passed INTEGER DEFAULT 0,
		offers_failed INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		reason TEXT,
		report_json TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_runs_run_id ON runs(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_test_id ON runs(test_id);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_runs_route ON runs(origin_code, dest_code);
	`

	_, err := db.Exec(schema)
	return err
}

// InsertReport archives one scenario report under a run id.
func (d *DB) InsertReport(runID string, rep scenario.Report) (int64, error) {
	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return 0, fmt.Errorf("marshal report: %w", err)
	}

	result, err := d.db.Exec(`
		INSERT INTO runs (run_id, test_id, description, origin_city, origin_code,
			dest_city, dest_code, strategy, attempts, before_count, after_count,
			offers_checked, offers_passed, offers_failed, status, reason, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, rep.TestID, rep.Description,
		rep.Origin.Query.RawName, rep.Origin.AirportCode,
		rep.Destination.Query.RawName, rep.Destination.AirportCode,
		rep.Origin.Strategy, rep.Origin.Attempts+rep.Destination.Attempts,
		rep.BeforeCount, rep.AfterCount,
		rep.OffersChecked, rep.OffersPassed, rep.OffersFailed,
		rep.Status, rep.Reason, string(reportJSON))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	return result.LastInsertId()
}

// QueryParams filters archived runs.
type QueryParams struct {
	RunID     string
	TestID    string
	Status    string
	Route     string // "DEL-BOM" style origin-dest pair
	Limit     int
	Offset    int
	OrderDesc bool
}

// Query retrieves archived runs matching the parameters.
func (d *DB) Query(p QueryParams) ([]Run, error) {
	var conditions []string
	var args []interface{}

	if p.RunID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, p.RunID)
	}
	if p.TestID != "" {
		conditions = append(conditions, "test_id = ?")
		args = append(args, p.TestID)
	}
	if p.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, p.Status)
	}
	if p.Route != "" {
		if parts := strings.SplitN(p.Route, "-", 2); len(parts) == 2 {
			conditions = append(conditions, "origin_code = ? AND dest_code = ?")
			args = append(args, strings.ToUpper(parts[0]), strings.ToUpper(parts[1]))
		}
	}

	query := `SELECT id, run_id, test_id, description, origin_city, origin_code,
			dest_city, dest_code, strategy, attempts, before_count, after_count,
			offers_checked, offers_passed, offers_failed, status, reason, report_json, created_at
			FROM runs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	direction := "ASC"
	if p.OrderDesc {
		direction = "DESC"
	}
	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" ORDER BY id %s LIMIT %d OFFSET %d", direction, limit, p.Offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanRun(rows *sql.Rows) (Run, error) {
	var r Run
	var desc, reason, created sql.NullString
	err := rows.Scan(&r.ID, &r.RunID, &r.TestID, &desc, &r.OriginCity, &r.OriginCode,
		&r.DestCity, &r.DestCode, &r.Strategy, &r.Attempts, &r.BeforeCount, &r.AfterCount,
		&r.OffersChecked, &r.OffersPassed, &r.OffersFailed, &r.Status, &reason,
		&r.ReportJSON, &created)
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if desc.Valid {
		r.Description = desc.String
	}
	if reason.Valid {
		r.Reason = reason.String
	}
	if created.Valid {
		r.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", created.String)
	}
	return r, nil
}

// Stats summarises the archive.
type Stats struct {
	TotalRuns int
	ByStatus  map[string]int
	ByRoute   map[string]int
}

// GetStats returns aggregate statistics about archived runs.
func (d *DB) GetStats() (*Stats, error) {
	stats := &Stats{
		ByStatus: make(map[string]int),
		ByRoute:  make(map[string]int),
	}

	if err := d.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&stats.TotalRuns); err != nil {
		return nil, err
	}

	rows, err := d.db.Query("SELECT status, COUNT(*) FROM runs GROUP BY status")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.ByStatus[status] = count
	}
	_ = rows.Close()

	rows, err = d.db.Query(`SELECT origin_code || '-' || dest_code, COUNT(*)
		FROM runs WHERE origin_code != '' AND dest_code != ''
		GROUP BY origin_code, dest_code ORDER BY COUNT(*) DESC LIMIT 20`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var route string
		var count int
		if err := rows.Scan(&route, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.ByRoute[route] = count
	}
	_ = rows.Close()

	return stats, nil
}
