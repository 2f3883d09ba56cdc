package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fareprobe/internal/filter"
	"fareprobe/internal/scenario"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a connection pool over the shared run archive.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// CreateSchema creates the run archive tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id              BIGSERIAL PRIMARY KEY,
		run_id          TEXT NOT NULL,
		test_id         TEXT NOT NULL,
		description     TEXT,
		origin_city     TEXT,
		origin_code     TEXT,
		dest_city       TEXT,
		dest_code       TEXT,
		strategy        TEXT,
		attempts        INTEGER NOT NULL DEFAULT 0,
		before_count    INTEGER NOT NULL DEFAULT 0,
		after_count     INTEGER NOT NULL DEFAULT 0,
		offers_checked  INTEGER NOT NULL DEFAULT 0,
		offers_passed   INTEGER NOT NULL DEFAULT 0,
		offers_failed   INTEGER NOT NULL DEFAULT 0,
		status          TEXT NOT NULL,
		reason          TEXT,
		report          JSONB NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_runs_run_id ON runs(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_test_id ON runs(test_id);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_runs_route ON runs(origin_code, dest_code);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

	CREATE TABLE IF NOT EXISTS run_offers (
		run_row_id      BIGINT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position        INTEGER NOT NULL,
		airline         TEXT,
		flight_number   TEXT,
		price           DOUBLE PRECISION NOT NULL,
		stops           INTEGER NOT NULL,
		passed          BOOLEAN NOT NULL,
		PRIMARY KEY (run_row_id, position)
	);
	`

	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// InsertReport archives a report plus its scraped offers; passed marks
// which offers satisfied the scenario's criteria.
func (d *PostgresDB) InsertReport(ctx context.Context, runID string, rep scenario.Report, offers []filter.Offer, passed []bool) (int64, error) {
	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return 0, fmt.Errorf("marshal report: %w", err)
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var rowID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO runs (run_id, test_id, description, origin_city, origin_code,
			dest_city, dest_code, strategy, attempts, before_count, after_count,
			offers_checked, offers_passed, offers_failed, status, reason, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id
	`, runID, rep.TestID, rep.Description,
		rep.Origin.Query.RawName, rep.Origin.AirportCode,
		rep.Destination.Query.RawName, rep.Destination.AirportCode,
		rep.Origin.Strategy, rep.Origin.Attempts+rep.Destination.Attempts,
		rep.BeforeCount, rep.AfterCount,
		rep.OffersChecked, rep.OffersPassed, rep.OffersFailed,
		rep.Status, rep.Reason, reportJSON).Scan(&rowID)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	for i, o := range offers {
		ok := i < len(passed) && passed[i]
		_, err = tx.Exec(ctx, `
			INSERT INTO run_offers (run_row_id, position, airline, flight_number, price, stops, passed)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, rowID, i, o.Airline, o.FlightNumber, o.Price, o.Stops, ok)
		if err != nil {
			return 0, fmt.Errorf("insert offer %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return rowID, nil
}

// RunRecord is one archived run as served by the results API.
type RunRecord struct {
	ID            int64           `json:"id"`
	RunID         string          `json:"run_id"`
	TestID        string          `json:"test_id"`
	Description   string          `json:"description,omitempty"`
	OriginCity    string          `json:"origin_city"`
	OriginCode    string          `json:"origin_code"`
	DestCity      string          `json:"dest_city"`
	DestCode      string          `json:"dest_code"`
	Strategy      string          `json:"strategy,omitempty"`
	Attempts      int             `json:"attempts"`
	OffersChecked int             `json:"offers_checked"`
	OffersPassed  int             `json:"offers_passed"`
	OffersFailed  int             `json:"offers_failed"`
	Status        string          `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	Report        json.RawMessage `json:"report"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ListParams filters the run listing.
type ListParams struct {
	RunID  string
	TestID string
	Status string
	Limit  int
	Offset int
}

// ListRuns returns archived runs, newest first.
func (d *PostgresDB) ListRuns(ctx context.Context, p ListParams) ([]RunRecord, error) {
	query := `SELECT id, run_id, test_id, COALESCE(description, ''),
		COALESCE(origin_city, ''), COALESCE(origin_code, ''),
		COALESCE(dest_city, ''), COALESCE(dest_code, ''), COALESCE(strategy, ''),
		attempts, offers_checked, offers_passed, offers_failed,
		status, COALESCE(reason, ''), report, created_at
		FROM runs WHERE 1=1`
	var args []interface{}

	if p.RunID != "" {
		args = append(args, p.RunID)
		query += fmt.Sprintf(" AND run_id = $%d", len(args))
	}
	if p.TestID != "" {
		args = append(args, p.TestID)
		query += fmt.Sprintf(" AND test_id = $%d", len(args))
	}
	if p.Status != "" {
		args = append(args, p.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT %d OFFSET %d", limit, p.Offset)

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		err := rows.Scan(&r.ID, &r.RunID, &r.TestID, &r.Description,
			&r.OriginCity, &r.OriginCode, &r.DestCity, &r.DestCode, &r.Strategy,
			&r.Attempts, &r.OffersChecked, &r.OffersPassed, &r.OffersFailed,
			&r.Status, &r.Reason, &r.Report, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one archived run by row id, or nil when absent.
func (d *PostgresDB) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	runs, err := d.listByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func (d *PostgresDB) listByID(ctx context.Context, id int64) ([]RunRecord, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, run_id, test_id, COALESCE(description, ''),
		COALESCE(origin_city, ''), COALESCE(origin_code, ''),
		COALESCE(dest_city, ''), COALESCE(dest_code, ''), COALESCE(strategy, ''),
		attempts, offers_checked, offers_passed, offers_failed,
		status, COALESCE(reason, ''), report, created_at
		FROM runs WHERE id = $1`, id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		err := rows.Scan(&r.ID, &r.RunID, &r.TestID, &r.Description,
			&r.OriginCity, &r.OriginCode, &r.DestCity, &r.DestCode, &r.Strategy,
			&r.Attempts, &r.OffersChecked, &r.OffersPassed, &r.OffersFailed,
			&r.Status, &r.Reason, &r.Report, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RouteStat aggregates outcomes per resolved route.
type RouteStat struct {
	Route   string `json:"route"`
	Runs    int    `json:"runs"`
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
	Errored int    `json:"errored"`
}

// RouteStats returns per-route aggregates across the archive.
func (d *PostgresDB) RouteStats(ctx context.Context) ([]RouteStat, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT origin_code || '-' || dest_code AS route,
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'PASS'),
			COUNT(*) FILTER (WHERE status = 'FAIL'),
			COUNT(*) FILTER (WHERE status = 'ERROR')
		FROM runs
		WHERE origin_code != '' AND dest_code != ''
		GROUP BY origin_code, dest_code
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("route stats: %w", err)
	}
	defer rows.Close()

	var out []RouteStat
	for rows.Next() {
		var s RouteStat
		if err := rows.Scan(&s.Route, &s.Runs, &s.Passed, &s.Failed, &s.Errored); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
