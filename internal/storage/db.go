// Package storage archives scenario reports and scraped offers. SQLite is
// the local, per-machine archive; PostgreSQL backs the shared results API;
// ClickHouse keeps the append-only offer observations for fare analytics.
package storage

import (
	"context"
	"fmt"
)

// Config holds connection settings for the optional shared backends.
type Config struct {
	ClickHouse ClickHouseConfig
	Postgres   PostgresConfig
}

// DefaultConfig returns local development settings.
func DefaultConfig() Config {
	return Config{
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "fareprobe",
			User:     "default",
			Password: "",
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "fareprobe",
			User:     "fareprobe",
			Password: "fareprobe",
		},
	}
}

// Remote wraps the shared backends when both are in play.
type Remote struct {
	CH *ClickHouseDB // offer observations
	PG *PostgresDB   // run archive for the results API
}

// OpenRemote opens both shared backends.
func OpenRemote(ctx context.Context, cfg Config) (*Remote, error) {
	ch, err := OpenClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: %w", err)
	}

	pg, err := OpenPostgres(ctx, cfg.Postgres)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &Remote{CH: ch, PG: pg}, nil
}

// CreateSchemas creates the schemas in both backends.
func (r *Remote) CreateSchemas(ctx context.Context) error {
	if err := r.CH.CreateSchema(ctx); err != nil {
		return fmt.Errorf("clickhouse schema: %w", err)
	}
	if err := r.PG.CreateSchema(ctx); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}

// Close closes both connections.
func (r *Remote) Close() error {
	var first error
	if r.CH != nil {
		if err := r.CH.Close(); err != nil {
			first = fmt.Errorf("clickhouse: %w", err)
		}
	}
	if r.PG != nil {
		r.PG.Close()
	}
	return first
}
