package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"fareprobe/internal/filter"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB writes fare observations for offline analytics.
type ClickHouseDB struct {
	conn driver.Conn
}

// OpenClickHouse opens a ClickHouse connection.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the fare observation table.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS fare_observations (
		observed_at    DateTime DEFAULT now(),
		run_id         String,
		test_id        String,
		origin_code    LowCardinality(String),
		dest_code      LowCardinality(String),
		departure_date String,
		airline        LowCardinality(String),
		flight_number  String,
		price          Float64,
		stops          UInt8,
		passed_filter  UInt8
	) ENGINE = MergeTree()
	ORDER BY (origin_code, dest_code, observed_at)
	PARTITION BY toYYYYMM(observed_at)
	`

	if err := d.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// InsertObservations batch-inserts the offers scraped in one run.
func (d *ClickHouseDB) InsertObservations(ctx context.Context, runID, testID, departureDate string, offers []filter.Offer, passed []bool) error {
	if len(offers) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO fare_observations
		(observed_at, run_id, test_id, origin_code, dest_code, departure_date,
		 airline, flight_number, price, stops, passed_filter)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	now := time.Now()
	for i, o := range offers {
		var ok uint8
		if i < len(passed) && passed[i] {
			ok = 1
		}
		stops := o.Stops
		if stops < 0 {
			stops = 0
		}
		err := batch.Append(now, runID, testID, o.Origin, o.Destination, departureDate,
			o.Airline, o.FlightNumber, o.Price, uint8(stops), ok)
		if err != nil {
			return fmt.Errorf("append observation %d: %w", i, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}
