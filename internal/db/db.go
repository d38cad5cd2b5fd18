package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// DB wraps a database/sql connection pool for PostgreSQL.
type DB struct {
	Pool *sql.DB
}

// New creates a new database connection using the lib/pq driver.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	connector, err := pq.NewConnector(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pool := sql.OpenDB(connector)

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(5)

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.Pool.Close()
}

// Migrate runs the database schema migrations.
func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.Pool.ExecContext(ctx, migrationSQL)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

const migrationSQL = `
CREATE TABLE IF NOT EXISTS registered_databases (
    id                 BIGINT PRIMARY KEY,
    name               TEXT NOT NULL,
    engine             TEXT NOT NULL,
    details            JSONB NOT NULL DEFAULT '{}',
    created            BOOLEAN NOT NULL DEFAULT FALSE,
    is_sample          BOOLEAN NOT NULL DEFAULT FALSE,
    created_at         TIMESTAMPTZ,
    updated_at         TIMESTAMPTZ,
    metadata_synced_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_registered_databases_name ON registered_databases(lower(name));

CREATE TABLE IF NOT EXISTS tracking_events (
    id        TEXT PRIMARY KEY,
    category  TEXT NOT NULL,
    action    TEXT NOT NULL,
    label     TEXT NOT NULL DEFAULT '',
    timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tracking_events_timestamp ON tracking_events(timestamp DESC);
`
