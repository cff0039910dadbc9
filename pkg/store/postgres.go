// Package store persists published reports, per-run cost records and API
// credentials in PostgreSQL. A memory-backed publisher is provided for the
// CLI and for tests.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDB wraps the database connection pool
type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Configure connection pool
	config.MaxConns = 25
	config.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *PostgresDB) Close() {
	db.Pool.Close()
}

// InitSchema creates the tables the service owns.
func (db *PostgresDB) InitSchema(ctx context.Context) error {
	reportsQuery := `
		CREATE TABLE IF NOT EXISTS reports (
			id UUID PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			markdown TEXT NOT NULL,
			sources JSONB,
			total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := db.Pool.Exec(ctx, reportsQuery); err != nil {
		return fmt.Errorf("failed to create reports table: %w", err)
	}

	costsQuery := `
		CREATE TABLE IF NOT EXISTS run_costs (
			id SERIAL PRIMARY KEY,
			owner_id TEXT NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := db.Pool.Exec(ctx, costsQuery); err != nil {
		return fmt.Errorf("failed to create run_costs table: %w", err)
	}

	keysQuery := `
		CREATE TABLE IF NOT EXISTS api_keys (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := db.Pool.Exec(ctx, keysQuery); err != nil {
		return fmt.Errorf("failed to create api_keys table: %w", err)
	}

	// Indexes for faster querying
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_reports_owner_id ON reports(owner_id)"); err != nil {
		return fmt.Errorf("failed to create index on reports: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC)"); err != nil {
		return fmt.Errorf("failed to create index on reports: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_run_costs_owner_id ON run_costs(owner_id)"); err != nil {
		return fmt.Errorf("failed to create index on run_costs: %w", err)
	}

	return nil
}
