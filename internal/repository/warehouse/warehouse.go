// Package warehouse is the tabular store behind the pipeline: source tables
// for users and media, destination table for recommendations, and optional
// pgvector snapshot tables for the run's embeddings.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Postgres driver registration.
	_ "github.com/lib/pq"
)

// Config holds warehouse connection and table settings.
type Config struct {
	DSN                  string
	UsersTable           string
	MediaTable           string
	RecommendationsTable string
	UserVectorsTable     string
	MediaVectorsTable    string
}

// DB is a Postgres-backed warehouse.
type DB struct {
	db  *sql.DB
	cfg Config
}

// Open connects to the warehouse and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}
	return &DB{db: db, cfg: cfg}, nil
}

// Close releases the connection pool.
func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("close warehouse: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping warehouse: %w", err)
	}
	return nil
}

// Now returns the database clock, shared by every row of one batch run.
func (d *DB) Now(ctx context.Context) (time.Time, error) {
	var ts time.Time
	if err := d.db.QueryRowContext(ctx, "SELECT now()").Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("select now: %w", err)
	}
	return ts, nil
}
