// Package store provides SQLite-backed storage for exported depth samples.
//
// The depth exporter writes a full table per run: the table is dropped and
// repopulated so the database always reflects the latest export. Readers
// (chart overlays, ad hoc queries) only ever need the current data.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wflyer/echopipe/internal/depth"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial depths table
const currentSchemaVersion = 1

// Store holds the depth export database.
//
// Uses SQLite with WAL mode so a chart client can read while an export is
// in progress.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path, applying
// pragmas and the schema. Idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Reset drops and recreates the depths table. Called once at the start of
// an export run so stale rows from a previous run never survive.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS depths"); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// WriteSamples inserts the given samples in one transaction.
func (s *Store) WriteSamples(ctx context.Context, samples []depth.Sample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO depths (ping_time, latitude, longitude, depth, segment) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		_, err := stmt.ExecContext(ctx,
			sample.PingTime.UTC().Format(time.RFC3339),
			sample.Latitude,
			sample.Longitude,
			sample.Depth,
			sample.Segment,
		)
		if err != nil {
			return fmt.Errorf("write sample at %s: %w", sample.PingTime, err)
		}
	}

	return tx.Commit()
}

// CountBySegment returns the number of stored samples per segment.
func (s *Store) CountBySegment(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT segment, COUNT(*) FROM depths GROUP BY segment")
	if err != nil {
		return nil, fmt.Errorf("count by segment: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var segment string
		var n int
		if err := rows.Scan(&segment, &n); err != nil {
			return nil, fmt.Errorf("count by segment: %w", err)
		}
		counts[segment] = n
	}
	return counts, rows.Err()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and stamps the version.
// Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
