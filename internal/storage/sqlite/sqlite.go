// Package sqlite provides a SQLite-backed implementation of the
// storage.Store interface.
//
// Optimistic concurrency: every budget row carries a version counter, and
// every mutation (budget or expense) runs a conditional
// "UPDATE budgets SET version = version + 1 WHERE trip_id = ? AND
// version = ?" inside its transaction. A zero-row result means another
// writer got there first and surfaces as a Conflict error; nothing from
// the losing transaction is committed.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/voyago/tripledger/internal/errs"
	"github.com/voyago/tripledger/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Serialized writes keep the conditional version bump race-free under
	// the single-file SQLite model.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// bumpVersion conditionally advances the budget's version counter within
// tx. Returns a Conflict error when fromVersion is stale and a NotFound
// error when the budget row does not exist.
func bumpVersion(ctx context.Context, tx *sql.Tx, tripID string, fromVersion int64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE budgets SET version = version + 1 WHERE trip_id = ? AND version = ?",
		tripID, fromVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to bump budget version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM budgets WHERE trip_id = ?", tripID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check budget existence: %w", err)
		}
		if exists == 0 {
			return errs.NotFoundf("budget for trip %q not found", tripID)
		}
		return errs.Conflictf("budget for trip %q was modified concurrently", tripID)
	}
	return nil
}

// scanDecimal parses a stored decimal-string column.
func scanDecimal(raw string, column string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt %s value %q: %w", column, raw, err)
	}
	return d, nil
}
