// Package store is a thin binding over SQLite for the Recall engine:
// prepared statements, scalar and single-row queries, row iteration, and a
// single-level transaction block. Everything above it goes through this
// façade and never touches database/sql directly.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store owns one exclusive SQLite connection. It is not safe for
// concurrent use; the engine serializes all calls.
type Store struct {
	db *sql.DB
	tx *sql.Tx
}

// Open creates the database file (and missing parent directories) if
// needed, applies the schema idempotently, and returns the store.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One logical caller at a time; a single connection keeps transaction
	// state and last-insert-id on the same handle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy_timeout: %w", err)
	}

	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating indexes: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close releases the connection. Idempotent.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Exec runs a statement through the active transaction if one is open.
func (s *Store) Exec(query string, args ...any) (sql.Result, error) {
	if s.tx != nil {
		return s.tx.Exec(query, args...)
	}
	return s.db.Exec(query, args...)
}

// Insert runs an INSERT and returns the assigned row ID.
func (s *Store) Insert(query string, args ...any) (int64, error) {
	res, err := s.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading insert id: %w", err)
	}
	return id, nil
}

// Query runs a multi-row query through the active transaction if one is
// open. The caller owns the returned rows.
func (s *Store) Query(query string, args ...any) (*sql.Rows, error) {
	if s.tx != nil {
		return s.tx.Query(query, args...)
	}
	return s.db.Query(query, args...)
}

// QueryRow runs a single-row query through the active transaction if one
// is open.
func (s *Store) QueryRow(query string, args ...any) *sql.Row {
	if s.tx != nil {
		return s.tx.QueryRow(query, args...)
	}
	return s.db.QueryRow(query, args...)
}

// Scalar runs a query expected to yield a single integer value. The
// second return is false when the query matches no rows.
func (s *Store) Scalar(query string, args ...any) (int64, bool, error) {
	var v sql.NullInt64
	err := s.QueryRow(query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if !v.Valid {
		return 0, false, nil
	}
	return v.Int64, true, nil
}

// Transaction runs fn atomically: commit on nil, roll back on error or
// panic. Nested calls participate in the outer transaction instead of
// opening their own.
func (s *Store) Transaction(fn func() error) error {
	if s.tx != nil {
		return fn()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	s.tx = tx
	defer func() { s.tx = nil }()
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back after %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// InTransaction reports whether a transaction block is active.
func (s *Store) InTransaction() bool {
	return s.tx != nil
}
