// Package sqlitestore wraps database/sql plus modernc.org/sqlite behind the
// minimal storage contract spec §6 lists for the async durable sink: open/
// close, exec, a handful of query-one-row helpers, transactions, vacuum,
// and journal-mode control. It is the pure-Go SQLite binding this library
// treats as an external collaborator.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// JournalMode selects SQLite's journal_mode pragma.
type JournalMode string

const (
	JournalWAL      JournalMode = "WAL"
	JournalTruncate JournalMode = "TRUNCATE"
	JournalDelete   JournalMode = "DELETE"
	JournalMemory   JournalMode = "MEMORY"
)

// Store is a thin handle over a single SQLite database, opened either
// against a file path or ":memory:" for storage_location=in_memory.
type Store struct {
	db       *sql.DB
	location string
}

// Open opens (creating if necessary) the SQLite database at location. Pass
// ":memory:" for an in-memory, non-persistent store.
func Open(location string) (*Store, error) {
	db, err := sql.Open("sqlite", location)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %q: %w", location, err)
	}
	// A single writer connection avoids SQLITE_BUSY from this package's own
	// concurrent use; callers that want read concurrency should open a
	// second Store against the same file under WAL mode instead.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: ping %q: %w", location, err)
	}
	return &Store{db: db, location: location}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Exec runs a statement with no result rows expected.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: exec: %w", err)
	}
	return res, nil
}

// QueryRows runs query and invokes scan for each returned row. scan is
// given the *sql.Rows positioned at the current row; it is responsible for
// calling rows.Scan itself, since result shapes vary by caller.
func (s *Store) QueryRows(ctx context.Context, query string, scan func(*sql.Rows) error, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlitestore: query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// QueryRowInt64 runs query and scans a single int64 column, the common case
// for COUNT(*) and similar aggregate queries.
func (s *Store) QueryRowInt64(ctx context.Context, query string, args ...any) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: query row: %w", err)
	}
	return v, nil
}

// Transaction runs fn inside a BEGIN/COMMIT block, rolling back on error or
// panic.
func (s *Store) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	err = fn(tx)
	return err
}

// Vacuum runs a full VACUUM, reclaiming space from deleted rows.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("sqlitestore: vacuum: %w", err)
	}
	return nil
}

// SetJournalMode sets the journal_mode pragma.
func (s *Store) SetJournalMode(ctx context.Context, mode JournalMode) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA journal_mode=%s", mode)); err != nil {
		return fmt.Errorf("sqlitestore: set journal mode: %w", err)
	}
	return nil
}

// SetForeignKeys toggles the foreign_keys pragma.
func (s *Store) SetForeignKeys(ctx context.Context, enabled bool) error {
	val := "OFF"
	if enabled {
		val = "ON"
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA foreign_keys=%s", val)); err != nil {
		return fmt.Errorf("sqlitestore: set foreign keys: %w", err)
	}
	return nil
}

// DB exposes the underlying *sql.DB for callers that need statement
// preparation beyond this wrapper's helpers.
func (s *Store) DB() *sql.DB { return s.db }

// Location returns the path (or ":memory:") this Store was opened with.
func (s *Store) Location() string { return s.location }
