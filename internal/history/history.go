// Package history implements a SQLite-backed ledger of already-submitted
// listens, used by the import command to avoid re-submitting entries from a
// play-history log it has already processed in a prior run. It is not the
// engine's pending queue: the pending queue lives in memory only
// (in-process process restarts re-derive it from the log source), while
// this ledger is the durable, append-only record of what has already been
// sent.
package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/jlieth/legacy-scrobbler/pkg/listen"
)

// Store is a SQLite-backed set of (artist, track, timestamp) keys already
// submitted to the scrobbling service.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS submitted (
			artist TEXT NOT NULL,
			track TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			PRIMARY KEY (artist, track, timestamp)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Seen reports whether l has already been recorded as submitted.
func (s *Store) Seen(ctx context.Context, l listen.Listen) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submitted WHERE artist = ? AND track = ? AND timestamp = ?`,
		l.ArtistName(), l.TrackTitle(), l.Timestamp(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("history: query: %w", err)
	}
	return count > 0, nil
}

// Record marks l as submitted. Idempotent: recording the same listen twice
// is not an error.
func (s *Store) Record(ctx context.Context, l listen.Listen) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO submitted (artist, track, timestamp) VALUES (?, ?, ?)`,
		l.ArtistName(), l.TrackTitle(), l.Timestamp(),
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// RecordBatch marks every listen in the batch as submitted, in one transaction.
func (s *Store) RecordBatch(ctx context.Context, listens []listen.Listen) error {
	if len(listens) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO submitted (artist, track, timestamp) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("history: prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, l := range listens {
		if _, err := stmt.ExecContext(ctx, l.ArtistName(), l.TrackTitle(), l.Timestamp()); err != nil {
			return fmt.Errorf("history: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit transaction: %w", err)
	}
	return nil
}

// Count returns the total number of recorded listens.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submitted`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return count, nil
}
