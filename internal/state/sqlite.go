package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed record store.
// Use ":memory:" for an in-memory database in tests.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS published_versions (
		name TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		commit_sha TEXT NOT NULL,
		published_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the record for a game, or nil if none exists.
func (s *SQLiteStore) Get(ctx context.Context, name string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT name, version, commit_sha, published_at FROM published_versions WHERE name = ?",
		name,
	)

	var rec Record
	var publishedAt int64
	if err := row.Scan(&rec.Name, &rec.Version, &rec.Commit, &publishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query record: %w", err)
	}
	rec.PublishedAt = time.Unix(publishedAt, 0).UTC()
	return &rec, nil
}

// Put inserts or replaces the record for a game.
func (s *SQLiteStore) Put(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO published_versions (name, version, commit_sha, published_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   version = excluded.version,
		   commit_sha = excluded.commit_sha,
		   published_at = excluded.published_at`,
		rec.Name, rec.Version, rec.Commit, rec.PublishedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// List returns all records ordered by name.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, version, commit_sha, published_at FROM published_versions ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var publishedAt int64
		if err := rows.Scan(&rec.Name, &rec.Version, &rec.Commit, &publishedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.PublishedAt = time.Unix(publishedAt, 0).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes the record for a game.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM published_versions WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
