// Package state persists the published version record per game.
//
// A record exists for a game if and only if a publish for that game has
// completed successfully. The publisher is the only writer; the change
// detector and index generator are readers. Absence of a record always means
// "build needed", which is how failed games get retried on the next run.
package state

import (
	"context"
	"time"
)

// Record is the durable publish state for one game.
type Record struct {
	// Name is the game name, the store key.
	Name string

	// Version is the content version that was successfully published.
	Version string

	// Commit is the source commit behind Version, kept for diagnostics.
	Commit string

	// PublishedAt is when the publish completed.
	PublishedAt time.Time
}

// Store is a durable name→record mapping surviving process restarts.
type Store interface {
	// Get returns the record for a game, or nil if none exists.
	Get(ctx context.Context, name string) (*Record, error)

	// Put inserts or replaces the record for a game.
	Put(ctx context.Context, rec *Record) error

	// List returns all records.
	List(ctx context.Context) ([]Record, error)

	// Delete removes the record for a game. Missing records are not an error.
	Delete(ctx context.Context, name string) error

	// Close releases store resources.
	Close() error
}
