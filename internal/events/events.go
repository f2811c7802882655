// Package events publishes per-game pipeline outcomes for external consumers.
//
// Publication is optional and best-effort: the pipeline never blocks or fails
// on event delivery.
package events

import "time"

// Outcome is one game's terminal pipeline state for a run.
type Outcome struct {
	RunID      string    `json:"run_id"`
	Game       string    `json:"game"`
	State      string    `json:"state"` // published|skipped|sync_failed|build_failed|publish_failed
	Version    string    `json:"version,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Publisher delivers outcome events. Implementations must be safe for
// concurrent use by pipeline workers.
type Publisher interface {
	PublishOutcome(outcome Outcome)
	Close()
}

// NoopPublisher drops all events (default when events are not configured).
type NoopPublisher struct{}

func (NoopPublisher) PublishOutcome(Outcome) {}
func (NoopPublisher) Close()                 {}
