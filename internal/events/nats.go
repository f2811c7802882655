package events

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/arcadebuilder/internal/logfields"
)

// NATSPublisher publishes outcome events to a NATS subject per game:
// <prefix>.outcome.<game>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to NATS. The connection retries in the background,
// so a temporarily unavailable broker does not fail startup.
func NewNATSPublisher(url, subjectPrefix string) (*NATSPublisher, error) {
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}

	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	slog.Info("NATS outcome publisher initialized", logfields.URL(url))
	return &NATSPublisher{conn: conn, prefix: subjectPrefix}, nil
}

// PublishOutcome delivers one outcome event. Failures are logged and dropped.
func (p *NATSPublisher) PublishOutcome(outcome Outcome) {
	data, err := json.Marshal(outcome)
	if err != nil {
		slog.Warn("Failed to marshal outcome event", logfields.Error(err))
		return
	}

	subject := fmt.Sprintf("%s.outcome.%s", p.prefix, outcome.Game)
	if err := p.conn.Publish(subject, data); err != nil {
		slog.Warn("Failed to publish outcome event",
			logfields.Game(outcome.Game), logfields.Error(err))
	}
}

// Close flushes and closes the connection.
func (p *NATSPublisher) Close() {
	_ = p.conn.Flush()
	p.conn.Close()
}
