// Package eventbus is the optional sync-completion notifier: when
// EVENTBUS_URL is configured, every scheduler tick in internal/sync
// publishes a short JSON notice to a "sync.<stream>" subject. Nothing in
// the core depends on a subscriber existing; with no URL configured,
// Publisher is a no-op.
package eventbus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/epfl-river/river-backend/pkg/log"
)

// Tick is the notice body published after every scheduler tick.
type Tick struct {
	Stream     string `json:"stream"`
	Outcome    string `json:"outcome"`
	Rows       int    `json:"rows"`
	DurationMS int64  `json:"duration_ms"`
}

// Publisher publishes Tick notices. A nil *nats.Conn (URL unset) makes
// every call a no-op.
type Publisher struct {
	conn *nats.Conn
}

// Connect dials url and returns a Publisher. An empty url returns a
// Publisher with no underlying connection, silently disabling publishing.
func Connect(url string) (*Publisher, error) {
	if url == "" {
		return &Publisher{}, nil
	}
	conn, err := nats.Connect(url, nats.Name("river-backend"))
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn}, nil
}

// PublishTick implements internal/sync.TickPublisher.
func (p *Publisher) PublishTick(stream, outcome string, rows int, duration time.Duration) {
	if p.conn == nil {
		return
	}
	body, err := json.Marshal(Tick{
		Stream:     stream,
		Outcome:    outcome,
		Rows:       rows,
		DurationMS: duration.Milliseconds(),
	})
	if err != nil {
		log.Warnf("eventbus: marshaling tick notice for %s: %v", stream, err)
		return
	}
	if err := p.conn.Publish("sync."+stream, body); err != nil {
		log.Warnf("eventbus: publishing tick notice for %s: %v", stream, err)
	}
}

// Close drains and closes the underlying connection, if any.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
