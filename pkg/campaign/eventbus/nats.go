package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
)

// NATSBus publishes lifecycle events over a core NATS connection. No
// JetStream/durable consumer semantics are needed here: a missed
// notification never loses data, since the persisted call row remains
// the source of truth (§6).
type NATSBus struct {
	conn *natsgo.Conn
}

// Dial connects to a NATS server, matching the teacher's reconnect-aware
// connection options: the initial connect gives up after 5s rather than
// blocking on a flaky broker at startup, and once connected the client
// reconnects every 2s with no limit on attempts.
func Dial(url string) (*NATSBus, error) {
	conn, err := natsgo.Connect(url,
		natsgo.Name("voxloop-campaign-runner"),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
		natsgo.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect: %w", err)
	}
	return &NATSBus{conn: conn}, nil
}

// Publish marshals event and publishes it to subject. ctx is honored only
// for its deadline, since the underlying client call is synchronous but
// not itself context-aware.
func (b *NATSBus) Publish(ctx context.Context, subject string, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("eventbus: marshal event: %w", err)
	}
	if err := b.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("eventbus: publish %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the underlying connection.
func (b *NATSBus) Close() error {
	return b.conn.Drain()
}

var _ Bus = (*NATSBus)(nil)
