package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the NATS subject prefix progress events are
// published under. The full subject is <prefix>.<run_id>.
const DefaultSubjectPrefix = "outreach.progress"

// NATSMirror publishes progress events to NATS so other processes can watch
// runs they did not start.
type NATSMirror struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSMirror wraps an established connection.
func NewNATSMirror(conn *nats.Conn, prefix string) *NATSMirror {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSMirror{conn: conn, prefix: prefix}
}

// Subject returns the subject events for runID are published on.
func (m *NATSMirror) Subject(runID fmt.Stringer) string {
	return m.prefix + "." + runID.String()
}

// Send implements Sink. Pings are not mirrored.
func (m *NATSMirror) Send(_ context.Context, ev Event) error {
	if ev.Type == EventPing {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("progress: marshal event: %w", err)
	}
	if err := m.conn.Publish(m.Subject(ev.RunID), data); err != nil {
		return fmt.Errorf("progress: publish: %w", err)
	}
	return nil
}
