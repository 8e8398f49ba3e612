package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gymdesk/internal/domain/event"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "gymdesk.events"

// Publisher is the subset of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes change events as JSON on "<prefix>.<kind>".
type NATSNotifier struct {
	pub    Publisher
	conn   *nats.Conn
	prefix string
}

// NewNATSNotifier wraps an existing publisher.
func NewNATSNotifier(pub Publisher, prefix string) *NATSNotifier {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	n := &NATSNotifier{pub: pub, prefix: prefix}
	if conn, ok := pub.(*nats.Conn); ok {
		n.conn = conn
	}
	return n
}

// Connect dials a NATS server and returns a notifier that owns the connection.
// PRE: url is a NATS URL such as nats://localhost:4222
// POST: Reconnects indefinitely; Close drains the connection
func Connect(url, prefix string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("gymdesk"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats_disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats_reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewNATSNotifier(conn, prefix), nil
}

// Subject returns the subject an event kind is published on.
func (n *NATSNotifier) Subject(kind event.Kind) string {
	return n.prefix + "." + string(kind)
}

// Notify publishes e.
// PRE: e passes Validate
// POST: Returns the publish error; nothing is buffered on failure
func (n *NATSNotifier) Notify(ctx context.Context, e event.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.pub.Publish(n.Subject(e.Kind), data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Kind, err)
	}
	return nil
}

// Close drains the owned connection, if any.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
