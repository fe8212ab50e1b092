package notify

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes alert events on a fixed subject.
type NATSPublisher struct {
	Conn    *nats.Conn
	Subject string
}

var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects lazily: an unreachable server does not fail
// startup, publishes are buffered until the connection is up.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("watchdog"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{Conn: conn, Subject: subject}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, key string, payload []byte) error {
	msg := nats.NewMsg(p.Subject)
	msg.Header.Set("Outage-Id", key)
	msg.Data = payload
	return p.Conn.PublishMsg(msg)
}

func (p *NATSPublisher) Close() error {
	if p.Conn != nil {
		_ = p.Conn.Drain()
		p.Conn.Close()
	}
	return nil
}
