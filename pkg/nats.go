package pkg

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const drainTimeout = 5 * time.Second

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	return p.conn.Publish(topic, msg)
}

// Close drains the connection so published messages are flushed before the
// process exits.
func (p *NATSPublisher) Close() error {
	done := make(chan error, 1)
	go func() { done <- p.conn.Drain() }()
	select {
	case err := <-done:
		return err
	case <-time.After(drainTimeout):
		p.conn.Close()
		return nil
	}
}
