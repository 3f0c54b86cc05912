package relay

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url, clientName string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name(clientName), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

// Publish sends msg with its event id as Nats-Msg-Id, which lets a
// JetStream stream drop the duplicates at-least-once delivery produces.
func (p *NATSPublisher) Publish(ctx context.Context, msg Message) error {
	out := nats.NewMsg(msg.Subject)
	out.Data = msg.Data
	if msg.ID != "" {
		out.Header.Set(nats.MsgIdHdr, msg.ID)
	}
	return p.conn.PublishMsg(out)
}

func (p *NATSPublisher) Flush(ctx context.Context) error {
	return p.conn.FlushWithContext(ctx)
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
