package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// NATSBus adapts a *nats.Conn to the Bus interface, grounded on the embedded
// vs. external connection toggle used in the teacher's cmd/semspec app.go.
type NATSBus struct {
	conn     *nats.Conn
	embedded *server.Server
}

// Connect dials url, or starts an embedded core NATS server (JetStream not
// enabled) when url is empty, for local runs.
func Connect(url string) (*NATSBus, error) {
	if url == "" {
		return connectEmbedded()
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return &NATSBus{conn: conn}, nil
}

func connectEmbedded() (*NATSBus, error) {
	opts := &server.Options{
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start")
	}

	conn, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("connect to embedded NATS: %w", err)
	}

	return &NATSBus{conn: conn, embedded: ns}, nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

// Subscribe implements Bus.
func (b *NATSBus) Subscribe(_ context.Context, subject string, handler Handler) (Subscription, error) {
	sub, err := b.conn.Subscribe(subject, func(m *nats.Msg) {
		handler(Message{Subject: m.Subject, Data: m.Data})
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	return &natsSubscription{sub: sub}, nil
}

// Publish implements Bus.
func (b *NATSBus) Publish(_ context.Context, subject string, data []byte) error {
	return b.conn.Publish(subject, data)
}

// Close drains and closes the connection, and shuts down the embedded server if one
// was started.
func (b *NATSBus) Close() error {
	if b.conn != nil {
		if err := b.conn.Drain(); err != nil {
			b.conn.Close()
			return fmt.Errorf("drain NATS connection: %w", err)
		}
		b.conn.Close()
	}
	if b.embedded != nil {
		b.embedded.Shutdown()
		b.embedded.WaitForShutdown()
	}
	return nil
}
