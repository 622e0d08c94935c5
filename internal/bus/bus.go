// Package bus abstracts the message-bus transport DistroBuildSync consumes tagging
// and repo-done events from. The concrete transport is an external collaborator
// per spec.md §1/§6; this package defines the minimal contract the daemon needs
// plus a NATS-backed implementation and an in-memory fake for tests.
package bus

import "context"

// Message is a single bus delivery.
type Message struct {
	// Subject is the full bus subject/topic the message arrived on.
	Subject string
	Data    []byte
}

// Subscription represents an active subscription.
type Subscription interface {
	Unsubscribe() error
}

// Handler processes one Message. Handlers run on the bus client's own delivery
// goroutine(s). The daemon's handler classifies the event inline (which may make
// build-system RPCs) and hands admitted events to its coalescer queue;
// orchestration never runs on the delivery goroutine.
type Handler func(Message)

// Bus is the message-bus contract.
type Bus interface {
	// Subscribe registers handler for subject (which may use transport-specific
	// wildcards, e.g. NATS "foo.>"). Returns a Subscription that can be used to
	// stop delivery.
	Subscribe(ctx context.Context, subject string, handler Handler) (Subscription, error)

	// Publish sends data on subject. DistroBuildSync itself never publishes bus
	// messages in the core flow (it is a pure consumer); Publish exists for
	// completeness and for tests that need to drive both ends.
	Publish(ctx context.Context, subject string, data []byte) error

	Close() error
}
