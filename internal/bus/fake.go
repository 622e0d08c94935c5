package bus

import (
	"context"
	"strings"
	"sync"
)

// FakeBus is an in-memory Bus for tests. Subject matching supports a trailing ">"
// wildcard (NATS-style) and exact matches; it does not implement the full NATS
// subject algebra since the daemon only ever subscribes to simple prefixes.
type FakeBus struct {
	mu   sync.Mutex
	subs map[string][]Handler
}

// NewFakeBus returns an empty FakeBus.
func NewFakeBus() *FakeBus {
	return &FakeBus{subs: make(map[string][]Handler)}
}

type fakeSubscription struct{}

func (fakeSubscription) Unsubscribe() error { return nil }

// Subscribe implements Bus.
func (b *FakeBus) Subscribe(_ context.Context, subject string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[subject] = append(b.subs[subject], handler)
	return fakeSubscription{}, nil
}

// Publish implements Bus, delivering synchronously to every matching subscriber.
func (b *FakeBus) Publish(_ context.Context, subject string, data []byte) error {
	b.mu.Lock()
	var handlers []Handler
	for pattern, hs := range b.subs {
		if subjectMatches(pattern, subject) {
			handlers = append(handlers, hs...)
		}
	}
	b.mu.Unlock()

	msg := Message{Subject: subject, Data: data}
	for _, h := range handlers {
		h(msg)
	}
	return nil
}

// Close implements Bus.
func (b *FakeBus) Close() error { return nil }

func subjectMatches(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	if strings.HasSuffix(pattern, ">") {
		prefix := strings.TrimSuffix(pattern, ">")
		return strings.HasPrefix(subject, prefix)
	}
	return false
}
