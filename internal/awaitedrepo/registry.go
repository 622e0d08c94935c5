// Package awaitedrepo implements the rendezvous between orchestrations waiting for
// buildroot regeneration and the asynchronous buildsys.repo.done bus events that
// announce it (spec.md §3 Awaited-Repo Registry, §4.6).
package awaitedrepo

import (
	"sync"
	"time"
)

// DefaultTimeout is the per-handle wait timeout (spec.md §3/§4.6: 15 minutes).
const DefaultTimeout = 15 * time.Minute

// Registry maps a build tag to the wait-handles currently pending on it.
type Registry struct {
	mu      sync.Mutex
	waiters map[string][]*waiter
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{waiters: make(map[string][]*waiter)}
}

type waiter struct {
	tag   string
	ch    chan bool
	once  sync.Once
	timer *time.Timer
}

func (w *waiter) complete(fulfilled bool) {
	w.once.Do(func() {
		if w.timer != nil {
			w.timer.Stop()
		}
		w.ch <- fulfilled
		close(w.ch)
	})
}

// Wait registers a new wait-handle for tag and returns a channel that receives
// exactly one value: true if a matching repo.done event arrives before timeout,
// false if timeout elapses first. The two outcomes are mutually exclusive.
func (r *Registry) Wait(tag string, timeout time.Duration) <-chan bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	w := &waiter{tag: tag, ch: make(chan bool, 1)}

	r.mu.Lock()
	r.waiters[tag] = append(r.waiters[tag], w)
	r.mu.Unlock()

	w.timer = time.AfterFunc(timeout, func() {
		r.removeWaiter(tag, w)
		w.complete(false)
	})

	return w.ch
}

func (r *Registry) removeWaiter(tag string, target *waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws := r.waiters[tag]
	filtered := ws[:0]
	for _, w := range ws {
		if w != target {
			filtered = append(filtered, w)
		}
	}
	if len(filtered) == 0 {
		delete(r.waiters, tag)
	} else {
		r.waiters[tag] = filtered
	}
}

// Fulfill resolves every handle currently registered under tag, then clears the
// list. Handles registered after this call returns are unaffected. A repo.done
// event for a tag with no waiters is a silent no-op.
func (r *Registry) Fulfill(tag string) {
	r.mu.Lock()
	ws := r.waiters[tag]
	delete(r.waiters, tag)
	r.mu.Unlock()

	for _, w := range ws {
		w.complete(true)
	}
}

// Pending returns the number of outstanding handles for tag, for tests and metrics.
func (r *Registry) Pending(tag string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters[tag])
}
