// Package coalescer implements the Batch Coalescer (spec.md §4.2): a
// single-consumer queue drained by a periodic flush timer that is reset on
// every admitted event, collapsing bursts of tagging events into one rebuild
// batch per downstream target. The debounce idiom (timer re-armed rather than
// stacked) mirrors the quiet-period pattern used for filesystem-change
// coalescing elsewhere in this codebase's lineage.
package coalescer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sgallagher/distrobuildsync/internal/classifier"
)

// DefaultInterval is the default quiet period (spec.md §4.2 "batch_timer").
const DefaultInterval = 2 * time.Second

// FlushFunc handles one drained, target-partitioned batch. Implementations
// (the Rebuild Orchestrator) should not block the caller for longer than
// necessary; Coalescer invokes each partition's FlushFunc in its own
// goroutine so slow targets cannot delay others.
type FlushFunc func(target string, builds []classifier.RebuildData)

// Coalescer accumulates RebuildData under a debounce timer and flushes
// target-partitioned batches to onFlush.
type Coalescer struct {
	mu       sync.Mutex
	pending  []classifier.RebuildData
	timer    *time.Timer
	interval time.Duration
	onFlush  FlushFunc
	logger   *slog.Logger
	stopped  bool
}

// New returns a Coalescer with the given quiet period and flush callback. The
// debounce timer is not armed until the first Admit call.
func New(interval time.Duration, onFlush FlushFunc, logger *slog.Logger) *Coalescer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coalescer{interval: interval, onFlush: onFlush, logger: logger}
}

// Admit enqueues rd and (re-)arms the flush timer, discarding any time already
// elapsed toward the previous flush. Safe to call from any goroutine (the bus
// consumer).
func (c *Coalescer) Admit(rd classifier.RebuildData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.pending = append(c.pending, rd)
	if c.timer == nil {
		c.timer = time.AfterFunc(c.interval, c.flush)
		return
	}
	c.timer.Reset(c.interval)
}

// Stop disarms the timer and prevents further admission. Any already-drained
// flush in progress completes normally.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
	}
}

// Pending returns the number of events currently queued, for metrics/tests.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// flush drains the queue non-blockingly and dispatches one goroutine per
// downstream-target partition. Events admitted while flush runs land in
// c.pending for the next timer fire, never the in-progress one.
func (c *Coalescer) flush() {
	c.mu.Lock()
	drained := c.pending
	c.pending = nil
	c.timer = nil
	stopped := c.stopped
	c.mu.Unlock()

	if stopped || len(drained) == 0 {
		return
	}

	partitions := partitionByTarget(drained)
	c.logger.Debug("flushing coalesced batch", "events", len(drained), "targets", len(partitions))
	for target, builds := range partitions {
		go c.onFlush(target, builds)
	}
}

func partitionByTarget(events []classifier.RebuildData) map[string][]classifier.RebuildData {
	out := make(map[string][]classifier.RebuildData)
	for _, e := range events {
		out[e.DownstreamTarget] = append(out[e.DownstreamTarget], e)
	}
	return out
}
