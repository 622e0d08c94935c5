package coalescer

import (
	"sync"
	"testing"
	"time"

	"github.com/sgallagher/distrobuildsync/internal/classifier"
)

func TestBurstWithinIntervalFlushesOnce(t *testing.T) {
	var mu sync.Mutex
	var flushes [][]classifier.RebuildData

	c := New(80*time.Millisecond, func(target string, builds []classifier.RebuildData) {
		mu.Lock()
		defer mu.Unlock()
		flushes = append(flushes, builds)
	}, nil)

	for i := 0; i < 10; i++ {
		c.Admit(classifier.RebuildData{Comp: "bash"})
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(flushes) != 1 {
		t.Fatalf("got %d flushes, want 1", len(flushes))
	}
	if len(flushes[0]) != 10 {
		t.Errorf("flush contained %d events, want 10", len(flushes[0]))
	}
}

func TestGapBeyondIntervalProducesTwoFlushes(t *testing.T) {
	var mu sync.Mutex
	count := 0

	c := New(30*time.Millisecond, func(target string, builds []classifier.RebuildData) {
		mu.Lock()
		defer mu.Unlock()
		count++
	}, nil)

	c.Admit(classifier.RebuildData{Comp: "bash"})
	time.Sleep(80 * time.Millisecond)
	c.Admit(classifier.RebuildData{Comp: "glibc"})
	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("got %d flushes, want 2", count)
	}
}

func TestEmptyDrainIsNoop(t *testing.T) {
	called := false
	c := New(10*time.Millisecond, func(string, []classifier.RebuildData) { called = true }, nil)
	c.flush()
	time.Sleep(20 * time.Millisecond)
	if called {
		t.Error("flush with nothing pending must not invoke onFlush")
	}
}

func TestPartitionsByDownstreamTarget(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}

	c := New(30*time.Millisecond, func(target string, builds []classifier.RebuildData) {
		mu.Lock()
		defer mu.Unlock()
		seen[target] = len(builds)
	}, nil)

	c.Admit(classifier.RebuildData{Comp: "bash", DownstreamTarget: "f42-candidate"})
	c.Admit(classifier.RebuildData{Comp: "glibc", DownstreamTarget: "f42-candidate"})
	c.Admit(classifier.RebuildData{Comp: "stack-a", DownstreamTarget: "stack-gate-tag"})

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if seen["f42-candidate"] != 2 {
		t.Errorf("f42-candidate partition = %d, want 2", seen["f42-candidate"])
	}
	if seen["stack-gate-tag"] != 1 {
		t.Errorf("stack-gate-tag partition = %d, want 1", seen["stack-gate-tag"])
	}
}

func TestStopPreventsFurtherAdmission(t *testing.T) {
	called := false
	c := New(10*time.Millisecond, func(string, []classifier.RebuildData) { called = true }, nil)
	c.Stop()
	c.Admit(classifier.RebuildData{Comp: "bash"})
	time.Sleep(30 * time.Millisecond)
	if called {
		t.Error("Admit after Stop must not flush")
	}
}
