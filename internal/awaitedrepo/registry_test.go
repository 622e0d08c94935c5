package awaitedrepo

import (
	"testing"
	"time"
)

func TestFulfillResolvesWaiters(t *testing.T) {
	r := New()
	ch1 := r.Wait("f42-build", time.Minute)
	ch2 := r.Wait("f42-build", time.Minute)

	r.Fulfill("f42-build")

	select {
	case v := <-ch1:
		if !v {
			t.Error("expected fulfilled=true")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ch1")
	}
	select {
	case v := <-ch2:
		if !v {
			t.Error("expected fulfilled=true")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ch2")
	}
}

func TestTimeoutResolvesFalse(t *testing.T) {
	r := New()
	ch := r.Wait("f42-build", 10*time.Millisecond)

	select {
	case v := <-ch:
		if v {
			t.Error("expected fulfilled=false on timeout")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for timeout result")
	}
}

func TestLateFulfillmentIsIgnored(t *testing.T) {
	r := New()
	ch := r.Wait("f42-build", 10*time.Millisecond)

	<-ch // consume timeout

	// Should not panic or block even though the waiter already completed.
	r.Fulfill("f42-build")
}

func TestFulfillUnknownTagIsNoop(t *testing.T) {
	r := New()
	r.Fulfill("never-registered") // must not panic
}

func TestHandlesRegisteredAfterFulfillAreUnaffected(t *testing.T) {
	r := New()
	ch1 := r.Wait("f42-build", time.Minute)
	r.Fulfill("f42-build")
	<-ch1

	ch2 := r.Wait("f42-build", 10*time.Millisecond)
	select {
	case v := <-ch2:
		if v {
			t.Error("expected the new handle to time out, not be fulfilled by the earlier event")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}
