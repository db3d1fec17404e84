package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(100 * time.Millisecond)

	c.Advance(50 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired before deadline")
	default:
	}

	c.Advance(50 * time.Millisecond)
	select {
	case got := <-ch:
		if !got.Equal(epoch.Add(100 * time.Millisecond)) {
			t.Errorf("fired at %v", got)
		}
	default:
		t.Fatal("did not fire at deadline")
	}
	if c.PendingCount() != 0 {
		t.Errorf("pending = %d", c.PendingCount())
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	c := Fake(epoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("zero duration should fire immediately")
	}
	if c.Registered() != 1 {
		t.Errorf("registered = %d", c.Registered())
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-c.After(time.Second)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Second)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter did not fire")
	}
}
