package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock advances only when told to; tests never sleep.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestGetStates(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	key := Key{Kind: "organization", ID: "org-1", Attribute: "status"}

	if v, state := c.Get(key); state != Miss || v != nil {
		t.Fatalf("empty cache: got %v, %v", v, state)
	}

	c.Put(key, "active", time.Minute)
	if v, state := c.Get(key); state != Fresh || v != "active" {
		t.Fatalf("after put: got %v, %v", v, state)
	}

	clock.Advance(30 * time.Second)
	if _, state := c.Get(key); state != Fresh {
		t.Fatalf("within ttl: got %v", state)
	}

	clock.Advance(31 * time.Second)
	v, state := c.Get(key)
	if state != Stale {
		t.Fatalf("past ttl: got %v", state)
	}
	if v != "active" {
		t.Fatalf("stale entry should still carry its value, got %v", v)
	}
}

func TestPutRejectsNonPositiveTTL(t *testing.T) {
	c := New(WithClock(newFakeClock().Now))
	key := Key{Kind: "client", ID: "c-1", Attribute: "status"}
	c.Put(key, "active", 0)
	c.Put(key, "active", -time.Second)
	if _, state := c.Get(key); state != Miss {
		t.Fatalf("expected miss after non-positive ttl puts, got %v", state)
	}
}

func TestInvalidate(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	key := Key{Kind: "certificate", ID: "kid-1", Attribute: "status"}

	c.Put(key, "active", time.Minute)
	c.Invalidate(key)
	if _, state := c.Get(key); state != Miss {
		t.Fatalf("expected miss after invalidate, got %v", state)
	}

	// invalidating an absent key is fine
	c.Invalidate(key)
}

func TestSweepDropsOnlyExpired(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	old := Key{Kind: "vault", ID: "v-1", Attribute: "status"}
	young := Key{Kind: "vault", ID: "v-2", Attribute: "status"}

	c.Put(old, "active", time.Second)
	c.Put(young, "active", time.Hour)
	clock.Advance(time.Minute)
	c.Sweep()

	if c.Len() != 1 {
		t.Fatalf("expected 1 resident entry after sweep, got %d", c.Len())
	}
	if _, state := c.Get(young); state != Fresh {
		t.Fatalf("unexpired entry swept: %v", state)
	}
}

func TestConcurrentAccess(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key{Kind: "client", ID: fmt.Sprintf("c-%d", i%4), Attribute: "status"}
			for j := 0; j < 500; j++ {
				switch j % 3 {
				case 0:
					c.Put(key, j, time.Minute)
				case 1:
					c.Get(key)
				default:
					c.Invalidate(key)
				}
			}
		}(i)
	}
	wg.Wait()
}
