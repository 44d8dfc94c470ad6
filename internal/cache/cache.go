package cache

import (
	"sync"
	"time"
)

// State classifies a lookup outcome. Stale means an entry exists but its TTL
// has elapsed; callers must treat it as a miss for correctness (expiry is the
// sole backstop for administrative changes) and may use it for metrics only.
type State int

const (
	Miss State = iota
	Fresh
	Stale
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	}
	return "miss"
}

// Key addresses one cached attribute of one entity.
type Key struct {
	Kind      string
	ID        string
	Attribute string
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is the process-wide staleness-bounded cache for trust lookups.
// Get/Put/Invalidate are safe for concurrent use without caller locking.
// Invalidation is last-writer-wins: it discards whatever entry is present at
// the time of the call, including one a racing Put just stored.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]entry
	now     func() time.Time
}

// Option configures Cache behavior.
type Option func(*Cache)

// WithClock injects the time source; tests advance it instead of sleeping.
func WithClock(fn func() time.Time) Option {
	return func(c *Cache) {
		if fn != nil {
			c.now = fn
		}
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[Key]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value and its freshness. The value is returned even
// when stale so callers can report how far behind a lookup would have been.
func (c *Cache) Get(key Key) (any, State) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, Miss
	}
	if c.now().After(e.expiresAt) {
		return e.value, Stale
	}
	return e.value, Fresh
}

// Put stores a value with the given TTL. Non-positive TTLs are rejected
// silently: an entry that can never be fresh is not worth holding.
func (c *Cache) Put(key Key, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	expiresAt := c.now().Add(ttl)
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
}

// Invalidate drops the entry for key, if any.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Sweep removes every expired entry. Optional housekeeping; correctness never
// depends on it because Get re-checks expiry.
func (c *Cache) Sweep() {
	now := c.now()
	c.mu.Lock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Len reports the number of resident entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
