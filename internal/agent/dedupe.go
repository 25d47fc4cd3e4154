package agent

import (
	"context"
	"sync"
	"time"
)

// DedupeCache collapses concurrent or repeated requests carrying the same
// request ID to one execution. The first caller to claim an ID runs the
// work and completes the slot; later callers wait on the slot and replay
// the finished response. Entries expire after ttl and the cache is bounded
// by maxLen, evicting the oldest completed entries first.
type DedupeCache struct {
	mu      sync.Mutex
	entries map[string]*DedupeEntry
	ttl     time.Duration
	maxLen  int
}

// DedupeEntry is one in-flight or completed request slot.
type DedupeEntry struct {
	done      chan struct{}
	response  string
	err       error
	createdAt time.Time
}

// NewDedupeCache returns a cache with the given entry lifetime and size
// bound. Zero or negative values fall back to 10 minutes and 1024 entries.
func NewDedupeCache(ttl time.Duration, maxLen int) *DedupeCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if maxLen <= 0 {
		maxLen = 1024
	}
	return &DedupeCache{
		entries: make(map[string]*DedupeEntry),
		ttl:     ttl,
		maxLen:  maxLen,
	}
}

// Claim returns the slot for id and whether the caller claimed it. A true
// result means the caller owns execution and must call Complete on the
// entry; false means another caller holds it and Wait should be used.
func (c *DedupeCache) Claim(id string) (*DedupeEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictLocked()

	if e, ok := c.entries[id]; ok {
		return e, false
	}
	e := &DedupeEntry{done: make(chan struct{}), createdAt: time.Now()}
	c.entries[id] = e
	return e, true
}

// evictLocked drops expired entries, then oldest completed entries until
// the cache is under its bound. In-flight entries are never evicted.
func (c *DedupeCache) evictLocked() {
	now := time.Now()
	for id, e := range c.entries {
		if now.Sub(e.createdAt) > c.ttl {
			delete(c.entries, id)
		}
	}
	for len(c.entries) >= c.maxLen {
		var oldestID string
		var oldest *DedupeEntry
		for id, e := range c.entries {
			select {
			case <-e.done:
			default:
				continue // still running
			}
			if oldest == nil || e.createdAt.Before(oldest.createdAt) {
				oldestID, oldest = id, e
			}
		}
		if oldest == nil {
			return
		}
		delete(c.entries, oldestID)
	}
}

// Forget drops the slot for id so a later request with the same ID
// re-executes instead of replaying. It is a no-op when the slot has
// already been replaced. Waiters already holding the entry still see
// its completion.
func (c *DedupeCache) Forget(id string, e *DedupeEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[id]; ok && cur == e {
		delete(c.entries, id)
	}
}

// Len returns the current entry count.
func (c *DedupeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Complete finishes the slot with the response, releasing all waiters.
func (e *DedupeEntry) Complete(response string, err error) {
	e.response = response
	e.err = err
	close(e.done)
}

// Wait blocks until the owning caller completes the slot or ctx expires.
func (e *DedupeEntry) Wait(ctx context.Context) (string, error) {
	select {
	case <-e.done:
		return e.response, e.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
