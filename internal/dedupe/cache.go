// ABOUTME: Thread-safe TTL cache guarding against replayed gateway events
// ABOUTME: Keys are session:sequence pairs; size-bounded with O(1) eviction

package dedupe

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// entry stores the timestamp and list element for a cached key.
type entry struct {
	timestamp time.Time
	element   *list.Element
}

// Cache tracks event keys already dispatched so a resume replay does not
// double-process them. It is TTL-based and size-limited; insertion order is
// kept in a doubly-linked list for O(1) eviction of the oldest key.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // oldest key at front
	ttl     time.Duration
	maxSize int
}

// New creates a replay guard with the given TTL and maximum size.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// EventKey builds the cache key for a gateway event.
func EventKey(sessionID string, sequence int64) string {
	return fmt.Sprintf("%s:%d", sessionID, sequence)
}

// Seen atomically checks whether the key was already dispatched and marks it
// if not. Returns true for a duplicate, false for a new key now marked.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[key]; ok {
		if time.Since(e.timestamp) < c.ttl {
			return true
		}
		// Expired: fall through and re-mark.
		c.order.Remove(e.element)
		delete(c.seen, key)
	}

	c.evictLocked()
	el := c.order.PushBack(key)
	c.seen[key] = &entry{timestamp: time.Now(), element: el}
	return false
}

// Len returns the number of tracked keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// evictLocked drops expired keys from the front, then enforces maxSize.
// Caller must hold c.mu.
func (c *Cache) evictLocked() {
	now := time.Now()
	for el := c.order.Front(); el != nil; {
		key := el.Value.(string)
		e := c.seen[key]
		next := el.Next()
		if now.Sub(e.timestamp) >= c.ttl {
			c.order.Remove(el)
			delete(c.seen, key)
			el = next
			continue
		}
		break // list is in insertion order; the rest are newer
	}

	for len(c.seen) >= c.maxSize && c.order.Front() != nil {
		el := c.order.Front()
		key := el.Value.(string)
		c.order.Remove(el)
		delete(c.seen, key)
	}
}
