// Package cache provides a bounded, thread-safe TTL cache for upstream
// lookups such as geocoding results.
package cache

import (
	"math"
	"sort"
	"sync"
	"time"
)

type item[V any] struct {
	value      V
	expiration int64
}

func (it item[V]) expired(now int64) bool {
	return it.expiration != 0 && now > it.expiration
}

// TTLCache is a thread-safe cache with time-based expiration and a size cap.
type TTLCache[V any] struct {
	mu              sync.RWMutex
	items           map[string]item[V]
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	maxItems        int
	stop            chan struct{}
	stopOnce        sync.Once
}

// NewTTLCache creates a cache whose entries live for defaultTTL. A positive
// cleanupInterval starts a janitor goroutine that must be released with Stop.
// When maxItems is exceeded the entries closest to expiry are evicted first.
func NewTTLCache[V any](defaultTTL, cleanupInterval time.Duration, maxItems int) *TTLCache[V] {
	c := &TTLCache[V]{
		items:           make(map[string]item[V]),
		defaultTTL:      defaultTTL,
		cleanupInterval: cleanupInterval,
		maxItems:        maxItems,
		stop:            make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor()
	}
	return c
}

// Set adds a value with the default TTL.
func (c *TTLCache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL adds a value with a specific TTL; ttl <= 0 never expires.
func (c *TTLCache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	var expiration int64
	if ttl > 0 {
		expiration = time.Now().Add(ttl).UnixNano()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = item[V]{value: value, expiration: expiration}
	if c.maxItems > 0 && len(c.items) > c.maxItems {
		c.evictLocked(len(c.items) - c.maxItems)
	}
}

// Get returns the value for key if present and not expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	it, found := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !found {
		return zero, false
	}
	if it.expired(time.Now().UnixNano()) {
		c.mu.Lock()
		if latest, ok := c.items[key]; ok && latest.expired(time.Now().UnixNano()) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return it.value, true
}

// Delete removes key.
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Count returns the number of stored entries, expired or not.
func (c *TTLCache[V]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all entries.
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]item[V])
	c.mu.Unlock()
}

// evictLocked drops n entries, soonest expiry first. Caller holds c.mu.
func (c *TTLCache[V]) evictLocked(n int) {
	type keyExp struct {
		key string
		exp int64
	}

	order := make([]keyExp, 0, len(c.items))
	for k, v := range c.items {
		exp := v.expiration
		if exp == 0 {
			exp = math.MaxInt64
		}
		order = append(order, keyExp{k, exp})
	}
	sort.Slice(order, func(i, j int) bool { return order[i].exp < order[j].exp })

	for i := 0; i < n && i < len(order); i++ {
		delete(c.items, order[i].key)
	}
}

func (c *TTLCache[V]) janitor() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.DeleteExpired()
		case <-c.stop:
			return
		}
	}
}

// DeleteExpired removes every expired entry.
func (c *TTLCache[V]) DeleteExpired() {
	now := time.Now().UnixNano()

	c.mu.Lock()
	for k, v := range c.items {
		if v.expired(now) {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}

// Stop halts the janitor goroutine. It is safe to call more than once.
func (c *TTLCache[V]) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}
