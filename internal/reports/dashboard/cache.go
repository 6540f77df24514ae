package dashboard

import (
	"sync"
	"time"
)

// AggregateCache is an in-memory TTL cache for computed aggregates
type AggregateCache[V any] struct {
	data    map[string]cacheEntry[V]
	ttl     time.Duration
	mu      sync.RWMutex
	cleanup *time.Ticker
	done    chan struct{}
	once    sync.Once
}

type cacheEntry[V any] struct {
	value      V
	expiration time.Time
}

// NewAggregateCache creates a cache and starts its expiry sweep
func NewAggregateCache[V any](ttl time.Duration) *AggregateCache[V] {
	cache := &AggregateCache[V]{
		data:    make(map[string]cacheEntry[V]),
		ttl:     ttl,
		cleanup: time.NewTicker(time.Minute),
		done:    make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// Get retrieves an unexpired value
func (c *AggregateCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok || time.Now().After(entry.expiration) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores a value for the cache TTL
func (c *AggregateCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry[V]{value: value, expiration: time.Now().Add(c.ttl)}
}

// Delete removes a value
func (c *AggregateCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
}

// Size returns the number of entries, including expired ones not yet swept
func (c *AggregateCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}

// GetOrSet returns the cached value for key, computing and storing it on a miss
func (c *AggregateCache[V]) GetOrSet(key string, compute func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	c.Set(key, value)
	return value, nil
}

// Stop stops the expiry sweep
func (c *AggregateCache[V]) Stop() {
	c.once.Do(func() {
		c.cleanup.Stop()
		close(c.done)
	})
}

func (c *AggregateCache[V]) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *AggregateCache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
}
