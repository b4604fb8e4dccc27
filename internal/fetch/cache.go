package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader is the read side shared by the cache and its consumers, so provider
// clients can be wired against either a live cache or a test double.
type Loader interface {
	Load(ctx context.Context, key string) ([]byte, error)
}

// FetchFunc produces the value for a cache key, typically Client.Get.
type FetchFunc func(ctx context.Context, key string) ([]byte, error)

type entry struct {
	value      []byte
	insertedAt time.Time
}

// Cache deduplicates and caches fetches. Identical concurrent keys share one
// in-flight call; successful results live for ttl. Expired entries are
// removed by a background sweep every ttl/5 but the read path also checks
// entry age, so a stale value is never served even when the sweep lags.
// Errors are never cached.
type Cache struct {
	fetch FetchFunc
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]entry

	group singleflight.Group
	stop  chan struct{}
	once  sync.Once
}

// NewCache builds a cache over fetch. A non-positive ttl disables caching:
// every Load fetches (still coalesced) and no sweeper runs.
func NewCache(fetch FetchFunc, ttl time.Duration) *Cache {
	c := &Cache{
		fetch:   fetch,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	if ttl > 0 {
		go c.sweep()
	}
	return c
}

func (c *Cache) Load(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// another caller may have populated the entry while we queued
		if v, ok := c.get(key); ok {
			return v, nil
		}

		value, err := c.fetch(ctx, key)
		if err != nil {
			return nil, err
		}

		if c.ttl > 0 {
			c.mu.Lock()
			c.entries[key] = entry{value: value, insertedAt: c.now()}
			c.mu.Unlock()
		}

		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.insertedAt) >= c.ttl {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(c.ttl / 5)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.insertedAt.Before(cutoff) {
			delete(c.entries, key)
		}
	}
}

// Close stops the background sweep.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}
