// Package memory provides an in-process TTL cache for task results.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/audithq/site-auditor/internal/audit"
)

const sweepInterval = time.Minute

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is a concurrency-safe key-value cache with per-entry TTL. Expired
// entries are dropped lazily on Get and by a background sweeper.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	stopCh  chan struct{}
	stopped sync.Once
}

// New constructs a Cache and starts its sweeper goroutine.
func New() *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		stopCh:  make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Set stores value under key for ttl. A non-positive ttl expires immediately.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	c.mu.Lock()
	c.entries[key] = entry{value: cp, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Get returns the value for key or audit.ErrNotFound when absent or expired.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, audit.ErrNotFound
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, audit.ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Close stops the sweeper.
func (c *Cache) Close() {
	c.stopped.Do(func() { close(c.stopCh) })
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for k, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
