// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cache provides byte-oriented TTL caches used to survive restarts
// with the last known snapshot.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache stores opaque values with an expiry. A zero TTL means no expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Stats() Stats
	Close() error
}

// Stats holds cache counters.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Sets        int64 `json:"sets"`
	Evictions   int64 `json:"evictions"`
	CurrentSize int   `json:"current_size"`
}

type entry struct {
	value      []byte
	expiration time.Time
}

func (e *entry) isExpired(now time.Time) bool {
	return !e.expiration.IsZero() && now.After(e.expiration)
}

// MemoryCache is an in-process Cache with an optional janitor goroutine.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	stats   Stats
	janitor *janitor
	now     func() time.Time
}

// NewMemoryCache creates a cache. A positive cleanupInterval starts a janitor
// that removes expired entries until Close.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
			done:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found || e.isExpired(c.now()) {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return append([]byte(nil), e.value...), true
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiration = c.now().Add(ttl)
	}
	c.entries[key] = e
	c.stats.Sets++
}

func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

// deleteExpired removes expired entries and returns how many were dropped.
func (c *MemoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0
	for key, e := range c.entries {
		if e.isExpired(now) {
			delete(c.entries, key)
			count++
		}
	}
	c.stats.Evictions += int64(count)
	return count
}

// Close stops the janitor and waits for it to exit. It is safe to call twice.
func (c *MemoryCache) Close() error {
	if c.janitor != nil {
		c.janitor.once.Do(func() { close(c.janitor.stop) })
		<-c.janitor.done
	}
	return nil
}

type janitor struct {
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

func (j *janitor) run(c *MemoryCache) {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

type noOpCache struct{}

// NewNoOpCache returns a cache that never stores anything.
func NewNoOpCache() Cache {
	return noOpCache{}
}

func (noOpCache) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (noOpCache) Set(context.Context, string, []byte, time.Duration) {}
func (noOpCache) Delete(context.Context, string)                     {}
func (noOpCache) Stats() Stats                                       { return Stats{} }
func (noOpCache) Close() error                                       { return nil }
