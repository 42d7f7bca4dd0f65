// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)

	value := []byte(`{"meters":{}}`)
	c.Set(ctx, "snapshot", value, 5*time.Minute)
	value[0] = 'X'

	got, ok := c.Get(ctx, "snapshot")
	require.True(t, ok)
	assert.Equal(t, `{"meters":{}}`, string(got), "stored value is a copy")

	_, ok = c.Get(ctx, "nonexistent")
	assert.False(t, ok)

	c.Delete(ctx, "snapshot")
	_, ok = c.Get(ctx, "snapshot")
	assert.False(t, ok)
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(0)
	c.now = func() time.Time { return now }

	c.Set(ctx, "short", []byte("v"), time.Minute)
	c.Set(ctx, "forever", []byte("v"), 0)

	now = now.Add(2 * time.Minute)
	_, ok := c.Get(ctx, "short")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "forever")
	assert.True(t, ok)

	assert.Equal(t, 1, c.deleteExpired())
	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 1, stats.CurrentSize)
	assert.Equal(t, int64(2), stats.Sets)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestMemoryCache_Janitor(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	c := NewMemoryCache(10 * time.Millisecond)
	defer func() { _ = c.Close() }()

	c.Set(ctx, "a", []byte("1"), 5*time.Millisecond)
	c.Set(ctx, "long", []byte("2"), time.Hour)

	assert.Eventually(t, func() bool {
		return c.Stats().CurrentSize == 1
	}, time.Second, 10*time.Millisecond)

	_, ok := c.Get(ctx, "long")
	assert.True(t, ok)
}

func TestMemoryCache_CloseIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := NewMemoryCache(time.Minute)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Millisecond)
	defer func() { _ = c.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(ctx, "k", []byte{byte(j)}, time.Millisecond)
				c.Get(ctx, "k")
			}
		}()
	}
	wg.Wait()
}

func TestNoOpCache(t *testing.T) {
	ctx := context.Background()
	c := NewNoOpCache()
	c.Set(ctx, "key", []byte("v"), time.Minute)
	_, ok := c.Get(ctx, "key")
	assert.False(t, ok)
	c.Delete(ctx, "key")
	assert.Equal(t, Stats{}, c.Stats())
	assert.NoError(t, c.Close())
}
