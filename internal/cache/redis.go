// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // host:port
	Password string
	DB       int
	// Prefix namespaces every key, e.g. "zkhbridge:".
	Prefix string
}

// RedisCache is a Redis-backed Cache. Failures degrade to misses and are logged.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
	stats  struct {
		hits   atomic.Int64
		misses atomic.Int64
		sets   atomic.Int64
	}
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("event", "cache.redis.connected").
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis cache")

	return &RedisCache{client: client, prefix: cfg.Prefix, logger: logger}, nil
}

func (c *RedisCache) key(k string) string { return c.prefix + k }

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.stats.misses.Add(1)
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		c.stats.misses.Add(1)
		return nil, false
	}
	c.stats.hits.Add(1)
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
		return
	}
	c.stats.sets.Add(1)
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis delete failed")
	}
}

// Stats reports local counters; CurrentSize is the size of the Redis DB.
func (c *RedisCache) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	size, err := c.client.DBSize(ctx).Result()
	if err != nil {
		c.logger.Warn().Err(err).Msg("redis dbsize failed")
		size = 0
	}
	return Stats{
		Hits:        c.stats.hits.Load(),
		Misses:      c.stats.misses.Load(),
		Sets:        c.stats.sets.Load(),
		CurrentSize: int(size),
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// HealthCheck pings the server.
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
