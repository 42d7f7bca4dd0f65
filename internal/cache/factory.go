// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// New builds the configured cache backend.
func New(ctx context.Context, backend string, redisCfg RedisConfig, logger zerolog.Logger) (Cache, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryCache(time.Minute), nil
	case BackendRedis:
		rc, err := NewRedisCache(ctx, redisCfg, logger)
		if err != nil {
			return nil, err
		}
		return rc, nil
	case BackendNone:
		return NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", backend)
	}
}
