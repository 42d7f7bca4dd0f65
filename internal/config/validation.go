// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/zkhbridge/internal/validate"
)

var (
	logLevels     = []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}
	storeBackends = []string{StoreSQLite, StoreBadger, StoreMemory}
	cacheBackends = []string{CacheMemory, CacheRedis, CacheNone}
	exporters     = []string{"grpc", "http"}
)

// Validate checks the resolved configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.OneOf("logLevel", cfg.LogLevel, logLevels)
	v.Directory("dataDir", cfg.DataDir, false)

	v.URL("portal.baseUrl", cfg.Portal.BaseURL, []string{"http", "https"})
	v.NotEmpty("portal.username", cfg.Portal.Username)
	v.NotEmpty("portal.password", cfg.Portal.Password)
	v.DurationRange("portal.timeout", cfg.Portal.Timeout, time.Second, 5*time.Minute)
	v.Range("portal.retries", cfg.Portal.Retries, -1, 10)
	if cfg.Portal.MaxBackoff < cfg.Portal.Backoff {
		v.AddError("portal.maxBackoff", "must not be smaller than portal.backoff", cfg.Portal.MaxBackoff)
	}
	if cfg.Portal.RateLimit <= 0 {
		v.AddError("portal.rateLimit", "must be positive", cfg.Portal.RateLimit)
	}

	v.DurationRange("refresh.interval", cfg.Refresh.Interval, time.Minute, 7*24*time.Hour)
	v.DurationRange("refresh.timeout", cfg.Refresh.Timeout, 5*time.Second, time.Hour)
	v.Range("refresh.breakerThreshold", cfg.Refresh.BreakerThreshold, 1, 100)

	v.ListenAddr("api.listen", cfg.API.Listen)
	v.Range("api.rateLimit", cfg.API.RateLimit, 1, 100000)
	v.Range("api.refreshRateLimit", cfg.API.RefreshRateLimit, 1, 1000)

	if cfg.Metrics.Enabled {
		v.ListenAddr("metrics.listen", cfg.Metrics.Listen)
		if cfg.Metrics.Listen == cfg.API.Listen {
			v.AddError("metrics.listen", "must differ from api.listen", cfg.Metrics.Listen)
		}
	}

	v.OneOf("store.backend", cfg.Store.Backend, storeBackends)
	v.OneOf("cache.backend", cfg.Cache.Backend, cacheBackends)
	if cfg.Cache.Backend == CacheRedis {
		v.NotEmpty("cache.redis.addr", cfg.Cache.Redis.Addr)
	}
	if cfg.Cache.TTL < 0 {
		v.AddError("cache.ttl", "must not be negative", cfg.Cache.TTL)
	}

	if cfg.Hass.Enabled() {
		v.URL("homeAssistant.url", cfg.Hass.URL, []string{"http", "https"})
		v.NotEmpty("homeAssistant.token", cfg.Hass.Token)
		v.NotEmpty("homeAssistant.entryId", cfg.Hass.EntryID)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, exporters)
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("telemetry.samplingRate", "must be between 0 and 1", cfg.Telemetry.SamplingRate)
		}
	}

	return v.Err()
}
