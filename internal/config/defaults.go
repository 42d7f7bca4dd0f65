// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/zkhbridge/internal/portal"
)

const (
	DefaultDataDir       = "/var/lib/zkhbridge"
	DefaultListen        = ":8088"
	DefaultMetricsListen = ":9464"
	DefaultEntryID       = "zkhnso"
)

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:  DefaultDataDir,
		LogLevel: "info",
		Portal: PortalConfig{
			BaseURL:    portal.DefaultBaseURL,
			Timezone:   portal.DefaultTimezone,
			Timeout:    15 * time.Second,
			Retries:    2,
			Backoff:    500 * time.Millisecond,
			MaxBackoff: 5 * time.Second,
			RateLimit:  2,
			RateBurst:  4,
			UserAgent:  "zkhbridge",
		},
		Refresh: RefreshConfig{
			Interval:         time.Hour,
			Timeout:          2 * time.Minute,
			BreakerThreshold: 3,
			BreakerReset:     10 * time.Minute,
		},
		API: APIConfig{
			Listen:           DefaultListen,
			RateLimit:        120,
			RefreshRateLimit: 6,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Listen:  DefaultMetricsListen,
		},
		Store: StoreConfig{Backend: StoreSQLite},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     0,
			Redis:   RedisConfig{Prefix: "zkhbridge:"},
		},
		Hass: HassConfig{
			EntryID: DefaultEntryID,
			Timeout: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}
