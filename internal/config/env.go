// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/zkhbridge/internal/log"
	"github.com/rs/zerolog"
)

// Environment keys.
const (
	EnvDataDir          = "ZKH_DATA"
	EnvLogLevel         = "ZKH_LOG_LEVEL"
	EnvPortalURL        = "ZKH_PORTAL_URL"
	EnvUsername         = "ZKH_USERNAME"
	EnvPassword         = "ZKH_PASSWORD"
	EnvTimezone         = "ZKH_TIMEZONE"
	EnvPortalTimeout    = "ZKH_PORTAL_TIMEOUT"
	EnvPortalRetries    = "ZKH_PORTAL_RETRIES"
	EnvPortalCharset    = "ZKH_PORTAL_CHARSET"
	EnvRefreshInterval  = "ZKH_REFRESH_INTERVAL"
	EnvRefreshTimeout   = "ZKH_REFRESH_TIMEOUT"
	EnvListen           = "ZKH_LISTEN"
	EnvAPIToken         = "ZKH_API_TOKEN"
	EnvAPIAnonymous     = "ZKH_API_ANONYMOUS"
	EnvAPIRateLimit     = "ZKH_API_RATE_LIMIT"
	EnvMetricsEnabled   = "ZKH_METRICS_ENABLED"
	EnvMetricsListen    = "ZKH_METRICS_LISTEN"
	EnvStoreBackend     = "ZKH_STORE_BACKEND"
	EnvCacheBackend     = "ZKH_CACHE_BACKEND"
	EnvCacheTTL         = "ZKH_CACHE_TTL"
	EnvRedisAddr        = "ZKH_REDIS_ADDR"
	EnvRedisPassword    = "ZKH_REDIS_PASSWORD"
	EnvRedisDB          = "ZKH_REDIS_DB"
	EnvHassURL          = "ZKH_HASS_URL"
	EnvHassToken        = "ZKH_HASS_TOKEN"
	EnvHassEntryID      = "ZKH_HASS_ENTRY_ID"
	EnvTelemetryEnabled = "ZKH_TELEMETRY_ENABLED"
	EnvOTLPExporter     = "ZKH_OTLP_EXPORTER"
	EnvOTLPEndpoint     = "ZKH_OTLP_ENDPOINT"
	EnvOTLPSampling     = "ZKH_OTLP_SAMPLING_RATE"
)

func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	return strings.Contains(lowerKey, "token") || strings.Contains(lowerKey, "password")
}

// ParseString reads a string from environment variable or returns default value.
// It logs the source (environment or default) for observability.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(log.WithComponent("config"), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		switch {
		case value == "":
			logger.Debug().
				Str("key", key).
				Str("source", "default").
				Msg("using default value (environment variable is empty)")
			return defaultValue
		case isSensitiveKey(key):
			logger.Debug().
				Str("key", key).
				Str("source", "environment").
				Bool("sensitive", true).
				Msg("using environment variable")
		default:
			logger.Debug().
				Str("key", key).
				Str("value", value).
				Str("source", "environment").
				Msg("using environment variable")
		}
		return value
	}
	return defaultValue
}

// ParseInt reads an integer from environment variable or returns default value.
// It falls back to default on parse errors.
func ParseInt(key string, defaultValue int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	logger := log.WithComponent("config")
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Int("value", i).Str("source", "environment").Msg("using environment variable")
	return i
}

// ParseDuration reads a duration in Go format (e.g. "5s") from environment variable.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	logger := log.WithComponent("config")
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Dur("value", d).Str("source", "environment").Msg("using environment variable")
	return d
}

// ParseBool reads a boolean from environment variable or returns default value.
// It accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	logger := log.WithComponent("config")
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Bool("default", defaultValue).
			Msg("invalid boolean in environment variable, using default")
		return defaultValue
	}
}

// ParseFloat reads a float64 from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Float64("default", defaultValue).
			Msg("invalid float in environment variable, using default")
		return defaultValue
	}
	return f
}
