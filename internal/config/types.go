// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreBadger = "badger"
	StoreMemory = "memory"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// FileConfig represents the YAML configuration structure.
type FileConfig struct {
	DataDir  string `yaml:"dataDir,omitempty"`
	LogLevel string `yaml:"logLevel,omitempty"`

	Portal    PortalFileConfig    `yaml:"portal,omitempty"`
	Refresh   RefreshFileConfig   `yaml:"refresh,omitempty"`
	API       APIFileConfig       `yaml:"api,omitempty"`
	Metrics   MetricsFileConfig   `yaml:"metrics,omitempty"`
	Store     StoreFileConfig     `yaml:"store,omitempty"`
	Cache     CacheFileConfig     `yaml:"cache,omitempty"`
	Hass      HassFileConfig      `yaml:"homeAssistant,omitempty"`
	Telemetry TelemetryFileConfig `yaml:"telemetry,omitempty"`
}

// PortalFileConfig holds the portal account and client tuning.
type PortalFileConfig struct {
	BaseURL    string  `yaml:"baseUrl,omitempty"`
	Username   string  `yaml:"username,omitempty"`
	Password   string  `yaml:"password,omitempty"`
	Timezone   string  `yaml:"timezone,omitempty"`
	Timeout    string  `yaml:"timeout,omitempty"` // e.g. "15s"
	Retries    *int    `yaml:"retries,omitempty"`
	Backoff    string  `yaml:"backoff,omitempty"`    // e.g. "500ms"
	MaxBackoff string  `yaml:"maxBackoff,omitempty"` // e.g. "5s"
	RateLimit  float64 `yaml:"rateLimit,omitempty"`
	RateBurst  int     `yaml:"rateBurst,omitempty"`
	UserAgent  string  `yaml:"userAgent,omitempty"`
	Charset    string  `yaml:"charset,omitempty"`
}

// RefreshFileConfig controls the refresh schedule.
type RefreshFileConfig struct {
	Interval         string `yaml:"interval,omitempty"` // e.g. "1h"
	Timeout          string `yaml:"timeout,omitempty"`
	BreakerThreshold int    `yaml:"breakerThreshold,omitempty"`
	BreakerReset     string `yaml:"breakerReset,omitempty"`
}

// APIFileConfig configures the HTTP API.
type APIFileConfig struct {
	Listen           string `yaml:"listen,omitempty"`
	Token            string `yaml:"token,omitempty"`
	Anonymous        *bool  `yaml:"anonymous,omitempty"`
	RateLimit        int    `yaml:"rateLimit,omitempty"`        // requests per minute per IP
	RefreshRateLimit int    `yaml:"refreshRateLimit,omitempty"` // refresh requests per minute per IP
}

// MetricsFileConfig configures the Prometheus listener.
type MetricsFileConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Listen  string `yaml:"listen,omitempty"`
}

// StoreFileConfig selects the history backend.
type StoreFileConfig struct {
	Backend string `yaml:"backend,omitempty"`
}

// CacheFileConfig selects the snapshot cache.
type CacheFileConfig struct {
	Backend string          `yaml:"backend,omitempty"`
	TTL     string          `yaml:"ttl,omitempty"`
	Redis   RedisFileConfig `yaml:"redis,omitempty"`
}

// RedisFileConfig holds Redis connection settings.
type RedisFileConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// HassFileConfig configures the Home Assistant publisher.
type HassFileConfig struct {
	URL     string `yaml:"url,omitempty"`
	Token   string `yaml:"token,omitempty"`
	EntryID string `yaml:"entryId,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}

// TelemetryFileConfig configures OpenTelemetry tracing.
type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
	Environment  string   `yaml:"environment,omitempty"`
}

// AppConfig is the resolved configuration used by the daemon.
type AppConfig struct {
	Version  string
	DataDir  string
	LogLevel string

	Portal    PortalConfig
	Refresh   RefreshConfig
	API       APIConfig
	Metrics   MetricsConfig
	Store     StoreConfig
	Cache     CacheConfig
	Hass      HassConfig
	Telemetry TelemetryConfig
}

// PortalConfig is the resolved portal account and client tuning.
type PortalConfig struct {
	BaseURL    string
	Username   string
	Password   string
	Timezone   string
	Timeout    time.Duration
	Retries    int
	Backoff    time.Duration
	MaxBackoff time.Duration
	RateLimit  float64
	RateBurst  int
	UserAgent  string
	Charset    string
}

// RefreshConfig is the resolved refresh schedule.
type RefreshConfig struct {
	Interval         time.Duration
	Timeout          time.Duration
	BreakerThreshold int
	BreakerReset     time.Duration
}

// APIConfig is the resolved HTTP API configuration.
type APIConfig struct {
	Listen           string
	Token            string
	Anonymous        bool
	RateLimit        int
	RefreshRateLimit int
}

// MetricsConfig is the resolved metrics listener configuration.
type MetricsConfig struct {
	Enabled bool
	Listen  string
}

// StoreConfig is the resolved history backend.
type StoreConfig struct {
	Backend string
}

// CacheConfig is the resolved snapshot cache configuration.
type CacheConfig struct {
	Backend string
	TTL     time.Duration
	Redis   RedisConfig
}

// RedisConfig is the resolved Redis connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// HassConfig is the resolved Home Assistant publisher configuration.
// An empty URL disables publishing.
type HassConfig struct {
	URL     string
	Token   string
	EntryID string
	Timeout time.Duration
}

// Enabled reports whether publishing to Home Assistant is configured.
func (h HassConfig) Enabled() bool { return h.URL != "" }

// TelemetryConfig is the resolved tracing configuration.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
	Environment  string
}
