// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, empty for ENV-only configuration.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults,
// then validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg, err := l.Resolve()
	if err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Resolve merges defaults, file and environment without validating.
func (l *Loader) Resolve() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Portal.BaseURL = strings.TrimSpace(cfg.Portal.BaseURL)
	cfg.Hass.URL = strings.TrimRight(strings.TrimSpace(cfg.Hass.URL), "/")
	cfg.Version = l.version
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields cause an error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile decodes a single strict YAML document.
func ParseFile(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func parseDurationField(field, raw string, dst *time.Duration) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	*dst = d
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) error {
	setString(&cfg.DataDir, f.DataDir)
	setString(&cfg.LogLevel, f.LogLevel)

	p := f.Portal
	setString(&cfg.Portal.BaseURL, p.BaseURL)
	setString(&cfg.Portal.Username, p.Username)
	setString(&cfg.Portal.Password, p.Password)
	setString(&cfg.Portal.Timezone, p.Timezone)
	setString(&cfg.Portal.UserAgent, p.UserAgent)
	setString(&cfg.Portal.Charset, p.Charset)
	if p.Retries != nil {
		cfg.Portal.Retries = *p.Retries
	}
	if p.RateLimit > 0 {
		cfg.Portal.RateLimit = p.RateLimit
	}
	setInt(&cfg.Portal.RateBurst, p.RateBurst)

	setString(&cfg.API.Listen, f.API.Listen)
	setString(&cfg.API.Token, f.API.Token)
	if f.API.Anonymous != nil {
		cfg.API.Anonymous = *f.API.Anonymous
	}
	setInt(&cfg.API.RateLimit, f.API.RateLimit)
	setInt(&cfg.API.RefreshRateLimit, f.API.RefreshRateLimit)

	if f.Metrics.Enabled != nil {
		cfg.Metrics.Enabled = *f.Metrics.Enabled
	}
	setString(&cfg.Metrics.Listen, f.Metrics.Listen)

	setString(&cfg.Store.Backend, f.Store.Backend)

	setString(&cfg.Cache.Backend, f.Cache.Backend)
	setString(&cfg.Cache.Redis.Addr, f.Cache.Redis.Addr)
	setString(&cfg.Cache.Redis.Password, f.Cache.Redis.Password)
	setString(&cfg.Cache.Redis.Prefix, f.Cache.Redis.Prefix)
	setInt(&cfg.Cache.Redis.DB, f.Cache.Redis.DB)

	setString(&cfg.Hass.URL, f.Hass.URL)
	setString(&cfg.Hass.Token, f.Hass.Token)
	setString(&cfg.Hass.EntryID, f.Hass.EntryID)

	t := f.Telemetry
	if t.Enabled != nil {
		cfg.Telemetry.Enabled = *t.Enabled
	}
	setString(&cfg.Telemetry.Exporter, t.Exporter)
	setString(&cfg.Telemetry.Endpoint, t.Endpoint)
	setString(&cfg.Telemetry.Environment, t.Environment)
	if t.SamplingRate != nil {
		cfg.Telemetry.SamplingRate = *t.SamplingRate
	}

	setInt(&cfg.Refresh.BreakerThreshold, f.Refresh.BreakerThreshold)

	return errors.Join(
		parseDurationField("portal.timeout", p.Timeout, &cfg.Portal.Timeout),
		parseDurationField("portal.backoff", p.Backoff, &cfg.Portal.Backoff),
		parseDurationField("portal.maxBackoff", p.MaxBackoff, &cfg.Portal.MaxBackoff),
		parseDurationField("refresh.interval", f.Refresh.Interval, &cfg.Refresh.Interval),
		parseDurationField("refresh.timeout", f.Refresh.Timeout, &cfg.Refresh.Timeout),
		parseDurationField("refresh.breakerReset", f.Refresh.BreakerReset, &cfg.Refresh.BreakerReset),
		parseDurationField("cache.ttl", f.Cache.TTL, &cfg.Cache.TTL),
		parseDurationField("homeAssistant.timeout", f.Hass.Timeout, &cfg.Hass.Timeout),
	)
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = l.envString(EnvDataDir, cfg.DataDir)
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)

	cfg.Portal.BaseURL = l.envString(EnvPortalURL, cfg.Portal.BaseURL)
	cfg.Portal.Username = l.envString(EnvUsername, cfg.Portal.Username)
	cfg.Portal.Password = l.envString(EnvPassword, cfg.Portal.Password)
	cfg.Portal.Timezone = l.envString(EnvTimezone, cfg.Portal.Timezone)
	cfg.Portal.Timeout = l.envDuration(EnvPortalTimeout, cfg.Portal.Timeout)
	cfg.Portal.Retries = l.envInt(EnvPortalRetries, cfg.Portal.Retries)
	cfg.Portal.Charset = l.envString(EnvPortalCharset, cfg.Portal.Charset)

	cfg.Refresh.Interval = l.envDuration(EnvRefreshInterval, cfg.Refresh.Interval)
	cfg.Refresh.Timeout = l.envDuration(EnvRefreshTimeout, cfg.Refresh.Timeout)

	cfg.API.Listen = l.envString(EnvListen, cfg.API.Listen)
	cfg.API.Token = l.envString(EnvAPIToken, cfg.API.Token)
	cfg.API.Anonymous = l.envBool(EnvAPIAnonymous, cfg.API.Anonymous)
	cfg.API.RateLimit = l.envInt(EnvAPIRateLimit, cfg.API.RateLimit)

	cfg.Metrics.Enabled = l.envBool(EnvMetricsEnabled, cfg.Metrics.Enabled)
	cfg.Metrics.Listen = l.envString(EnvMetricsListen, cfg.Metrics.Listen)

	cfg.Store.Backend = l.envString(EnvStoreBackend, cfg.Store.Backend)

	cfg.Cache.Backend = l.envString(EnvCacheBackend, cfg.Cache.Backend)
	cfg.Cache.TTL = l.envDuration(EnvCacheTTL, cfg.Cache.TTL)
	cfg.Cache.Redis.Addr = l.envString(EnvRedisAddr, cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = l.envString(EnvRedisPassword, cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = l.envInt(EnvRedisDB, cfg.Cache.Redis.DB)

	cfg.Hass.URL = l.envString(EnvHassURL, cfg.Hass.URL)
	cfg.Hass.Token = l.envString(EnvHassToken, cfg.Hass.Token)
	cfg.Hass.EntryID = l.envString(EnvHassEntryID, cfg.Hass.EntryID)

	cfg.Telemetry.Enabled = l.envBool(EnvTelemetryEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvOTLPExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvOTLPEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvOTLPSampling, cfg.Telemetry.SamplingRate)
}
