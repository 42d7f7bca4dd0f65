// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// Manager handles configuration persistence.
type Manager struct {
	configPath string
}

// NewManager creates a new configuration manager.
func NewManager(configPath string) *Manager {
	return &Manager{configPath: configPath}
}

// Save writes cfg to disk atomically. Secrets are written as given.
func (m *Manager) Save(cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o750); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	data, err := Marshal(ToFileConfig(cfg))
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(m.configPath, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Marshal encodes a file config as YAML.
func Marshal(fc FileConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fc); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// Redacted returns a copy of cfg with secrets masked.
func Redacted(cfg AppConfig) AppConfig {
	cfg.Portal.Password = mask(cfg.Portal.Password)
	cfg.API.Token = mask(cfg.API.Token)
	cfg.Cache.Redis.Password = mask(cfg.Cache.Redis.Password)
	cfg.Hass.Token = mask(cfg.Hass.Token)
	return cfg
}

// ToFileConfig maps a resolved config back to its YAML form.
func ToFileConfig(cfg AppConfig) FileConfig {
	return FileConfig{
		DataDir:  cfg.DataDir,
		LogLevel: cfg.LogLevel,
		Portal: PortalFileConfig{
			BaseURL:    cfg.Portal.BaseURL,
			Username:   cfg.Portal.Username,
			Password:   cfg.Portal.Password,
			Timezone:   cfg.Portal.Timezone,
			Timeout:    cfg.Portal.Timeout.String(),
			Retries:    intPtr(cfg.Portal.Retries),
			Backoff:    cfg.Portal.Backoff.String(),
			MaxBackoff: cfg.Portal.MaxBackoff.String(),
			RateLimit:  cfg.Portal.RateLimit,
			RateBurst:  cfg.Portal.RateBurst,
			UserAgent:  cfg.Portal.UserAgent,
			Charset:    cfg.Portal.Charset,
		},
		Refresh: RefreshFileConfig{
			Interval:         cfg.Refresh.Interval.String(),
			Timeout:          cfg.Refresh.Timeout.String(),
			BreakerThreshold: cfg.Refresh.BreakerThreshold,
			BreakerReset:     cfg.Refresh.BreakerReset.String(),
		},
		API: APIFileConfig{
			Listen:           cfg.API.Listen,
			Token:            cfg.API.Token,
			Anonymous:        boolPtr(cfg.API.Anonymous),
			RateLimit:        cfg.API.RateLimit,
			RefreshRateLimit: cfg.API.RefreshRateLimit,
		},
		Metrics: MetricsFileConfig{
			Enabled: boolPtr(cfg.Metrics.Enabled),
			Listen:  cfg.Metrics.Listen,
		},
		Store: StoreFileConfig{Backend: cfg.Store.Backend},
		Cache: CacheFileConfig{
			Backend: cfg.Cache.Backend,
			TTL:     cfg.Cache.TTL.String(),
			Redis: RedisFileConfig{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
				Prefix:   cfg.Cache.Redis.Prefix,
			},
		},
		Hass: HassFileConfig{
			URL:     cfg.Hass.URL,
			Token:   cfg.Hass.Token,
			EntryID: cfg.Hass.EntryID,
			Timeout: cfg.Hass.Timeout.String(),
		},
		Telemetry: TelemetryFileConfig{
			Enabled:      boolPtr(cfg.Telemetry.Enabled),
			Exporter:     cfg.Telemetry.Exporter,
			Endpoint:     cfg.Telemetry.Endpoint,
			SamplingRate: &cfg.Telemetry.SamplingRate,
			Environment:  cfg.Telemetry.Environment,
		},
	}
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }
