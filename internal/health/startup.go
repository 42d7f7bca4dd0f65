// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ManuGH/zkhbridge/internal/config"
	"github.com/ManuGH/zkhbridge/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment before the daemon starts.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Str("event", "startup.checks").Msg("running pre-flight startup checks")

	if err := checkWritableDir(cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	logger.Info().Str("path", cfg.DataDir).Msg("data directory is writable")

	if err := checkTargetedValidations(logger, cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info().Str("event", "startup.checks_passed").Msg("all startup checks passed")
	return nil
}

// checkTargetedValidations covers security-relevant settings.
func checkTargetedValidations(logger zerolog.Logger, cfg config.AppConfig) error {
	u, err := url.Parse(cfg.Portal.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid portal url: %w", err)
	}
	if u.Scheme != "https" {
		logger.Warn().
			Str("url", cfg.Portal.BaseURL).
			Msg("portal url is not https, credentials are sent in clear text")
	}

	if strings.TrimSpace(cfg.API.Token) == "" {
		if !cfg.API.Anonymous {
			logger.Warn().
				Str("event", "startup.api_locked").
				Msg("api.token is empty and api.anonymous is false, /api/v1 will reject every request")
		} else {
			logger.Warn().
				Str("event", "startup.api_anonymous").
				Msg("api is running without authentication")
		}
	}

	if cfg.Hass.Enabled() && strings.HasPrefix(cfg.Hass.URL, "http://") {
		logger.Info().Msg("home assistant url is plain http")
	}
	return nil
}
