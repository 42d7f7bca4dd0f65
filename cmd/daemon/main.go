// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command zkhbridge runs the ZKHNSO portal bridge.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ManuGH/zkhbridge/internal/config"
	"github.com/ManuGH/zkhbridge/internal/daemon"
	"github.com/ManuGH/zkhbridge/internal/health"
	zkhlog "github.com/ManuGH/zkhbridge/internal/log"
	"github.com/ManuGH/zkhbridge/internal/version"
)

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		case "fetch":
			os.Exit(runFetchCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	zkhlog.Configure(zkhlog.Config{
		Level:   "info",
		Service: daemon.ServiceName,
		Version: version.Version,
	})
	logger := zkhlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	effectiveConfigPath := resolveConfigPath(*configPath)

	loader := config.NewLoader(effectiveConfigPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(zkhlog.FieldEvent, "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	zkhlog.Configure(zkhlog.Config{
		Level:   cfg.LogLevel,
		Service: daemon.ServiceName,
		Version: cfg.Version,
	})
	logger = zkhlog.WithComponent("daemon")

	if effectiveConfigPath != "" {
		logger.Info().
			Str(zkhlog.FieldEvent, "config.loaded").
			Str("source", "file").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str(zkhlog.FieldEvent, "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str(zkhlog.FieldEvent, "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
	}

	logger.Info().
		Str(zkhlog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.API.Listen).
		Msg("starting zkhbridge")

	logger.Info().Msgf("→ Portal: %s (user: %s)", maskURL(cfg.Portal.BaseURL), cfg.Portal.Username)
	logger.Info().Msgf("→ Refresh interval: %s", cfg.Refresh.Interval)
	logger.Info().Msgf("→ Store: %s, cache: %s", cfg.Store.Backend, cfg.Cache.Backend)
	if cfg.Hass.Enabled() {
		logger.Info().Msgf("→ Home Assistant: %s", maskURL(cfg.Hass.URL))
	}
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)

	rt, err := daemon.Build(ctx, daemon.BuildOptions{
		Version: version.Version,
		Holder:  config.NewHolder(cfg, loader),
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(zkhlog.FieldEvent, "bootstrap.failed").
			Msg("failed to build daemon")
	}

	if err := rt.App.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str(zkhlog.FieldEvent, "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Str(zkhlog.FieldEvent, "shutdown.complete").Msg("server exiting")
}

// resolveConfigPath returns explicit when set, otherwise ${ZKH_DATA}/config.yaml
// if that file exists, otherwise "" (env and defaults only).
func resolveConfigPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	dataDir := strings.TrimSpace(config.ParseString(config.EnvDataDir, config.DefaultDataDir))
	if dataDir == "" {
		return ""
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}
