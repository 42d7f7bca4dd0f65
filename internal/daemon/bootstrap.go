// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the bridge components and manages their lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/ManuGH/zkhbridge/internal/api"
	"github.com/ManuGH/zkhbridge/internal/cache"
	"github.com/ManuGH/zkhbridge/internal/config"
	"github.com/ManuGH/zkhbridge/internal/hass"
	"github.com/ManuGH/zkhbridge/internal/health"
	"github.com/ManuGH/zkhbridge/internal/jobs"
	"github.com/ManuGH/zkhbridge/internal/log"
	"github.com/ManuGH/zkhbridge/internal/portal"
	"github.com/ManuGH/zkhbridge/internal/resilience"
	"github.com/ManuGH/zkhbridge/internal/store"
	"github.com/ManuGH/zkhbridge/internal/telemetry"
)

// ServiceName identifies the bridge in traces and logs.
const ServiceName = "zkhbridge"

// BuildOptions configures Build.
type BuildOptions struct {
	Version string
	Holder  *config.Holder
	// PortalHTTPClient overrides the portal transport.
	PortalHTTPClient *http.Client
	// HassHTTPClient overrides the Home Assistant transport.
	HassHTTPClient *http.Client
	// SkipInitialRefresh defers the first portal refresh to the first interval.
	SkipInitialRefresh bool
}

// Runtime bundles the wired components of a bridge process.
type Runtime struct {
	Config      config.AppConfig
	Coordinator *jobs.Coordinator
	Server      *api.Server
	Hub         *api.Hub
	Health      *health.Manager
	Store       store.Store
	Cache       cache.Cache
	Manager     Manager
	App         *App

	hooks []namedHook
}

// PortalClientFactory builds portal sessions from the current portal
// settings of holder, so reloaded settings apply from the next refresh.
func PortalClientFactory(holder *config.Holder, httpClient *http.Client) jobs.ClientFactory {
	return func(creds jobs.Credentials) (jobs.PortalClient, error) {
		p := holder.Get().Portal
		return portal.New(portal.Options{
			BaseURL:        p.BaseURL,
			Username:       creds.Username,
			Password:       creds.Password,
			Timezone:       p.Timezone,
			Timeout:        p.Timeout,
			MaxRetries:     p.Retries,
			Backoff:        p.Backoff,
			MaxBackoff:     p.MaxBackoff,
			RateLimit:      rate.Limit(p.RateLimit),
			RateLimitBurst: p.RateBurst,
			UserAgent:      p.UserAgent,
			Charset:        p.Charset,
			HTTPClient:     httpClient,
		})
	}
}

// Build wires every component for the configuration held by opts.Holder.
// Resources opened before a failure are released.
func Build(ctx context.Context, opts BuildOptions) (rt *Runtime, err error) {
	if opts.Holder == nil {
		return nil, errors.New("config holder is required")
	}
	cfg := opts.Holder.Get()
	logger := log.WithComponent("daemon")

	var cleanups []func(context.Context) error
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanups) - 1; i >= 0; i-- {
			_ = cleanups[i](context.WithoutCancel(ctx))
		}
	}()

	tracer, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    ServiceName,
		ServiceVersion: opts.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	cleanups = append(cleanups, tracer.Shutdown)

	st, err := store.Open(ctx, cfg.Store.Backend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	cleanups = append(cleanups, func(context.Context) error { return st.Close() })

	snapCache, err := cache.New(ctx, cfg.Cache.Backend, cache.RedisConfig{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	}, log.WithComponent("cache"))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	cleanups = append(cleanups, func(context.Context) error { return snapCache.Close() })

	snapshotPath := filepath.Join(cfg.DataDir, jobs.SnapshotFileName)
	coord := jobs.NewCoordinator(jobs.CoordinatorOptions{
		NewClient: PortalClientFactory(opts.Holder, opts.PortalHTTPClient),
		Credentials: jobs.Credentials{
			Username: cfg.Portal.Username,
			Password: cfg.Portal.Password,
		},
		Interval:       cfg.Refresh.Interval,
		RefreshTimeout: cfg.Refresh.Timeout,
		Breaker:        resilience.NewCircuitBreaker("portal", cfg.Refresh.BreakerThreshold, cfg.Refresh.BreakerReset),
		Cache:          snapCache,
		SnapshotPath:   snapshotPath,
		SkipInitial:    opts.SkipInitialRefresh,
		Sinks: []jobs.Sink{
			jobs.StoreSink(st),
			jobs.CacheSink(snapCache, cfg.Cache.TTL),
			jobs.FileSink(snapshotPath),
		},
	})

	if cfg.Hass.Enabled() {
		publisher, perr := hass.NewPublisher(hass.PublisherOptions{
			BaseURL:    cfg.Hass.URL,
			Token:      cfg.Hass.Token,
			Timeout:    cfg.Hass.Timeout,
			HTTPClient: opts.HassHTTPClient,
		})
		if perr != nil {
			return nil, fmt.Errorf("home assistant publisher: %w", perr)
		}
		coord.AddSink(jobs.HassSink(publisher, cfg.Hass.EntryID))
		logger.Info().
			Str(log.FieldEvent, "hass.enabled").
			Str(log.FieldURL, cfg.Hass.URL).
			Msg("publishing sensor states to Home Assistant")
	}

	hub := api.NewHub(coord.Snapshot)
	coord.AddSink(hub)

	hm := health.NewManager(opts.Version)
	hm.RegisterChecker(health.NewLastRunChecker(func() (lastSuccess time.Time, lastError string) {
		s := coord.Status()
		return s.LastSuccess, s.LastError
	}, 2*cfg.Refresh.Interval+cfg.Refresh.Timeout))
	hm.RegisterChecker(health.NewDirChecker("data_dir", cfg.DataDir))
	if chk, ok := st.(store.Checker); ok {
		hm.RegisterChecker(health.NewFuncChecker("store", chk.Check))
	}
	if pinger, ok := snapCache.(interface{ HealthCheck(context.Context) error }); ok {
		hm.RegisterChecker(health.NewOptionalChecker("cache", pinger.HealthCheck))
	}

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = ServiceName
	}
	server := api.New(api.Options{
		Refresher:        coord,
		History:          st,
		Health:           hm,
		Hub:              hub,
		EntryID:          cfg.Hass.EntryID,
		Version:          opts.Version,
		Token:            cfg.API.Token,
		Anonymous:        cfg.API.Anonymous,
		RateLimit:        cfg.API.RateLimit,
		RefreshRateLimit: cfg.API.RefreshRateLimit,
		TracingService:   tracingService,
	})

	deps := Deps{
		Logger:     logger,
		APIHandler: server.Handler(),
	}
	if cfg.Metrics.Enabled {
		deps.MetricsHandler = promhttp.Handler()
		deps.MetricsAddr = cfg.Metrics.Listen
	}
	mgr, err := NewManager(DefaultServerConfig(cfg.API.Listen, cfg.Refresh.Timeout), deps)
	if err != nil {
		return nil, err
	}

	// LIFO: the coordinator stops first, telemetry flushes last.
	hooks := []namedHook{
		{name: "telemetry", hook: tracer.Shutdown},
		{name: "store", hook: func(context.Context) error { return st.Close() }},
		{name: "cache", hook: func(context.Context) error { return snapCache.Close() }},
		{name: "stream", hook: func(context.Context) error {
			hub.Close()
			return nil
		}},
		{name: "coordinator", hook: coord.Stop},
	}
	for _, h := range hooks {
		mgr.RegisterShutdownHook(h.name, h.hook)
	}

	return &Runtime{
		Config:      cfg,
		Coordinator: coord,
		Server:      server,
		Hub:         hub,
		Health:      hm,
		Store:       st,
		Cache:       snapCache,
		Manager:     mgr,
		App:         NewApp(logger, mgr, opts.Holder, coord, server),
		hooks:       hooks,
	}, nil
}

// Close releases every component for runtimes whose manager never
// started, such as one-shot fetches.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.hooks) - 1; i >= 0; i-- {
		if err := rt.hooks[i].hook(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rt.hooks[i].name, err))
		}
	}
	return errors.Join(errs...)
}
