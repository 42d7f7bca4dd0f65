// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/zkhbridge/internal/audit"
	"github.com/ManuGH/zkhbridge/internal/config"
	"github.com/ManuGH/zkhbridge/internal/jobs"
	"github.com/ManuGH/zkhbridge/internal/log"
	"github.com/rs/zerolog"
)

// Coordinator is the part of jobs.Coordinator the app drives.
type Coordinator interface {
	Start(ctx context.Context) error
	SetInterval(d time.Duration)
	SetCredentials(creds jobs.Credentials)
}

// AuthSetter receives API token changes.
type AuthSetter interface {
	SetAuth(token string, anonymous bool)
}

// App owns the long-lived runtime lifecycle (config watcher, reload wiring,
// refresh scheduling) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.Holder
	coordinator  Coordinator
	auth         AuthSetter
	audit        *audit.Logger
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. cfgHolder and auth may be nil.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.Holder, coordinator Coordinator, auth AuthSetter) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		coordinator:  coordinator,
		auth:         auth,
		audit:        audit.NewLogger(),
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.coordinator == nil {
		return ErrMissingCoordinator
	}

	g, ctx := errgroup.WithContext(ctx)

	// The watcher is best-effort; SIGHUP still reloads without it.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
		defer a.cfgHolder.Stop()

		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apply(cfg)
				}
			}
		})
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(log.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str(log.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
						a.audit.ConfigReloadError(a.reloadSignal.String(), err)
					}
				}
			}
		})
	}

	if err := a.coordinator.Start(ctx); err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

// apply pushes the hot-reloadable settings of cfg into the running
// components. Portal connection settings are read per refresh and need
// no push.
func (a *App) apply(cfg config.AppConfig) {
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		a.logger.Warn().Err(err).Str(log.FieldEvent, "config.log_level_invalid").Msg("ignoring log level")
	}
	a.coordinator.SetInterval(cfg.Refresh.Interval)
	a.coordinator.SetCredentials(jobs.Credentials{
		Username: cfg.Portal.Username,
		Password: cfg.Portal.Password,
	})
	if a.auth != nil {
		a.auth.SetAuth(cfg.API.Token, cfg.API.Anonymous)
	}
	a.logger.Info().Str(log.FieldEvent, "config.applied").Msg("applied reloaded configuration")
	a.audit.ConfigReload("system", map[string]string{
		"log_level":        cfg.LogLevel,
		"refresh_interval": cfg.Refresh.Interval.String(),
		"portal_user":      cfg.Portal.Username,
	})
}
