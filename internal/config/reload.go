// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	zkhlog "github.com/ManuGH/zkhbridge/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 500 * time.Millisecond

// Holder holds configuration with atomic reloading capability.
// It provides thread-safe access and reloads from file on change or on demand.
type Holder struct {
	mu         sync.RWMutex
	current    AppConfig
	loader     *Loader
	configPath string
	logger     zerolog.Logger
	debounce   time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}

	reloadMu        sync.RWMutex
	reloadListeners []chan<- AppConfig
}

// NewHolder creates a holder with an already loaded initial config.
func NewHolder(initial AppConfig, loader *Loader) *Holder {
	return &Holder{
		current:    initial,
		loader:     loader,
		configPath: loader.Path(),
		logger:     zkhlog.WithComponent("config"),
		debounce:   defaultDebounce,
	}
}

// Get returns the current configuration.
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload loads and validates the configuration again. On failure the old
// configuration stays active and the error is returned.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str(zkhlog.FieldEvent, "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str(zkhlog.FieldEvent, "config.reload_failed").
			Msg("new configuration rejected, keeping current one")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.current
	h.current = newCfg
	h.mu.Unlock()

	h.logChanges(oldCfg, newCfg)
	h.notifyListeners(newCfg)

	h.logger.Info().
		Str(zkhlog.FieldEvent, "config.reload_success").
		Msg("configuration reloaded successfully")
	return nil
}

// StartWatcher watches the config file for changes until ctx is done or Stop
// is called. Without a config file it is a no-op.
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().
			Str(zkhlog.FieldEvent, "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Editors replace the file by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(h.configPath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	h.watcher = watcher
	h.done = make(chan struct{})

	h.logger.Info().
		Str(zkhlog.FieldEvent, "config.watcher_started").
		Str(zkhlog.FieldPath, h.configPath).
		Msg("watching config file for changes")

	go h.watchLoop(ctx)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context) {
	defer close(h.done)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()
	target := filepath.Clean(h.configPath)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(zkhlog.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			_ = h.watcher.Close()
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().
				Str(zkhlog.FieldEvent, "config.file_changed").
				Str("op", event.Op.String()).
				Msg("config file changed")

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(h.debounce, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().
						Err(err).
						Str(zkhlog.FieldEvent, "config.auto_reload_failed").
						Msg("automatic config reload failed")
				}
			})

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str(zkhlog.FieldEvent, "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Stop stops the watcher and waits for its goroutine.
func (h *Holder) Stop() {
	if h.watcher == nil {
		return
	}
	_ = h.watcher.Close()
	<-h.done
}

// RegisterListener registers a channel that receives every successfully
// reloaded configuration. Sends never block; the caller owns the channel.
func (h *Holder) RegisterListener(ch chan<- AppConfig) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

func (h *Holder) notifyListeners(newCfg AppConfig) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()

	for _, ch := range h.reloadListeners {
		select {
		case ch <- newCfg:
		default:
			h.logger.Warn().
				Str(zkhlog.FieldEvent, "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

func (h *Holder) logChanges(old, newCfg AppConfig) {
	for _, c := range Diff(old, newCfg) {
		h.logger.Info().
			Str(zkhlog.FieldEvent, "config.changed").
			Str("field", c.Field).
			Str("old", c.Old).
			Str("new", c.New).
			Bool("restart_required", c.RestartRequired).
			Msg("config changed")
	}
}
