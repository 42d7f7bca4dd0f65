// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns server settings for listen. The write
// timeout must outlast a synchronous manual refresh.
func DefaultServerConfig(listen string, refreshTimeout time.Duration) ServerConfig {
	return ServerConfig{
		ListenAddr:      listen,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    refreshTimeout + 30*time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// APIHandler is the HTTP handler for the API server
	APIHandler http.Handler

	// MetricsHandler is the HTTP handler for Prometheus metrics (if enabled)
	MetricsHandler http.Handler

	// MetricsAddr is the metrics listen address; empty disables the server
	MetricsAddr string
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
