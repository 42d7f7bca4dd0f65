// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api provides the HTTP API of the bridge.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/ManuGH/zkhbridge/internal/audit"
	"github.com/ManuGH/zkhbridge/internal/health"
	"github.com/ManuGH/zkhbridge/internal/jobs"
	"github.com/ManuGH/zkhbridge/internal/model"
)

// Refresher is the coordinator as seen by the API.
type Refresher interface {
	Snapshot() (model.Snapshot, bool)
	Status() jobs.Status
	TryRefresh(ctx context.Context) (*model.Snapshot, error)
}

// HistoryReader serves stored readings.
type HistoryReader interface {
	MeterHistory(ctx context.Context, key string, limit int) ([]model.Reading, error)
	TariffHistory(ctx context.Context, key string, limit int) ([]model.TariffPoint, error)
}

// Options configures a Server.
type Options struct {
	Refresher Refresher
	History   HistoryReader
	Health    *health.Manager
	Hub       *Hub
	// EntryID prefixes Home Assistant unique ids.
	EntryID string
	Version string

	Token     string
	Anonymous bool

	// Requests per minute per client IP.
	RateLimit        int
	RefreshRateLimit int
	// TracingService enables otelhttp spans when set.
	TracingService string
	// Audit receives auth and manual refresh events. Defaults to the
	// "audit" component logger.
	Audit *audit.Logger
}

// Server represents the HTTP API server.
type Server struct {
	mu        sync.RWMutex
	token     string
	anonymous bool

	refresher Refresher
	history   HistoryReader
	health    *health.Manager
	hub       *Hub
	entryID   string
	version   string
	audit     *audit.Logger

	handler http.Handler
}

// New builds the server and its routes.
func New(opts Options) *Server {
	if opts.Health == nil {
		opts.Health = health.NewManager(opts.Version)
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewLogger()
	}
	if opts.RefreshRateLimit <= 0 {
		opts.RefreshRateLimit = 6
	}
	s := &Server{
		token:     opts.Token,
		anonymous: opts.Anonymous,
		refresher: opts.Refresher,
		history:   opts.History,
		health:    opts.Health,
		hub:       opts.Hub,
		entryID:   opts.EntryID,
		version:   opts.Version,
		audit:     opts.Audit,
	}
	s.handler = s.routes(opts)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// SetAuth swaps the API token settings at runtime.
func (s *Server) SetAuth(token string, anonymous bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.anonymous = anonymous
}

func (s *Server) authSettings() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.anonymous
}
