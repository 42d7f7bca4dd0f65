// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/ManuGH/zkhbridge/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

func (s *Server) routes(opts Options) http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        opts.TracingService,
		EnableLogging:         true,
		RateLimitPerMinute:    opts.RateLimit,
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware(false))

			r.Get("/status", s.handleStatus)
			r.Get("/snapshot", s.handleSnapshot)
			r.Get("/meters", s.handleMeters)
			r.Get("/meters/{key}", s.handleMeter)
			r.Get("/meters/{key}/history", s.handleMeterHistory)
			r.Get("/tariffs", s.handleTariffs)
			r.Get("/tariffs/{key}", s.handleTariff)
			r.Get("/tariffs/{key}/history", s.handleTariffHistory)
			r.Get("/sensors", s.handleSensors)
			r.With(middleware.RefreshRateLimit(opts.RefreshRateLimit)).Post("/refresh", s.handleRefresh)
		})

		if s.hub != nil {
			// Browsers cannot set headers on websocket requests.
			r.With(s.authMiddleware(true)).Get("/stream", s.hub.ServeHTTP)
		}
	})

	return r
}
