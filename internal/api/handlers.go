// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ManuGH/zkhbridge/internal/hass"
	"github.com/ManuGH/zkhbridge/internal/jobs"
	"github.com/ManuGH/zkhbridge/internal/log"
	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/ManuGH/zkhbridge/internal/resilience"
	"github.com/ManuGH/zkhbridge/internal/store"
	"github.com/go-chi/chi/v5"
)

const (
	retryNoData       = 30 * time.Second
	retryInProgress   = 10 * time.Second
	retryCircuitOpen  = time.Minute
	msgNoSnapshot     = "no data fetched yet"
	msgHistoryMissing = "history store not configured"
)

type statusResponse struct {
	Version       string      `json:"version"`
	Refresh       jobs.Status `json:"refresh"`
	HasSnapshot   bool        `json:"has_snapshot"`
	SnapshotDate  model.Date  `json:"snapshot_date"`
	FetchedAt     *time.Time  `json:"fetched_at,omitempty"`
	StreamClients int         `json:"stream_clients"`
}

type meterList struct {
	Date      model.Date    `json:"date"`
	FetchedAt time.Time     `json:"fetched_at"`
	Meters    []model.Meter `json:"meters"`
}

type tariffList struct {
	FetchedAt time.Time      `json:"fetched_at"`
	Tariffs   []model.Tariff `json:"tariffs"`
}

type meterHistory struct {
	Key      string          `json:"key"`
	Limit    int             `json:"limit"`
	Readings []model.Reading `json:"readings"`
}

type tariffHistory struct {
	Key    string              `json:"key"`
	Limit  int                 `json:"limit"`
	Points []model.TariffPoint `json:"points"`
}

type refreshResponse struct {
	Status  string     `json:"status"`
	Date    model.Date `json:"date"`
	Meters  int        `json:"meters"`
	Tariffs int        `json:"tariffs"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Version: s.version,
		Refresh: s.refresher.Status(),
	}
	if snap, ok := s.refresher.Snapshot(); ok {
		resp.HasSnapshot = true
		resp.SnapshotDate = snap.Date
		fetched := snap.FetchedAt
		resp.FetchedAt = &fetched
	}
	if s.hub != nil {
		resp.StreamClients = s.hub.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}

// currentSnapshot writes a 503 and reports false until the first refresh
// has succeeded.
func (s *Server) currentSnapshot(w http.ResponseWriter) (model.Snapshot, bool) {
	snap, ok := s.refresher.Snapshot()
	if !ok {
		setRetryAfter(w, retryNoData)
		writeError(w, http.StatusServiceUnavailable, msgNoSnapshot)
	}
	return snap, ok
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleMeters(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}
	resp := meterList{Date: snap.Date, FetchedAt: snap.FetchedAt, Meters: make([]model.Meter, 0, len(snap.Meters))}
	for _, key := range snap.MeterKeys() {
		resp.Meters = append(resp.Meters, snap.Meters[key])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMeter(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	m, found := snap.Meters[key]
	if !found {
		writeError(w, http.StatusNotFound, "meter not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleTariffs(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}
	resp := tariffList{FetchedAt: snap.FetchedAt, Tariffs: make([]model.Tariff, 0, len(snap.Tariffs))}
	for _, key := range snap.TariffKeys() {
		resp.Tariffs = append(resp.Tariffs, snap.Tariffs[key])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTariff(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	t, found := snap.Tariffs[key]
	if !found {
		writeError(w, http.StatusNotFound, "tariff not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleMeterHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, msgHistoryMissing)
		return
	}
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	readings, err := s.history.MeterHistory(r.Context(), key, limit)
	if err != nil {
		s.historyFailed(w, r, key, err)
		return
	}
	if readings == nil {
		readings = []model.Reading{}
	}
	writeJSON(w, http.StatusOK, meterHistory{Key: key, Limit: limit, Readings: readings})
}

func (s *Server) handleTariffHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, msgHistoryMissing)
		return
	}
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	points, err := s.history.TariffHistory(r.Context(), key, limit)
	if err != nil {
		s.historyFailed(w, r, key, err)
		return
	}
	if points == nil {
		points = []model.TariffPoint{}
	}
	writeJSON(w, http.StatusOK, tariffHistory{Key: key, Limit: limit, Points: points})
}

func (s *Server) historyFailed(w http.ResponseWriter, r *http.Request, key string, err error) {
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Error().Err(err).
		Str(log.FieldEvent, "history.query_failed").
		Str("key", key).
		Msg("history query failed")
	writeError(w, http.StatusInternalServerError, "history query failed")
}

func (s *Server) handleSensors(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, hass.Entities(s.entryID, snap))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")
	s.audit.RefreshRequested(r)
	started := time.Now()

	snap, err := s.refresher.TryRefresh(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, jobs.ErrRefreshInProgress):
		s.audit.RefreshError(r, "", err)
		setRetryAfter(w, retryInProgress)
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, resilience.ErrCircuitOpen):
		s.audit.RefreshError(r, "", err)
		setRetryAfter(w, retryCircuitOpen)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case r.Context().Err() != nil:
		// client went away; the run continues in the background
		return
	default:
		resp := errorResponse{Error: err.Error()}
		var se *jobs.StageError
		if errors.As(err, &se) {
			resp.Stage = se.Stage
		}
		logger.Warn().Err(err).
			Str(log.FieldEvent, "refresh.manual_failed").
			Str(log.FieldStage, resp.Stage).
			Msg("manual refresh failed")
		s.audit.RefreshError(r, resp.Stage, err)
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	logger.Info().
		Str(log.FieldEvent, "refresh.manual_ok").
		Int(log.FieldMeters, len(snap.Meters)).
		Int(log.FieldTariffs, len(snap.Tariffs)).
		Msg("manual refresh completed")
	s.audit.RefreshComplete(r, len(snap.Meters), len(snap.Tariffs), time.Since(started))
	writeJSON(w, http.StatusOK, refreshResponse{
		Status:  "ok",
		Date:    snap.Date,
		Meters:  len(snap.Meters),
		Tariffs: len(snap.Tariffs),
	})
}

// pathKey returns the decoded {key} URL parameter. Tariff keys are
// portal names and may arrive percent-encoded. chi matches against
// RawPath when it is set, so only then is the parameter still escaped.
func pathKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid key")
			return "", false
		}
		key = unescaped
	}
	if key == "" {
		writeError(w, http.StatusBadRequest, "invalid key")
		return "", false
	}
	return key, true
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return store.DefaultHistoryLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return store.ClampLimit(n), true
}
