// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/zkhbridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(context.Context) CheckResult { return CheckResult{Status: m.status} }

func TestManager_Health_NoCheckers(t *testing.T) {
	m := NewManager("v1.0.0")

	resp := m.Health(context.Background(), true)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.GreaterOrEqual(t, resp.Uptime, int64(0))
	assert.Nil(t, resp.Checks)
}

func TestManager_Health_WithCheckers(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "healthy", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestManager_Ready(t *testing.T) {
	m := NewManager("v")
	assert.True(t, m.Ready(context.Background()).Ready)

	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})
	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)

	m.RegisterChecker(&mockChecker{name: "down", status: StatusUnhealthy})
	resp = m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestManager_ServeEndpoints(t *testing.T) {
	m := NewManager("v")
	m.RegisterChecker(&mockChecker{name: "down", status: StatusUnhealthy})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Checks["down"].Status)
}

func TestLastRunChecker(t *testing.T) {
	now := time.Date(2025, 9, 26, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		success time.Time
		lastErr string
		want    Status
	}{
		{"never", time.Time{}, "", StatusUnhealthy},
		{"never with error", time.Time{}, "login: rejected", StatusUnhealthy},
		{"fresh", now.Add(-time.Hour), "", StatusHealthy},
		{"failed since", now.Add(-time.Hour), "meters: timeout", StatusDegraded},
		{"stale", now.Add(-30 * time.Hour), "", StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLastRunChecker(func() (time.Time, string) { return tt.success, tt.lastErr }, 24*time.Hour)
			c.now = func() time.Time { return now }
			assert.Equal(t, tt.want, c.Check(context.Background()).Status)
		})
	}
}

func TestDirChecker(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, StatusHealthy, NewDirChecker("data", dir).Check(context.Background()).Status)

	res := NewDirChecker("data", filepath.Join(dir, "missing")).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Contains(t, res.Error, "does not exist")

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	assert.Equal(t, StatusUnhealthy, NewDirChecker("data", file).Check(context.Background()).Status)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "check file removed")
}

func TestFileChecker(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, StatusHealthy, NewFileChecker("cfg", "").Check(context.Background()).Status)
	assert.Equal(t, StatusUnhealthy, NewFileChecker("cfg", filepath.Join(dir, "nope")).Check(context.Background()).Status)
	assert.Equal(t, StatusUnhealthy, NewFileChecker("cfg", dir).Check(context.Background()).Status)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	assert.Equal(t, StatusDegraded, NewFileChecker("cfg", empty).Check(context.Background()).Status)

	full := filepath.Join(dir, "full.yaml")
	require.NoError(t, os.WriteFile(full, []byte("a: 1"), 0o600))
	assert.Equal(t, StatusHealthy, NewFileChecker("cfg", full).Check(context.Background()).Status)
}

func TestFuncChecker(t *testing.T) {
	boom := func(context.Context) error { return errors.New("boom") }
	ok := func(context.Context) error { return nil }

	assert.Equal(t, StatusUnhealthy, NewFuncChecker("store", boom).Check(context.Background()).Status)
	assert.Equal(t, StatusDegraded, NewOptionalChecker("redis", boom).Check(context.Background()).Status)
	assert.Equal(t, StatusHealthy, NewOptionalChecker("redis", ok).Check(context.Background()).Status)
}

func TestManager_CheckTimeout(t *testing.T) {
	m := NewManager("v")
	m.checkTimeout = 20 * time.Millisecond
	m.RegisterChecker(NewFuncChecker("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Contains(t, resp.Checks["slow"].Error, "deadline")
}

func TestPerformStartupChecks(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	assert.NoError(t, PerformStartupChecks(context.Background(), cfg))

	cfg.DataDir = filepath.Join(cfg.DataDir, "missing")
	assert.Error(t, PerformStartupChecks(context.Background(), cfg))
}
