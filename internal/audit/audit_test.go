// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuGH/zkhbridge/internal/log"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return New(zerolog.New(&buf)), &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var m map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &m))
	return m
}

func TestLogger_Log(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Log(Event{
		Type:       EventConfigReload,
		Actor:      "system",
		Action:     "reloaded configuration",
		Resource:   "config.yaml",
		Result:     "success",
		RemoteAddr: "192.168.1.100",
		RequestID:  "req-123",
		Details:    map[string]string{"changes": "3"},
	})

	m := lastLine(t, buf)
	assert.Equal(t, "audit", m["log_type"])
	assert.Equal(t, "config.reload", m[log.FieldEvent])
	assert.Equal(t, "system", m["actor"])
	assert.Equal(t, "192.168.1.100", m["remote_addr"])
	assert.Equal(t, "req-123", m[log.FieldRequestID])
	assert.Equal(t, "3", m["changes"])
	assert.NotEmpty(t, m["timestamp"])
	assert.NotContains(t, m, "user_agent")
}

func TestLogger_NilIsNoop(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Log(Event{Type: EventAuthMissing})
		l.AuthMissing(httptest.NewRequest("GET", "/api/v1/status", nil))
	})
}

func TestLogger_LogRequest(t *testing.T) {
	l, buf := newTestLogger(t)

	req := httptest.NewRequest("GET", "/api/v1/meters", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("User-Agent", "curl/8.0")
	req = req.WithContext(log.ContextWithRequestID(req.Context(), "req-456"))

	l.AuthFailure(req, "invalid token")

	m := lastLine(t, buf)
	assert.Equal(t, "auth.failure", m[log.FieldEvent])
	assert.Equal(t, "10.0.0.1", m["actor"])
	assert.Equal(t, "10.0.0.1", m["remote_addr"])
	assert.Equal(t, "curl/8.0", m["user_agent"])
	assert.Equal(t, "req-456", m[log.FieldRequestID])
	assert.Equal(t, "/api/v1/meters", m["resource"])
	assert.Equal(t, "denied", m["result"])
	assert.Equal(t, "invalid token", m["reason"])
}

func TestLogger_Refresh(t *testing.T) {
	l, buf := newTestLogger(t)
	req := httptest.NewRequest("POST", "/api/v1/refresh", nil)

	l.RefreshRequested(req)
	assert.Equal(t, "refresh.requested", lastLine(t, buf)[log.FieldEvent])

	l.RefreshComplete(req, 3, 5, 1500*time.Millisecond)
	m := lastLine(t, buf)
	assert.Equal(t, "refresh.success", m[log.FieldEvent])
	assert.Equal(t, "3", m["meters"])
	assert.Equal(t, "5", m["tariffs"])
	assert.Equal(t, "1500", m["duration_ms"])

	l.RefreshError(req, "login", errors.New("invalid credentials"))
	m = lastLine(t, buf)
	assert.Equal(t, "refresh.error", m[log.FieldEvent])
	assert.Equal(t, "login", m["stage"])
	assert.Equal(t, "invalid credentials", m["error"])

	l.RefreshError(req, "", errors.New("busy"))
	assert.NotContains(t, lastLine(t, buf), "stage")
}

func TestLogger_ConfigReload(t *testing.T) {
	l, buf := newTestLogger(t)

	l.ConfigReload("system", map[string]string{"log_level": "debug"})
	m := lastLine(t, buf)
	assert.Equal(t, "config.reload", m[log.FieldEvent])
	assert.Equal(t, "debug", m["log_level"])

	l.ConfigReloadError("SIGHUP", errors.New("bad yaml"))
	m = lastLine(t, buf)
	assert.Equal(t, "config.reload.error", m[log.FieldEvent])
	assert.Equal(t, "SIGHUP", m["actor"])
	assert.Equal(t, "failure", m["result"])
	assert.Equal(t, "bad yaml", m["error"])
}
