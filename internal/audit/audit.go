// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package audit provides structured audit logging for security-sensitive operations.
// It follows the WHO/WHAT/WHEN pattern for compliance and forensics.
package audit

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/zkhbridge/internal/log"
	"github.com/rs/zerolog"
)

// EventType represents the type of audit event.
type EventType string

const (
	// Configuration events
	EventConfigReload      EventType = "config.reload"
	EventConfigReloadError EventType = "config.reload.error"

	// Manual refresh events
	EventRefreshRequested EventType = "refresh.requested"
	EventRefreshSuccess   EventType = "refresh.success"
	EventRefreshError     EventType = "refresh.error"

	// Authentication events
	EventAuthFailure EventType = "auth.failure"
	EventAuthMissing EventType = "auth.missing"
)

// Event represents a structured audit event.
type Event struct {
	Timestamp  time.Time
	Type       EventType
	Actor      string // WHO: client address or "system"
	Action     string // WHAT: human-readable action
	Resource   string // endpoint or config file
	Result     string // success, failure, denied
	RemoteAddr string
	UserAgent  string
	RequestID  string
	Details    map[string]string
}

// Logger writes audit events. A nil *Logger discards everything.
type Logger struct {
	logger zerolog.Logger
	now    func() time.Time
}

// NewLogger creates an audit logger on the "audit" component.
func NewLogger() *Logger {
	return New(log.WithComponent("audit"))
}

// New wraps an existing zerolog logger.
func New(l zerolog.Logger) *Logger {
	return &Logger{
		logger: l.With().Str("log_type", "audit").Logger(),
		now:    time.Now,
	}
}

// Log writes an audit event.
func (l *Logger) Log(event Event) {
	if l == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}

	ev := l.logger.Info().
		Time("timestamp", event.Timestamp).
		Str(log.FieldEvent, string(event.Type)).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("resource", event.Resource).
		Str("result", event.Result)

	if event.RemoteAddr != "" {
		ev.Str("remote_addr", event.RemoteAddr)
	}
	if event.UserAgent != "" {
		ev.Str("user_agent", event.UserAgent)
	}
	if event.RequestID != "" {
		ev.Str(log.FieldRequestID, event.RequestID)
	}
	for key, value := range event.Details {
		ev.Str(key, value)
	}

	ev.Msg("audit event")
}

// LogRequest fills the client fields of event from r and logs it.
func (l *Logger) LogRequest(r *http.Request, event Event) {
	if l == nil {
		return
	}
	addr := clientAddr(r)
	if event.RemoteAddr == "" {
		event.RemoteAddr = addr
	}
	if event.Actor == "" {
		event.Actor = addr
	}
	if event.UserAgent == "" {
		event.UserAgent = r.UserAgent()
	}
	if event.RequestID == "" {
		event.RequestID = log.RequestIDFromContext(r.Context())
	}
	if event.Resource == "" {
		event.Resource = r.URL.Path
	}
	l.Log(event)
}

// ConfigReload logs an applied configuration.
func (l *Logger) ConfigReload(actor string, details map[string]string) {
	l.Log(Event{
		Type:     EventConfigReload,
		Actor:    actor,
		Action:   "reloaded configuration",
		Resource: "config",
		Result:   "success",
		Details:  details,
	})
}

// ConfigReloadError logs a rejected configuration reload.
func (l *Logger) ConfigReloadError(actor string, err error) {
	l.Log(Event{
		Type:     EventConfigReloadError,
		Actor:    actor,
		Action:   "configuration reload failed",
		Resource: "config",
		Result:   "failure",
		Details:  map[string]string{"error": errString(err)},
	})
}

// RefreshRequested logs a manual refresh issued through the API.
func (l *Logger) RefreshRequested(r *http.Request) {
	l.LogRequest(r, Event{
		Type:   EventRefreshRequested,
		Action: "requested manual refresh",
		Result: "started",
	})
}

// RefreshComplete logs a successful manual refresh.
func (l *Logger) RefreshComplete(r *http.Request, meters, tariffs int, took time.Duration) {
	l.LogRequest(r, Event{
		Type:   EventRefreshSuccess,
		Action: "completed manual refresh",
		Result: "success",
		Details: map[string]string{
			"meters":      strconv.Itoa(meters),
			"tariffs":     strconv.Itoa(tariffs),
			"duration_ms": strconv.FormatInt(took.Milliseconds(), 10),
		},
	})
}

// RefreshError logs a manual refresh that was rejected or failed.
func (l *Logger) RefreshError(r *http.Request, stage string, err error) {
	details := map[string]string{"error": errString(err)}
	if stage != "" {
		details["stage"] = stage
	}
	l.LogRequest(r, Event{
		Type:    EventRefreshError,
		Action:  "manual refresh failed",
		Result:  "failure",
		Details: details,
	})
}

// AuthFailure logs a request carrying a rejected token, or any request
// denied because no token is configured.
func (l *Logger) AuthFailure(r *http.Request, reason string) {
	l.LogRequest(r, Event{
		Type:    EventAuthFailure,
		Action:  "authentication failed",
		Result:  "denied",
		Details: map[string]string{"reason": reason},
	})
}

// AuthMissing logs a request without credentials.
func (l *Logger) AuthMissing(r *http.Request) {
	l.LogRequest(r, Event{
		Type:   EventAuthMissing,
		Action: "accessed endpoint without authentication",
		Result: "denied",
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
