// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"time"

	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/ManuGH/zkhbridge/internal/portal"
)

// PortalClient is the portal session a refresh drives.
type PortalClient interface {
	Preflight(ctx context.Context) (portal.Session, error)
	Login(ctx context.Context) error
	Meters(ctx context.Context) (model.MeterReport, error)
	Tariffs(ctx context.Context) (model.TariffReport, error)
}

// Credentials identify the portal account.
type Credentials struct {
	Username string
	Password string
}

// ClientFactory creates a fresh portal session for one refresh.
type ClientFactory func(Credentials) (PortalClient, error)

// Deps holds the dependencies of a single refresh.
type Deps struct {
	NewClient   ClientFactory
	Credentials Credentials
	Clock       func() time.Time
}

// Refresh stages, used as metric labels and in StageError.
const (
	StageClient    = "client"
	StagePreflight = "preflight"
	StageLogin     = "login"
	StageMeters    = "meters"
	StageTariffs   = "tariffs"
)

// StageError names the refresh stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Status is the coordinator's view of refresh health.
type Status struct {
	Running             bool          `json:"running"`
	LastRun             time.Time     `json:"last_run"`
	LastSuccess         time.Time     `json:"last_success"`
	LastDuration        time.Duration `json:"last_duration_ns"`
	LastError           string        `json:"last_error,omitempty"`
	LastErrorStage      string        `json:"last_error_stage,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	Meters              int           `json:"meters"`
	Tariffs             int           `json:"tariffs"`
	Interval            time.Duration `json:"interval_ns"`
	NextRun             time.Time     `json:"next_run"`
	Breaker             string        `json:"breaker"`
	Restored            string        `json:"restored_from,omitempty"`
}
