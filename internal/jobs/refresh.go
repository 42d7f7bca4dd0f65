// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package jobs runs portal refreshes and fans the resulting snapshot out to sinks.
package jobs

import (
	"context"
	"errors"
	"time"

	zkhlog "github.com/ManuGH/zkhbridge/internal/log"
	"github.com/ManuGH/zkhbridge/internal/metrics"
	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/ManuGH/zkhbridge/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
)

// Refresh performs one complete cycle with a fresh portal session:
// preflight → login → meters → tariffs. A tariffs failure is tolerated and
// yields an empty tariff set; every other failure aborts the run.
func Refresh(ctx context.Context, deps Deps) (*model.Snapshot, error) {
	if deps.NewClient == nil {
		return nil, &StageError{Stage: StageClient, Err: errors.New("no portal client factory")}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	refreshID := uuid.NewString()
	ctx = zkhlog.ContextWithRefreshID(ctx, refreshID)
	logger := zkhlog.WithComponentFromContext(ctx, "jobs")

	ctx, span := telemetry.Tracer("zkhbridge.jobs").Start(ctx, "refresh")
	defer span.End()

	fail := func(stage string, err error) (*model.Snapshot, error) {
		metrics.IncRefreshFailure(stage)
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		logger.Error().
			Err(err).
			Str(zkhlog.FieldEvent, "refresh.failed").
			Str(zkhlog.FieldStage, stage).
			Msg("refresh failed")
		return nil, &StageError{Stage: stage, Err: err}
	}

	logger.Info().Str(zkhlog.FieldEvent, "refresh.start").Msg("starting refresh")

	client, err := deps.NewClient(deps.Credentials)
	if err != nil {
		return fail(StageClient, err)
	}
	if _, err := client.Preflight(ctx); err != nil {
		return fail(StagePreflight, err)
	}
	if err := client.Login(ctx); err != nil {
		return fail(StageLogin, err)
	}

	meters, err := client.Meters(ctx)
	if err != nil {
		return fail(StageMeters, err)
	}
	if len(meters.Meters) == 0 {
		logger.Warn().Str(zkhlog.FieldEvent, "refresh.no_meters").Msg("no meters found in response")
	}

	tariffs, err := client.Tariffs(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fail(StageTariffs, err)
		}
		metrics.IncRefreshFailure(StageTariffs)
		logger.Warn().
			Err(err).
			Str(zkhlog.FieldEvent, "refresh.tariffs_failed").
			Msg("failed to fetch tariffs, continuing without them")
		tariffs = model.TariffReport{}
	}

	snap := model.NewSnapshot(meters, tariffs, clock().UTC())
	span.SetAttributes(telemetry.RefreshAttributes(len(snap.Meters), len(snap.Tariffs))...)
	span.SetStatus(codes.Ok, "")

	logger.Info().
		Str(zkhlog.FieldEvent, "refresh.success").
		Int(zkhlog.FieldMeters, len(snap.Meters)).
		Int(zkhlog.FieldTariffs, len(snap.Tariffs)).
		Str("date", snap.Date.String()).
		Msg("refresh completed")
	return &snap, nil
}
