// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func snapshotAt(day int, value int64, tariff *float64) model.Snapshot {
	return model.NewSnapshot(model.MeterReport{
		Meters: map[string]model.Meter{
			"123": {Key: "123", Value: value, ValueDate: model.NewDate(2025, time.March, day)},
			"999": {Key: "999", Value: 7},
		},
	}, model.TariffReport{
		Tariffs: map[string]model.Tariff{
			"Вода/стоки": {Key: "Вода/стоки", Tariff: tariff, Rate: f64(4.75), Date: model.NewDate(2025, time.January, day)},
			"Вода":       {Key: "Вода", Tariff: f64(1)},
		},
	}, time.Date(2025, time.March, day, 12, 0, 0, 0, time.UTC))
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	sq, err := Open(ctx, BackendSQLite, t.TempDir())
	require.NoError(t, err)
	bg, err := Open(ctx, BackendBadger, t.TempDir())
	require.NoError(t, err)
	mem, err := Open(ctx, BackendMemory, "")
	require.NoError(t, err)

	stores := map[string]Store{"sqlite": sq, "badger": bg, "memory": mem}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStore_History(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SaveSnapshot(ctx, snapshotAt(1, 100, f64(30))))
			require.NoError(t, s.SaveSnapshot(ctx, snapshotAt(2, 110, nil)))
			// Same value date again: upsert, not a new row.
			require.NoError(t, s.SaveSnapshot(ctx, snapshotAt(2, 111, f64(31))))

			hist, err := s.MeterHistory(ctx, "123", 0)
			require.NoError(t, err)
			require.Len(t, hist, 2)
			assert.Equal(t, "2025-03-02", hist[0].ValueDate.String())
			assert.Equal(t, int64(111), hist[0].Value)
			assert.Equal(t, "123", hist[0].MeterKey)
			assert.Equal(t, int64(100), hist[1].Value)
			assert.True(t, hist[0].SeenAt.Equal(time.Date(2025, time.March, 2, 12, 0, 0, 0, time.UTC)))

			limited, err := s.MeterHistory(ctx, "123", 1)
			require.NoError(t, err)
			require.Len(t, limited, 1)
			assert.Equal(t, int64(111), limited[0].Value)

			undated, err := s.MeterHistory(ctx, "999", 10)
			require.NoError(t, err)
			assert.Empty(t, undated)
			assert.NotNil(t, undated)

			tariffs, err := s.TariffHistory(ctx, "Вода/стоки", 10)
			require.NoError(t, err)
			require.Len(t, tariffs, 2)
			require.NotNil(t, tariffs[0].Tariff)
			assert.InDelta(t, 31.0, *tariffs[0].Tariff, 1e-9)
			assert.InDelta(t, 4.75, *tariffs[0].Rate, 1e-9)
			assert.InDelta(t, 30.0, *tariffs[1].Tariff, 1e-9)

			// Prefix of an escaped key must not leak into another key's history.
			other, err := s.TariffHistory(ctx, "Вода", 10)
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), "postgres", t.TempDir())
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, ClampLimit(0))
	assert.Equal(t, DefaultHistoryLimit, ClampLimit(-5))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, MaxHistoryLimit, ClampLimit(MaxHistoryLimit+1))
}

func TestSQLiteStore_Check(t *testing.T) {
	s, err := Open(context.Background(), BackendSQLite, t.TempDir())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	checker, ok := s.(Checker)
	require.True(t, ok)
	assert.NoError(t, checker.Check(context.Background()))
}
