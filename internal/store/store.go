// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store keeps the history of meter readings and tariff values.
package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ManuGH/zkhbridge/internal/model"
)

// Store persists readings from successive snapshots.
type Store interface {
	// SaveSnapshot upserts every dated meter reading and tariff value.
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	// MeterHistory returns up to limit readings, newest value date first.
	MeterHistory(ctx context.Context, key string, limit int) ([]model.Reading, error)
	// TariffHistory returns up to limit tariff values, newest date first.
	TariffHistory(ctx context.Context, key string, limit int) ([]model.TariffPoint, error)
	Close() error
}

// Checker is implemented by backends that can verify their own storage.
type Checker interface {
	Check(ctx context.Context) error
}

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// ClampLimit maps a requested limit onto (0, MaxHistoryLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

// Open creates a Store for backend under dataDir.
func Open(ctx context.Context, backend, dataDir string) (Store, error) {
	switch backend {
	case BackendSQLite, "":
		return OpenSQLite(ctx, filepath.Join(dataDir, "history.db"))
	case BackendBadger:
		return OpenBadger(filepath.Join(dataDir, "history.badger"))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}

// readings extracts storable meter readings from a snapshot.
func readings(snap model.Snapshot) []model.Reading {
	out := make([]model.Reading, 0, len(snap.Meters))
	for _, key := range snap.MeterKeys() {
		m := snap.Meters[key]
		if !m.ValueDate.IsSet() {
			continue
		}
		out = append(out, model.Reading{
			MeterKey:  m.Key,
			Value:     m.Value,
			ValueDate: m.ValueDate,
			SeenAt:    snap.FetchedAt.UTC(),
		})
	}
	return out
}

// tariffPoints extracts storable tariff values from a snapshot.
func tariffPoints(snap model.Snapshot) []model.TariffPoint {
	out := make([]model.TariffPoint, 0, len(snap.Tariffs))
	for _, key := range snap.TariffKeys() {
		t := snap.Tariffs[key]
		if !t.Date.IsSet() {
			continue
		}
		out = append(out, model.TariffPoint{
			TariffKey: t.Key,
			Tariff:    t.Tariff,
			Rate:      t.Rate,
			Date:      t.Date,
			SeenAt:    snap.FetchedAt.UTC(),
		})
	}
	return out
}
