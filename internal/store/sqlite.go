// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/ManuGH/zkhbridge/internal/persistence/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS meter_readings (
	meter_key  TEXT    NOT NULL,
	value_date TEXT    NOT NULL,
	value      INTEGER NOT NULL,
	seen_at    INTEGER NOT NULL,
	PRIMARY KEY (meter_key, value_date)
);
CREATE TABLE IF NOT EXISTS tariff_points (
	tariff_key  TEXT    NOT NULL,
	tariff_date TEXT    NOT NULL,
	tariff      REAL,
	rate        REAL,
	seen_at     INTEGER NOT NULL,
	PRIMARY KEY (tariff_key, tariff_date)
);`

// SQLiteStore is the default history backend.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the history database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range readings(snap) {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO meter_readings (meter_key, value_date, value, seen_at) VALUES (?, ?, ?, ?)
ON CONFLICT (meter_key, value_date) DO UPDATE SET value = excluded.value, seen_at = excluded.seen_at`,
			r.MeterKey, r.ValueDate.String(), r.Value, r.SeenAt.UnixMilli()); err != nil {
			return fmt.Errorf("sqlite: save reading %s: %w", r.MeterKey, err)
		}
	}
	for _, p := range tariffPoints(snap) {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO tariff_points (tariff_key, tariff_date, tariff, rate, seen_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (tariff_key, tariff_date) DO UPDATE SET tariff = excluded.tariff, rate = excluded.rate, seen_at = excluded.seen_at`,
			p.TariffKey, p.Date.String(), nullFloat(p.Tariff), nullFloat(p.Rate), p.SeenAt.UnixMilli()); err != nil {
			return fmt.Errorf("sqlite: save tariff %s: %w", p.TariffKey, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MeterHistory(ctx context.Context, key string, limit int) ([]model.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT value_date, value, seen_at FROM meter_readings
WHERE meter_key = ? ORDER BY value_date DESC LIMIT ?`, key, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite: meter history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Reading{}
	for rows.Next() {
		var (
			date   string
			value  int64
			seenAt int64
		)
		if err := rows.Scan(&date, &value, &seenAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan reading: %w", err)
		}
		d, err := parseStoredDate(date)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Reading{MeterKey: key, Value: value, ValueDate: d, SeenAt: time.UnixMilli(seenAt).UTC()})
	}
	return out, rows.Err()
}

func (s *SQLiteStore) TariffHistory(ctx context.Context, key string, limit int) ([]model.TariffPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tariff_date, tariff, rate, seen_at FROM tariff_points
WHERE tariff_key = ? ORDER BY tariff_date DESC LIMIT ?`, key, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite: tariff history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.TariffPoint{}
	for rows.Next() {
		var (
			date         string
			tariff, rate sql.NullFloat64
			seenAt       int64
		)
		if err := rows.Scan(&date, &tariff, &rate, &seenAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan tariff: %w", err)
		}
		d, err := parseStoredDate(date)
		if err != nil {
			return nil, err
		}
		out = append(out, model.TariffPoint{
			TariffKey: key,
			Tariff:    floatPtr(tariff),
			Rate:      floatPtr(rate),
			Date:      d,
			SeenAt:    time.UnixMilli(seenAt).UTC(),
		})
	}
	return out, rows.Err()
}

// Check runs a quick integrity check.
func (s *SQLiteStore) Check(ctx context.Context) error {
	issues, err := sqlite.CheckIntegrity(ctx, s.db, false)
	if err != nil {
		return fmt.Errorf("sqlite: integrity check: %w", err)
	}
	if len(issues) > 0 {
		return fmt.Errorf("sqlite: integrity check: %s", strings.Join(issues, "; "))
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func parseStoredDate(s string) (model.Date, error) {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return model.Date{}, fmt.Errorf("stored date %q: %w", s, err)
	}
	return model.Date{Time: t}, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
