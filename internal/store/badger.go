// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps history in an embedded key-value store:
//   - readings: key = "meter/<key>/<YYYY-MM-DD>" (JSON Reading)
//   - tariffs:  key = "tariff/<key>/<YYYY-MM-DD>" (JSON TariffPoint)
//
// Keys are path-escaped so a tariff name containing '/' cannot collide with a prefix.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens a store at path. An empty path keeps everything in memory.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func historyPrefix(kind, key string) []byte {
	return []byte(kind + "/" + url.PathEscape(key) + "/")
}

func historyKey(kind, key string, d model.Date) []byte {
	return append(historyPrefix(kind, key), d.String()...)
}

func (s *BadgerStore) SaveSnapshot(_ context.Context, snap model.Snapshot) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, r := range readings(snap) {
			buf, err := json.Marshal(r)
			if err != nil {
				return err
			}
			if err := txn.Set(historyKey("meter", r.MeterKey, r.ValueDate), buf); err != nil {
				return fmt.Errorf("badger: save reading %s: %w", r.MeterKey, err)
			}
		}
		for _, p := range tariffPoints(snap) {
			buf, err := json.Marshal(p)
			if err != nil {
				return err
			}
			if err := txn.Set(historyKey("tariff", p.TariffKey, p.Date), buf); err != nil {
				return fmt.Errorf("badger: save tariff %s: %w", p.TariffKey, err)
			}
		}
		return nil
	})
}

// scanNewest visits values under prefix in descending key order.
func (s *BadgerStore) scanNewest(ctx context.Context, prefix []byte, limit int, fn func([]byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xFF)
		n := 0
		for it.Seek(seek); it.ValidForPrefix(prefix) && n < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := it.Item().Value(fn); err != nil {
				return err
			}
			n++
		}
		return nil
	})
}

func (s *BadgerStore) MeterHistory(ctx context.Context, key string, limit int) ([]model.Reading, error) {
	out := []model.Reading{}
	err := s.scanNewest(ctx, historyPrefix("meter", key), ClampLimit(limit), func(val []byte) error {
		var r model.Reading
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: meter history: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) TariffHistory(ctx context.Context, key string, limit int) ([]model.TariffPoint, error) {
	out := []model.TariffPoint{}
	err := s.scanNewest(ctx, historyPrefix("tariff", key), ClampLimit(limit), func(val []byte) error {
		var p model.TariffPoint
		if err := json.Unmarshal(val, &p); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: tariff history: %w", err)
	}
	return out, nil
}
