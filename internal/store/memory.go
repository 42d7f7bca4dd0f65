// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ManuGH/zkhbridge/internal/model"
)

// MemoryStore is a volatile Store for tests and stateless deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	meters  map[string]map[string]model.Reading
	tariffs map[string]map[string]model.TariffPoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		meters:  make(map[string]map[string]model.Reading),
		tariffs: make(map[string]map[string]model.TariffPoint),
	}
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range readings(snap) {
		if s.meters[r.MeterKey] == nil {
			s.meters[r.MeterKey] = make(map[string]model.Reading)
		}
		s.meters[r.MeterKey][r.ValueDate.String()] = r
	}
	for _, p := range tariffPoints(snap) {
		if s.tariffs[p.TariffKey] == nil {
			s.tariffs[p.TariffKey] = make(map[string]model.TariffPoint)
		}
		s.tariffs[p.TariffKey][p.Date.String()] = p
	}
	return nil
}

func (s *MemoryStore) MeterHistory(_ context.Context, key string, limit int) ([]model.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Reading{}
	for _, r := range s.meters[key] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ValueDate.After(out[j].ValueDate) })
	if n := ClampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *MemoryStore) TariffHistory(_ context.Context, key string, limit int) ([]model.TariffPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.TariffPoint{}
	for _, p := range s.tariffs[key] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if n := ClampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
