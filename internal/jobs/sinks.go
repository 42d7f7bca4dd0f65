// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ManuGH/zkhbridge/internal/cache"
	"github.com/ManuGH/zkhbridge/internal/hass"
	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/ManuGH/zkhbridge/internal/store"
)

// Sink receives every successful snapshot.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, snap model.Snapshot) error
}

// SnapshotCacheKey is where the last snapshot lives in the cache.
const SnapshotCacheKey = "snapshot"

// SinkFunc adapts a function to Sink.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, snap model.Snapshot) error
}

func (s SinkFunc) Name() string { return s.SinkName }

func (s SinkFunc) Deliver(ctx context.Context, snap model.Snapshot) error { return s.Fn(ctx, snap) }

// StoreSink appends readings to the history store.
func StoreSink(st store.Store) Sink {
	return SinkFunc{SinkName: "store", Fn: st.SaveSnapshot}
}

// CacheSink keeps the encoded snapshot under SnapshotCacheKey.
func CacheSink(c cache.Cache, ttl time.Duration) Sink {
	return SinkFunc{SinkName: "cache", Fn: func(ctx context.Context, snap model.Snapshot) error {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		c.Set(ctx, SnapshotCacheKey, data, ttl)
		return nil
	}}
}

// FileSink writes the snapshot file.
func FileSink(path string) Sink {
	return SinkFunc{SinkName: "file", Fn: func(ctx context.Context, snap model.Snapshot) error {
		return WriteSnapshotFile(ctx, path, snap)
	}}
}

// HassSink publishes sensor states to Home Assistant.
func HassSink(p *hass.Publisher, entryID string) Sink {
	return SinkFunc{SinkName: "hass", Fn: func(ctx context.Context, snap model.Snapshot) error {
		return p.Publish(ctx, hass.Entities(entryID, snap))
	}}
}
