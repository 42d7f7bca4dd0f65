// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ManuGH/zkhbridge/internal/cache"
	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/ManuGH/zkhbridge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSnapshotFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", SnapshotFileName)
	snap := model.NewSnapshot(sampleMeters(), sampleTariffs(), fixedNow)

	require.NoError(t, WriteSnapshotFile(context.Background(), path, snap))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	got, err := ReadSnapshotFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2025-09-20", got.Date.String())
	assert.Equal(t, int64(345), got.Meters["123"].Value)
	require.NotNil(t, got.Tariffs["Холодное водоснабжение"].Tariff)
	assert.InDelta(t, 38.46, *got.Tariffs["Холодное водоснабжение"].Tariff, 1e-9)
}

func TestWriteSnapshotFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), SnapshotFileName)
	first := model.NewSnapshot(sampleMeters(), sampleTariffs(), fixedNow)
	require.NoError(t, WriteSnapshotFile(context.Background(), path, first))

	second := model.NewSnapshot(model.MeterReport{}, model.TariffReport{}, fixedNow)
	require.NoError(t, WriteSnapshotFile(context.Background(), path, second))

	got, err := ReadSnapshotFile(path)
	require.NoError(t, err)
	assert.Empty(t, got.Meters)
	assert.NotNil(t, got.Meters)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestReadSnapshotFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), SnapshotFileName)
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	_, err := ReadSnapshotFile(path)
	assert.Error(t, err)
}

func TestSinks(t *testing.T) {
	ctx := context.Background()
	snap := model.NewSnapshot(sampleMeters(), sampleTariffs(), fixedNow)

	t.Run("cache", func(t *testing.T) {
		mc := cache.NewMemoryCache(0)
		defer mc.Close()
		s := CacheSink(mc, 0)
		assert.Equal(t, "cache", s.Name())
		require.NoError(t, s.Deliver(ctx, snap))

		data, ok := mc.Get(ctx, SnapshotCacheKey)
		require.True(t, ok)
		var got model.Snapshot
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, snap.MeterKeys(), got.MeterKeys())
	})

	t.Run("store", func(t *testing.T) {
		st := store.NewMemoryStore()
		s := StoreSink(st)
		assert.Equal(t, "store", s.Name())
		require.NoError(t, s.Deliver(ctx, snap))

		hist, err := st.MeterHistory(ctx, "123", 10)
		require.NoError(t, err)
		require.Len(t, hist, 1)
		assert.Equal(t, int64(345), hist[0].Value)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), SnapshotFileName)
		s := FileSink(path)
		assert.Equal(t, "file", s.Name())
		require.NoError(t, s.Deliver(ctx, snap))
		_, err := os.Stat(path)
		assert.NoError(t, err)
	})
}
