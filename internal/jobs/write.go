// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	zkhlog "github.com/ManuGH/zkhbridge/internal/log"
	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/google/renameio/v2"
)

// SnapshotFileName is the snapshot file inside the data directory.
const SnapshotFileName = "snapshot.json"

// WriteSnapshotFile replaces path atomically and durably (fsync before rename).
func WriteSnapshotFile(ctx context.Context, path string, snap model.Snapshot) error {
	logger := zkhlog.WithComponentFromContext(ctx, "jobs")

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("create pending snapshot file: %w", err)
	}
	defer func() {
		// no-op once committed
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending snapshot file")
		}
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace snapshot file: %w", err)
	}
	return nil
}

// ReadSnapshotFile loads a snapshot written by WriteSnapshotFile.
func ReadSnapshotFile(path string) (*model.Snapshot, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from config
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(data)
}

func decodeSnapshot(data []byte) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Meters == nil {
		snap.Meters = map[string]model.Meter{}
	}
	if snap.Tariffs == nil {
		snap.Tariffs = map[string]model.Tariff{}
	}
	return &snap, nil
}
