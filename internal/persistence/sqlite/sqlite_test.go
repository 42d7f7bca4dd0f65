// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_WALAndIntegrity(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "history.db"), Config{})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var mode string
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode))
	assert.Equal(t, "wal", mode)

	_, err = db.ExecContext(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)")
	require.NoError(t, err)

	issues, err := CheckIntegrity(ctx, db, false)
	require.NoError(t, err)
	assert.Nil(t, issues)

	issues, err = CheckIntegrity(ctx, db, true)
	require.NoError(t, err)
	assert.Nil(t, issues)
}
