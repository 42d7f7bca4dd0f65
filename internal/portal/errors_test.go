// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package portal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := newError(OpMeters, ErrUpstreamStatus, 502, nil)
	assert.Equal(t, "meters: portal: unexpected HTTP status (HTTP 502)", err.Error())

	err = newError(OpPreflight, ErrUnavailable, 0, errors.New("dial tcp: refused"))
	assert.Equal(t, "preflight: portal: host unreachable or transport failure: dial tcp: refused", err.Error())
}

func TestError_Unwrap(t *testing.T) {
	err := error(newError(OpLogin, ErrUnavailable, 0, context.DeadlineExceeded))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrLoginRejected)

	wrapped := errors.Join(errors.New("refresh"), newError(OpTariffs, ErrNotAuthenticated, 200, nil))
	assert.ErrorIs(t, wrapped, ErrNotAuthenticated)
}
