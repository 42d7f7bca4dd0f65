// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ManuGH/zkhbridge/internal/portal"
	"github.com/ManuGH/zkhbridge/internal/portal/portaltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresh_Success(t *testing.T) {
	f := newFakeFactory()
	snap, err := Refresh(context.Background(), Deps{NewClient: f.New, Credentials: Credentials{Username: "u", Password: "p"}, Clock: fixedClock})
	require.NoError(t, err)

	assert.Len(t, snap.Meters, 1)
	assert.Len(t, snap.Tariffs, 1)
	assert.Equal(t, "2025-09-20", snap.Date.String())
	assert.Equal(t, fixedNow, snap.FetchedAt)
	assert.Equal(t, Credentials{Username: "u", Password: "p"}, f.lastCreds())
}

func TestRefresh_StageFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(*fakeClient)
		stage string
	}{
		{"preflight", func(c *fakeClient) { c.preflightErr = boom }, StagePreflight},
		{"login", func(c *fakeClient) { c.loginErr = portal.ErrLoginRejected }, StageLogin},
		{"meters", func(c *fakeClient) { c.metersErr = portal.ErrNotAuthenticated }, StageMeters},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFactory()
			tt.setup(f.client)

			snap, err := Refresh(context.Background(), Deps{NewClient: f.New, Clock: fixedClock})
			require.Error(t, err)
			assert.Nil(t, snap)

			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.stage, se.Stage)
		})
	}
}

func TestRefresh_ClientFactoryError(t *testing.T) {
	_, err := Refresh(context.Background(), Deps{NewClient: func(Credentials) (PortalClient, error) {
		return nil, errors.New("bad base url")
	}})
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageClient, se.Stage)

	_, err = Refresh(context.Background(), Deps{})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageClient, se.Stage)
}

func TestRefresh_TariffsFailureIsTolerated(t *testing.T) {
	f := newFakeFactory()
	f.client.tariffsErr = portal.ErrUnavailable

	snap, err := Refresh(context.Background(), Deps{NewClient: f.New, Clock: fixedClock})
	require.NoError(t, err)
	assert.Len(t, snap.Meters, 1)
	assert.Empty(t, snap.Tariffs)
	assert.NotNil(t, snap.Tariffs)
}

func TestRefresh_TariffsFailureAfterCancelIsFatal(t *testing.T) {
	f := newFakeFactory()
	ctx, cancel := context.WithCancel(context.Background())
	f.client.tariffsErr = context.Canceled
	cancel()

	_, err := Refresh(ctx, Deps{NewClient: f.New, Clock: fixedClock})
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageTariffs, se.Stage)
}

func TestRefresh_NoMetersIsNotAnError(t *testing.T) {
	f := newFakeFactory()
	f.client.meters.Meters = nil

	snap, err := Refresh(context.Background(), Deps{NewClient: f.New, Clock: fixedClock})
	require.NoError(t, err)
	assert.Empty(t, snap.Meters)
	assert.NotNil(t, snap.Meters)
}

func portalFactory(baseURL string) ClientFactory {
	return func(c Credentials) (PortalClient, error) {
		return portal.New(portal.Options{
			BaseURL:    baseURL,
			Username:   c.Username,
			Password:   c.Password,
			Timeout:    2 * time.Second,
			MaxRetries: -1,
			Backoff:    time.Millisecond,
			RateLimit:  1000,
		})
	}
}

func TestRefresh_AgainstMockPortal(t *testing.T) {
	srv := portaltest.NewMockServer()
	defer srv.Close()

	snap, err := Refresh(context.Background(), Deps{
		NewClient:   portalFactory(srv.BaseURL()),
		Credentials: Credentials{Username: portaltest.Username, Password: portaltest.Password},
		Clock:       fixedClock,
	})
	require.NoError(t, err)

	assert.Len(t, snap.Meters, 3)
	assert.Len(t, snap.Tariffs, 3)
	assert.Equal(t, "2025-09-25", snap.Date.String())
	assert.EqualValues(t, 345, snap.Meters["___123456"].Value)
	assert.Equal(t, 1, srv.Hits("doLogin!enter.action"))
}

func TestRefresh_AgainstMockPortal_WrongPassword(t *testing.T) {
	srv := portaltest.NewMockServer()
	defer srv.Close()

	_, err := Refresh(context.Background(), Deps{
		NewClient:   portalFactory(srv.BaseURL()),
		Credentials: Credentials{Username: portaltest.Username, Password: "wrong"},
	})
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageLogin, se.Stage)
	assert.ErrorIs(t, err, portal.ErrLoginRejected)
}

func TestRefresh_AgainstMockPortal_TariffsDown(t *testing.T) {
	srv := portaltest.NewMockServer()
	defer srv.Close()
	srv.SetStatus("tariffs.action", http.StatusInternalServerError)

	snap, err := Refresh(context.Background(), Deps{
		NewClient:   portalFactory(srv.BaseURL()),
		Credentials: Credentials{Username: portaltest.Username, Password: portaltest.Password},
	})
	require.NoError(t, err)
	assert.Len(t, snap.Meters, 3)
	assert.Empty(t, snap.Tariffs)
}
