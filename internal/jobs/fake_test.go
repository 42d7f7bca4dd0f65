// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/ManuGH/zkhbridge/internal/portal"
)

var fixedNow = time.Date(2025, 9, 26, 8, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func sampleMeters() model.MeterReport {
	return model.MeterReport{
		Meters: map[string]model.Meter{
			"123": {
				Key: "123", Name: "Холодная вода №123", Units: "куб.м.", SerialNumber: "123",
				TypeName: "Холодная вода", Value: 345, ValueDate: model.NewDate(2025, time.September, 20),
			},
		},
		Date: model.NewDate(2025, time.September, 20),
	}
}

func sampleTariffs() model.TariffReport {
	tariff := 38.46
	return model.TariffReport{Tariffs: map[string]model.Tariff{
		"Холодное водоснабжение": {
			Key: "Холодное водоснабжение", Name: "Холодное водоснабжение",
			Unit: "куб.м.", Tariff: &tariff, Date: model.NewDate(2025, time.July, 1),
		},
	}}
}

// fakeClient is a scripted PortalClient.
type fakeClient struct {
	preflightErr error
	loginErr     error
	metersErr    error
	tariffsErr   error
	meters       model.MeterReport
	tariffs      model.TariffReport
	// block, when set, holds Meters until it is closed or ctx is done.
	block chan struct{}
}

func (f *fakeClient) Preflight(context.Context) (portal.Session, error) {
	return portal.Session{ID: "S", FormToken: "T"}, f.preflightErr
}

func (f *fakeClient) Login(context.Context) error { return f.loginErr }

func (f *fakeClient) Meters(ctx context.Context) (model.MeterReport, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return model.MeterReport{}, ctx.Err()
		}
	}
	return f.meters, f.metersErr
}

func (f *fakeClient) Tariffs(context.Context) (model.TariffReport, error) {
	return f.tariffs, f.tariffsErr
}

// fakeFactory hands out the same scripted client and counts sessions.
type fakeFactory struct {
	mu     sync.Mutex
	client *fakeClient
	creds  []Credentials
	calls  atomic.Int32
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{client: &fakeClient{meters: sampleMeters(), tariffs: sampleTariffs()}}
}

func (f *fakeFactory) New(c Credentials) (PortalClient, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = append(f.creds, c)
	return f.client, nil
}

func (f *fakeFactory) lastCreds() Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.creds) == 0 {
		return Credentials{}
	}
	return f.creds[len(f.creds)-1]
}
