// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, ExporterType: "grpc"})
	require.NoError(t, err)
	assert.Nil(t, provider.tp)

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()

	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_UnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "zkh", ExporterType: "kafka"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported exporter type")
}

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("GET", "/room/lk/counters.action", 200)
	require.Len(t, attrs, 3)
	assert.Equal(t, HTTPStatusCodeKey, string(attrs[2].Key))
	assert.EqualValues(t, 200, attrs[2].Value.AsInt64())
}
