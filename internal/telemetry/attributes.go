// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	PortalOpKey      = "portal.op"
	PortalAttemptKey = "portal.attempt"

	RefreshMetersKey  = "refresh.meters"
	RefreshTariffsKey = "refresh.tariffs"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// RefreshAttributes summarises a completed refresh.
func RefreshAttributes(meters, tariffs int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(RefreshMetersKey, meters),
		attribute.Int(RefreshTariffsKey, tariffs),
	}
}
