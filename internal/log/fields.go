// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService   = "service"
	FieldVersion   = "version"
	FieldRequestID = "request_id"
	FieldRefreshID = "refresh_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"

	// Domain fields
	FieldMeterKey  = "meter_key"
	FieldTariffKey = "tariff_key"
	FieldEntityID  = "entity_id"
	FieldMeters    = "meters"
	FieldTariffs   = "tariffs"

	// HTTP fields
	FieldURL    = "url"
	FieldPath   = "path"
	FieldMethod = "method"
	FieldStatus = "status"
)
