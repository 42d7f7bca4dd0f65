// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package portal

import (
	"math"
	"strconv"
	"strings"

	zkhlog "github.com/ManuGH/zkhbridge/internal/log"
	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/rs/zerolog"
)

// Counters table columns.
const (
	colMeterType       = 0
	colMeterSerial     = 1
	colMeterUnits      = 2
	colMeterValueDate  = 3
	colMeterValue      = 4
	colMeterNextVerify = 8
	meterMinCells      = colMeterNextVerify + 1
)

// Tariffs table columns.
const (
	colTariffName  = 0
	colTariffNorm  = 1
	colTariffUnits = 2
	colTariffValue = 3
	colTariffDate  = 4
	tariffMinCells = colTariffDate + 1
)

var unitSymbols = map[string]string{
	"кв.м":   "m²",
	"куб.м.": "m³",
	"кВтч":   "kWh",
	"Гкал":   "Gcal",
}

// MapUnit converts a portal unit name to its symbol; unknown units pass through.
func MapUnit(u string) string {
	if sym, ok := unitSymbols[u]; ok {
		return sym
	}
	return u
}

// MeterKey replaces every non-digit of a serial number with '_'.
func MeterKey(serial string) string {
	var b strings.Builder
	b.Grow(len(serial))
	for _, r := range serial {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

var numberCleaner = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", ",", ".")

// parseNumber accepts "1 234,5" style numbers. Empty input is not a number.
func parseNumber(s string) (float64, bool) {
	cleaned := numberCleaner.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseDate(field, s string) model.Date {
	if strings.TrimSpace(s) == "" {
		return model.Date{}
	}
	d, err := model.ParsePortalDate(s)
	if err != nil {
		logger := zkhlog.WithComponent("portal")
		logger.Warn().
			Str(zkhlog.FieldEvent, "portal.parse.date").
			Str("field", field).
			Str("raw", s).
			Msg("failed to parse date")
		return model.Date{}
	}
	return d
}

// ParseMeterRows turns counters table rows (header first) into a report.
// Later rows overwrite earlier rows with the same key.
func ParseMeterRows(rows [][]string) model.MeterReport {
	logger := zkhlog.WithComponent("portal")
	report := model.MeterReport{Meters: map[string]model.Meter{}}
	if len(rows) < 2 {
		return report
	}

	for _, row := range rows[1:] {
		if len(row) < meterMinCells {
			logger.Warn().
				Str(zkhlog.FieldEvent, "portal.parse.meter_row_short").
				Strs("row", row).
				Msg("meter row has insufficient columns")
			continue
		}

		typeName := strings.TrimSpace(row[colMeterType])
		serial := strings.TrimSpace(row[colMeterSerial])
		rawValue := strings.TrimSpace(row[colMeterValue])

		var value int64
		if f, ok := parseNumber(rawValue); ok && f < math.MaxInt64 && f > math.MinInt64 {
			value = int64(f)
		} else {
			logger.Warn().
				Str(zkhlog.FieldEvent, "portal.parse.meter_value").
				Str("raw", rawValue).
				Msg("failed to parse meter value")
		}

		m := model.Meter{
			Key:                  MeterKey(serial),
			Name:                 typeName + " №" + serial,
			Units:                strings.TrimSpace(row[colMeterUnits]),
			SerialNumber:         serial,
			TypeName:             typeName,
			Value:                value,
			ValueDate:            parseDate("value_date", row[colMeterValueDate]),
			NextVerificationDate: parseDate("next_verification_date", row[colMeterNextVerify]),
		}
		if m.ValueDate.After(report.Date) {
			report.Date = m.ValueDate
		}
		report.Meters[m.Key] = m
	}
	return report
}

// ParseTariffRows turns tariffs table rows (header first) into a report keyed by name.
func ParseTariffRows(rows [][]string) model.TariffReport {
	logger := zkhlog.WithComponent("portal")
	report := model.TariffReport{Tariffs: map[string]model.Tariff{}}
	if len(rows) < 2 {
		return report
	}

	for _, row := range rows[1:] {
		if len(row) < tariffMinCells {
			logger.Warn().
				Str(zkhlog.FieldEvent, "portal.parse.tariff_row_short").
				Strs("row", row).
				Msg("tariff row has insufficient columns")
			continue
		}

		name := strings.TrimSpace(row[colTariffName])
		t := model.Tariff{
			Key:    name,
			Name:   name,
			Rate:   optionalNumber(logger, "norm", row[colTariffNorm]),
			Unit:   MapUnit(strings.TrimSpace(row[colTariffUnits])),
			Tariff: optionalNumber(logger, "tariff", row[colTariffValue]),
			Date:   parseDate("tariff_date", row[colTariffDate]),
		}
		report.Tariffs[t.Key] = t
	}
	return report
}

// optionalNumber returns nil for empty or unparsable cells.
func optionalNumber(logger zerolog.Logger, field, raw string) *float64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	f, ok := parseNumber(raw)
	if !ok {
		logger.Warn().
			Str(zkhlog.FieldEvent, "portal.parse.number").
			Str("field", field).
			Str("raw", raw).
			Msg("failed to parse number")
		return nil
	}
	return &f
}
