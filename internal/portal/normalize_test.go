// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package portal

import (
	"testing"
	"time"

	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var meterHeader = []string{"type", "serial", "units", "date", "value", "c5", "c6", "c7", "verify"}

func TestParseMeterRows(t *testing.T) {
	rows := [][]string{
		meterHeader,
		{"Холодная вода", "ХВ-1", "куб.м.", "10.03.2024", "12,9", "", "", "", "01.01.2030"},
		{"short", "row"},
		{"Горячая вода", "22", "куб.м.", "bad-date", "n/a", "", "", "", ""},
		{"Электроэнергия", "33", "кВтч", "15.03.2024", "1 234.7", "", "", "", "01.02.2031"},
	}

	got := ParseMeterRows(rows)

	want := model.MeterReport{
		Date: model.NewDate(2024, time.March, 15),
		Meters: map[string]model.Meter{
			"___1": {
				Key: "___1", Name: "Холодная вода №ХВ-1", Units: "куб.м.", SerialNumber: "ХВ-1",
				TypeName: "Холодная вода", Value: 12,
				ValueDate:            model.NewDate(2024, time.March, 10),
				NextVerificationDate: model.NewDate(2030, time.January, 1),
			},
			"22": {
				Key: "22", Name: "Горячая вода №22", Units: "куб.м.", SerialNumber: "22",
				TypeName: "Горячая вода", Value: 0,
			},
			"33": {
				Key: "33", Name: "Электроэнергия №33", Units: "кВтч", SerialNumber: "33",
				TypeName: "Электроэнергия", Value: 1234,
				ValueDate:            model.NewDate(2024, time.March, 15),
				NextVerificationDate: model.NewDate(2031, time.February, 1),
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMeterRows_DuplicateKeyLastWins(t *testing.T) {
	rows := [][]string{
		meterHeader,
		{"A", "1-2", "u", "01.01.2024", "1", "", "", "", ""},
		{"B", "1/2", "u", "02.01.2024", "2", "", "", "", ""},
	}
	got := ParseMeterRows(rows)
	require.Len(t, got.Meters, 1)
	assert.Equal(t, "B", got.Meters["1_2"].TypeName)
	assert.Equal(t, int64(2), got.Meters["1_2"].Value)
}

func TestParseMeterRows_HeaderOnly(t *testing.T) {
	got := ParseMeterRows([][]string{meterHeader})
	assert.NotNil(t, got.Meters)
	assert.Empty(t, got.Meters)
	assert.False(t, got.Date.IsSet())

	got = ParseMeterRows(nil)
	assert.Empty(t, got.Meters)
}

func TestParseMeterRows_NegativeTruncatesTowardZero(t *testing.T) {
	got := ParseMeterRows([][]string{meterHeader, {"A", "9", "u", "", "-3.7", "", "", "", ""}})
	assert.Equal(t, int64(-3), got.Meters["9"].Value)
}

func TestParseTariffRows(t *testing.T) {
	rows := [][]string{
		{"name", "norm", "units", "tariff", "date"},
		{"Холодное водоснабжение", "4,75", "куб.м.", "38,46", "01.07.2025"},
		{"Отопление", "0,0198", "Гкал", "2 845,12", "01.07.2025"},
		{"Электроснабжение", "", "кВтч", "abc", "xx"},
		{"Прочее", "1", "шт"},
		{"Площадь", "1", "кв.м", "30", "01.07.2025"},
		{"Другое", "1", "шт", "2", ""},
	}

	got := ParseTariffRows(rows)
	require.Len(t, got.Tariffs, 5)

	water := got.Tariffs["Холодное водоснабжение"]
	assert.Equal(t, "Холодное водоснабжение", water.Name)
	assert.Equal(t, "m³", water.Unit)
	require.NotNil(t, water.Rate)
	require.NotNil(t, water.Tariff)
	assert.InDelta(t, 4.75, *water.Rate, 1e-9)
	assert.InDelta(t, 38.46, *water.Tariff, 1e-9)
	assert.Equal(t, "2025-07-01", water.Date.String())

	heat := got.Tariffs["Отопление"]
	assert.Equal(t, "Gcal", heat.Unit)
	assert.InDelta(t, 2845.12, *heat.Tariff, 1e-9)

	power := got.Tariffs["Электроснабжение"]
	assert.Equal(t, "kWh", power.Unit)
	assert.Nil(t, power.Rate)
	assert.Nil(t, power.Tariff)
	assert.False(t, power.Date.IsSet())

	assert.Equal(t, "m²", got.Tariffs["Площадь"].Unit)
	assert.Equal(t, "шт", got.Tariffs["Другое"].Unit)
	assert.NotContains(t, got.Tariffs, "Прочее")
}

func TestMapUnit(t *testing.T) {
	assert.Equal(t, "m³", MapUnit("куб.м."))
	assert.Equal(t, "куб.м", MapUnit("куб.м"))
	assert.Equal(t, "kWh", MapUnit("кВтч"))
	assert.Equal(t, "", MapUnit(""))
}

func TestMeterKey(t *testing.T) {
	assert.Equal(t, "0123", MeterKey("0123"))
	assert.Equal(t, "__12_3", MeterKey("№ 12-3"))
	assert.Equal(t, "", MeterKey(""))
}

func TestParseNumber(t *testing.T) {
	for in, want := range map[string]float64{
		"1":          1,
		" 2,5 ":      2.5,
		"1 000,25":   1000.25,
		"1\u00a0000": 1000,
		"\u202f7,5":  7.5,
		"-0,5":       -0.5,
	} {
		got, ok := parseNumber(in)
		assert.True(t, ok, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}
	for _, in := range []string{"", "abc", "NaN", "Inf", "1,2,3"} {
		_, ok := parseNumber(in)
		assert.False(t, ok, in)
	}
}
