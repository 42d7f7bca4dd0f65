// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePortalDate(t *testing.T) {
	d, err := ParsePortalDate(" 25.03.2024 ")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-25", d.String())

	_, err = ParsePortalDate("2024-03-25")
	assert.Error(t, err)
	_, err = ParsePortalDate("31.02.2024")
	assert.Error(t, err)
}

func TestParsePortalDate_Unpadded(t *testing.T) {
	for in, want := range map[string]Date{
		"1.2.2024":   NewDate(2024, time.February, 1),
		"01.2.2024":  NewDate(2024, time.February, 1),
		" 9.11.2023": NewDate(2023, time.November, 9),
		"15.3.2025":  NewDate(2025, time.March, 15),
	} {
		d, err := ParsePortalDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, d, in)
	}

	for _, in := range []string{"1.2.24", "32.1.2024", "1..2024", "1.13.2024"} {
		_, err := ParsePortalDate(in)
		assert.Error(t, err, in)
	}
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		D Date `json:"d"`
	}

	out, err := json.Marshal(wrapper{D: NewDate(2025, time.January, 9)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2025-01-09"}`, string(out))

	out, err = json.Marshal(wrapper{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":null}`, string(out))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2023-12-31"}`), &w))
	assert.Equal(t, NewDate(2023, time.December, 31), w.D)

	require.NoError(t, json.Unmarshal([]byte(`{"d":null}`), &w))
	assert.False(t, w.D.IsSet())

	assert.Error(t, json.Unmarshal([]byte(`{"d":"31.12.2023"}`), &w))
}

func TestNewSnapshot_NeverNilMaps(t *testing.T) {
	s := NewSnapshot(MeterReport{}, TariffReport{}, time.Unix(0, 0))
	assert.NotNil(t, s.Meters)
	assert.NotNil(t, s.Tariffs)

	s = NewSnapshot(MeterReport{
		Meters: map[string]Meter{"b": {Key: "b"}, "a": {Key: "a"}},
		Date:   NewDate(2024, time.May, 1),
	}, TariffReport{Tariffs: map[string]Tariff{"Газ": {}, "Вода": {}}}, time.Unix(0, 0))
	assert.Equal(t, []string{"a", "b"}, s.MeterKeys())
	assert.Equal(t, []string{"Вода", "Газ"}, s.TariffKeys())
	assert.Equal(t, "2024-05-01", s.Date.String())
}
