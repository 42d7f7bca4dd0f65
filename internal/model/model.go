// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model holds the meter and tariff data scraped from the housing portal.
package model

import (
	"sort"
	"time"
)

// Meter is one utility meter as listed on the portal's counters page.
type Meter struct {
	Key                  string `json:"key"`
	Name                 string `json:"name"`
	Units                string `json:"units"`
	SerialNumber         string `json:"serial_number"`
	TypeName             string `json:"type_name"`
	Value                int64  `json:"value"`
	ValueDate            Date   `json:"value_date"`
	NextVerificationDate Date   `json:"next_verification_date"`
}

// Tariff is one row of the portal's tariffs page.
type Tariff struct {
	Key    string   `json:"key"`
	Name   string   `json:"name"`
	Rate   *float64 `json:"rate"`
	Unit   string   `json:"unit"`
	Tariff *float64 `json:"tariff"`
	Date   Date     `json:"date"`
}

// MeterReport is the parsed counters page. Date is the latest reading date.
type MeterReport struct {
	Meters map[string]Meter `json:"meters"`
	Date   Date             `json:"date"`
}

// TariffReport is the parsed tariffs page.
type TariffReport struct {
	Tariffs map[string]Tariff `json:"tariffs"`
}

// Snapshot combines both pages from one refresh.
type Snapshot struct {
	Meters    map[string]Meter  `json:"meters"`
	Tariffs   map[string]Tariff `json:"tariffs"`
	Date      Date              `json:"date"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// Reading is one historical meter value.
type Reading struct {
	MeterKey  string    `json:"meter_key"`
	Value     int64     `json:"value"`
	ValueDate Date      `json:"value_date"`
	SeenAt    time.Time `json:"seen_at"`
}

// TariffPoint is one historical tariff value.
type TariffPoint struct {
	TariffKey string    `json:"tariff_key"`
	Tariff    *float64  `json:"tariff"`
	Rate      *float64  `json:"rate"`
	Date      Date      `json:"date"`
	SeenAt    time.Time `json:"seen_at"`
}

// NewSnapshot merges the two reports.
func NewSnapshot(meters MeterReport, tariffs TariffReport, fetchedAt time.Time) Snapshot {
	s := Snapshot{
		Meters:    meters.Meters,
		Tariffs:   tariffs.Tariffs,
		Date:      meters.Date,
		FetchedAt: fetchedAt,
	}
	if s.Meters == nil {
		s.Meters = map[string]Meter{}
	}
	if s.Tariffs == nil {
		s.Tariffs = map[string]Tariff{}
	}
	return s
}

// MeterKeys returns the meter keys in stable order.
func (s Snapshot) MeterKeys() []string {
	keys := make([]string, 0, len(s.Meters))
	for k := range s.Meters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TariffKeys returns the tariff keys in stable order.
func (s Snapshot) TariffKeys() []string {
	keys := make([]string, 0, len(s.Tariffs))
	for k := range s.Tariffs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
