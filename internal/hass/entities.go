// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package hass maps portal data onto Home Assistant sensor entities and
// publishes them through the Home Assistant REST API.
package hass

import (
	"strconv"

	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/ManuGH/zkhbridge/internal/portal"
)

const (
	// StateUnknown is Home Assistant's state for a missing value.
	StateUnknown = "unknown"

	DeviceClassWater  = "water"
	DeviceClassEnergy = "energy"

	StateClassTotalIncreasing = "total_increasing"

	IconMeter  = "mdi:counter"
	IconTariff = "mdi:currency-rub"

	currency  = "руб"
	waterUnit = "куб.м."
)

// Entity is one sensor as Home Assistant sees it.
type Entity struct {
	EntityID    string         `json:"entity_id"`
	UniqueID    string         `json:"unique_id"`
	Name        string         `json:"name"`
	State       string         `json:"state"`
	Unit        string         `json:"unit_of_measurement,omitempty"`
	DeviceClass string         `json:"device_class,omitempty"`
	StateClass  string         `json:"state_class,omitempty"`
	Icon        string         `json:"icon"`
	Attributes  map[string]any `json:"attributes"`
}

// EntityID derives "sensor.<slug>" from a unique id.
func EntityID(uniqueID string) string {
	return "sensor." + Slugify(uniqueID)
}

// Entities builds meter sensors followed by tariff sensors, each group in key order.
// Unique ids that slugify to the same entity id get "_2", "_3", ... appended
// in that order, the way Home Assistant resolves collisions.
func Entities(entryID string, snap model.Snapshot) []Entity {
	out := make([]Entity, 0, len(snap.Meters)+len(snap.Tariffs))
	for _, key := range snap.MeterKeys() {
		out = append(out, MeterEntity(entryID, snap.Meters[key]))
	}
	for _, key := range snap.TariffKeys() {
		out = append(out, TariffEntity(entryID, snap.Tariffs[key]))
	}

	issued := make(map[string]struct{}, len(out))
	for i := range out {
		out[i].EntityID = uniqueEntityID(issued, out[i].EntityID)
	}
	return out
}

func uniqueEntityID(issued map[string]struct{}, id string) string {
	candidate := id
	for n := 2; ; n++ {
		if _, taken := issued[candidate]; !taken {
			issued[candidate] = struct{}{}
			return candidate
		}
		candidate = id + "_" + strconv.Itoa(n)
	}
}

// MeterEntity maps one meter.
func MeterEntity(entryID string, m model.Meter) Entity {
	uid := entryID + "_meter_" + m.Key
	deviceClass := DeviceClassEnergy
	if m.Units == waterUnit {
		deviceClass = DeviceClassWater
	}
	name := m.Name
	if name == "" {
		name = "Meter " + m.Key
	}
	return Entity{
		EntityID:    EntityID(uid),
		UniqueID:    uid,
		Name:        name,
		State:       strconv.FormatInt(m.Value, 10),
		Unit:        portal.MapUnit(m.Units),
		DeviceClass: deviceClass,
		StateClass:  StateClassTotalIncreasing,
		Icon:        IconMeter,
		Attributes: map[string]any{
			"serial_number":          m.SerialNumber,
			"units":                  m.Units,
			"type_name":              m.TypeName,
			"value_date":             dateAttr(m.ValueDate),
			"next_verification_date": dateAttr(m.NextVerificationDate),
		},
	}
}

// TariffEntity maps one tariff. A missing tariff value yields StateUnknown.
func TariffEntity(entryID string, t model.Tariff) Entity {
	uid := entryID + "_tariff_" + t.Key
	unit := currency
	if t.Unit != "" {
		unit = t.Unit + "/" + currency
	}
	name := t.Name
	if name == "" {
		name = "Tariff " + t.Key
	}
	state := StateUnknown
	if t.Tariff != nil {
		state = strconv.FormatFloat(*t.Tariff, 'f', -1, 64)
	}
	return Entity{
		EntityID: EntityID(uid),
		UniqueID: uid,
		Name:     name,
		State:    state,
		Unit:     unit,
		Icon:     IconTariff,
		Attributes: map[string]any{
			"name":        t.Name,
			"rate":        floatAttr(t.Rate),
			"unit":        t.Unit,
			"tariff_date": dateAttr(t.Date),
		},
	}
}

func dateAttr(d model.Date) any {
	if !d.IsSet() {
		return nil
	}
	return d.String()
}

func floatAttr(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
