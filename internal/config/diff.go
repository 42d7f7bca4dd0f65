// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "fmt"

// Change is one differing field between two configurations.
type Change struct {
	Field string
	Old   string
	New   string
	// RestartRequired marks fields a running daemon does not pick up.
	RestartRequired bool
}

type diffField struct {
	name    string
	get     func(AppConfig) string
	secret  bool
	restart bool
}

var diffFields = []diffField{
	{name: "logLevel", get: func(c AppConfig) string { return c.LogLevel }},
	{name: "portal.baseUrl", get: func(c AppConfig) string { return c.Portal.BaseURL }},
	{name: "portal.username", get: func(c AppConfig) string { return c.Portal.Username }},
	{name: "portal.password", get: func(c AppConfig) string { return c.Portal.Password }, secret: true},
	{name: "refresh.interval", get: func(c AppConfig) string { return c.Refresh.Interval.String() }},
	{name: "dataDir", get: func(c AppConfig) string { return c.DataDir }, restart: true},
	{name: "api.listen", get: func(c AppConfig) string { return c.API.Listen }, restart: true},
	{name: "api.token", get: func(c AppConfig) string { return c.API.Token }, secret: true},
	{name: "api.anonymous", get: func(c AppConfig) string { return fmt.Sprint(c.API.Anonymous) }},
	{name: "metrics.listen", get: func(c AppConfig) string { return c.Metrics.Listen }, restart: true},
	{name: "store.backend", get: func(c AppConfig) string { return c.Store.Backend }, restart: true},
	{name: "cache.backend", get: func(c AppConfig) string { return c.Cache.Backend }, restart: true},
	{name: "homeAssistant.url", get: func(c AppConfig) string { return c.Hass.URL }, restart: true},
	{name: "homeAssistant.token", get: func(c AppConfig) string { return c.Hass.Token }, secret: true, restart: true},
	{name: "telemetry.enabled", get: func(c AppConfig) string { return fmt.Sprint(c.Telemetry.Enabled) }, restart: true},
}

// Diff lists the fields that differ. Secrets are redacted.
func Diff(old, newCfg AppConfig) []Change {
	var changes []Change
	for _, f := range diffFields {
		o, n := f.get(old), f.get(newCfg)
		if o == n {
			continue
		}
		if f.secret {
			o, n = mask(o), mask(n)
		}
		changes = append(changes, Change{Field: f.name, Old: o, New: n, RestartRequired: f.restart})
	}
	return changes
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
