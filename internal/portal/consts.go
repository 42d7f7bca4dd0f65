// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package portal

// DefaultBaseURL is the personal-account area of the ZKHNSO portal.
const DefaultBaseURL = "https://xn--f1aijeow.xn--p1ai/room/lk/"

// DefaultTimezone is the UTC offset in minutes the login form reports (Novosibirsk).
const DefaultTimezone = "-420"

const (
	pathPreflight = "login.action"
	pathLogin     = "doLogin!enter.action"
	pathMeters    = "counters.action"
	pathTariffs   = "tariffs.action"
	pathMain      = "main.action"

	sessionCookie = "JSESSIONID"
	loginModule   = "lk"
	captchaCode   = "x"

	selLoginToken = "#loginForm input[name=loginToken]"
	selLoginForm  = "#loginForm"
	selMeterRows  = "#countersForm table tr"
	selTariffRows = "#tariffsForm table tr"
)

// Operation names used in errors, spans and metrics.
const (
	OpPreflight = "preflight"
	OpLogin     = "login"
	OpMeters    = "meters"
	OpTariffs   = "tariffs"
)
