// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used on the wire.
const DateLayout = "2006-01-02"

// PortalDateLayout is the DD.MM.YYYY format rendered by the portal.
const PortalDateLayout = "02.01.2006"

// portalDateUnpadded accepts dates the portal renders without zero padding.
const portalDateUnpadded = "2.1.2006"

// Date is a calendar date without time of day. The zero value is "unknown"
// and serialises as JSON null.
type Date struct {
	time.Time
}

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParsePortalDate parses DD.MM.YYYY (surrounding whitespace allowed).
// Day and month may also appear without a leading zero, as in 1.2.2024.
func ParsePortalDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(PortalDateLayout, s)
	if err != nil {
		var fallbackErr error
		if t, fallbackErr = time.Parse(portalDateUnpadded, s); fallbackErr != nil {
			return Date{}, err
		}
	}
	return Date{Time: t}, nil
}

// IsSet reports whether the date is known.
func (d Date) IsSet() bool {
	return !d.Time.IsZero()
}

// String renders YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if !d.IsSet() {
		return ""
	}
	return d.Format(DateLayout)
}

// After reports whether d is later than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.IsSet() {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("%q", d.Format(DateLayout))), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("date %q: %w", s, err)
	}
	d.Time = t
	return nil
}
