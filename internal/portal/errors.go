// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package portal

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnavailable      = errors.New("portal: host unreachable or transport failure")
	ErrUpstreamStatus   = errors.New("portal: unexpected HTTP status")
	ErrBadResponse      = errors.New("portal: invalid response format or malformed data")
	ErrNotPrepared      = errors.New("portal: preflight required before login")
	ErrLoginRejected    = errors.New("portal: login rejected")
	ErrNotAuthenticated = errors.New("portal: no authenticated session")
)

// Error wraps a sentinel with the failing operation and upstream details.
type Error struct {
	Op       string
	Sentinel error
	Status   int
	Err      error // lower-level cause (net.Error, context error, parse error)
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches
// ErrUnavailable as well as context.Canceled.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

func newError(op string, sentinel error, status int, cause error) *Error {
	return &Error{Op: op, Sentinel: sentinel, Status: status, Err: cause}
}
