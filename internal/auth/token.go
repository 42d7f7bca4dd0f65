// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package auth validates API bearer tokens.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// HeaderToken is the alternative header for clients that cannot set Authorization.
const HeaderToken = "X-API-Token"

// ExtractToken retrieves the API token from the request, in order:
//  1. Authorization: Bearer <token>
//  2. X-API-Token header
//  3. ?token= query parameter, only when allowQuery is set (websocket clients)
func ExtractToken(r *http.Request, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if t := strings.TrimSpace(r.Header.Get(HeaderToken)); t != "" {
		return t
	}
	if allowQuery {
		return strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return ""
}

// AuthorizeToken returns true if got matches expected using constant-time comparison.
// Empty tokens are always treated as unauthorized.
func AuthorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// AuthorizeRequest extracts a token from r and validates it against expectedToken.
func AuthorizeRequest(r *http.Request, expectedToken string, allowQuery bool) bool {
	if r == nil {
		return false
	}
	return AuthorizeToken(ExtractToken(r, allowQuery), expectedToken)
}
