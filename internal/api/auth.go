// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/ManuGH/zkhbridge/internal/auth"
	"github.com/ManuGH/zkhbridge/internal/log"
)

// authMiddleware enforces the API token. Without a configured token every
// request is denied unless anonymous access is enabled.
func (s *Server) authMiddleware(allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, anonymous := s.authSettings()
			logger := log.WithComponentFromContext(r.Context(), "auth")

			if token == "" {
				if anonymous {
					next.ServeHTTP(w, r)
					return
				}
				logger.Error().
					Str(log.FieldEvent, "auth.fail_closed").
					Msg("api token not set and anonymous access disabled, denying access")
				s.audit.AuthFailure(r, "no api token configured")
				writeUnauthorized(w)
				return
			}

			reqToken := auth.ExtractToken(r, allowQuery)
			if reqToken == "" {
				logger.Warn().Str(log.FieldEvent, "auth.missing_token").Msg("authorization header missing")
				s.audit.AuthMissing(r)
				writeUnauthorized(w)
				return
			}
			if !auth.AuthorizeToken(reqToken, token) {
				logger.Warn().Str(log.FieldEvent, "auth.invalid_token").Msg("invalid api token")
				s.audit.AuthFailure(r, "invalid token")
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
