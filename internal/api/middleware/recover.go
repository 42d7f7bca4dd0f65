// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"runtime/debug"

	zkhlog "github.com/ManuGH/zkhbridge/internal/log"
)

// Recoverer turns handler panics into a 500 response and an error log line.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger := zkhlog.WithComponentFromContext(r.Context(), "api")
			logger.Error().
				Str(zkhlog.FieldEvent, "http.panic").
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str(zkhlog.FieldPath, r.URL.Path).
				Msg("recovered from handler panic")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		}()
		next.ServeHTTP(w, r)
	})
}
