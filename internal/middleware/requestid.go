// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package middleware provides the HTTP middleware stack: request ID
// tracking and Prometheus instrumentation. CORS, rate limiting and
// panic recovery come from the chi ecosystem and are wired directly on
// the router.
package middleware

import (
	"net/http"

	"github.com/shelfwise/shelfwise/internal/logging"
)

// RequestID generates a unique ID for each request, adds it to the
// response header and the request context, and wires it into the logging
// package so every log line of the request carries it. An upstream
// X-Request-ID is honored.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logging.GenerateRequestID()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
