// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the body of the /health endpoint.
type HealthStatus struct {
	Status            string  `json:"status"`
	DatabaseConnected bool    `json:"database_connected"`
	DatasetLoaded     bool    `json:"dataset_loaded"`
	CacheEnabled      bool    `json:"cache_enabled"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// Health handles GET /api/v1/health. The service is healthy when the
// database answers; a missing dataset degrades it but the process can
// still serve loads and catalogue reads.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil
	loaded := h.state.IsLoaded()

	status := "healthy"
	switch {
	case !dbConnected:
		status = "unhealthy"
	case !loaded:
		status = "degraded"
	}

	NewResponseWriter(w, r).Success(HealthStatus{
		Status:            status,
		DatabaseConnected: dbConnected,
		DatasetLoaded:     loaded,
		CacheEnabled:      h.cache != nil,
		UptimeSeconds:     time.Since(h.startTime).Seconds(),
	})
}

// HealthLive handles GET /api/v1/health/live. Liveness means only that
// the process answers.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady handles GET /api/v1/health/ready. Readiness requires the
// database; recommendation readiness is reported but does not gate it.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.db == nil || h.db.Ping(r.Context()) != nil {
		rw.ServiceUnavailable("Database not reachable")
		return
	}
	rw.Success(map[string]any{
		"status":         "ready",
		"dataset_loaded": h.state.IsLoaded(),
	})
}
