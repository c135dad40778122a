// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package api provides the HTTP surface: chi routing, request
// validation, the standard response envelope and the handlers that tie
// the catalogue store, importer, recommendation engine and response
// cache together.
package api

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shelfwise/shelfwise/internal/cache"
	"github.com/shelfwise/shelfwise/internal/config"
	"github.com/shelfwise/shelfwise/internal/database"
	"github.com/shelfwise/shelfwise/internal/importer"
	"github.com/shelfwise/shelfwise/internal/middleware"
	"github.com/shelfwise/shelfwise/internal/recommend"
)

// Handler bundles the dependencies the HTTP handlers need. Cache may be
// nil when disabled; every cache touch checks for that.
type Handler struct {
	cfg      *config.Config
	db       *database.DB
	state    *recommend.State
	engine   *recommend.Engine
	importer *importer.Importer
	cache    *cache.RecommendationCache

	// loadMu serializes the import+load pipeline so a second load
	// request is rejected instead of queued, matching the engine's
	// single-load policy.
	loadMu    sync.Mutex
	startTime time.Time
}

// NewHandler creates a Handler. cache may be nil.
func NewHandler(cfg *config.Config, db *database.DB, state *recommend.State, engine *recommend.Engine, imp *importer.Importer, recCache *cache.RecommendationCache) *Handler {
	return &Handler{
		cfg:       cfg,
		db:        db,
		state:     state,
		engine:    engine,
		importer:  imp,
		cache:     recCache,
		startTime: time.Now(),
	}
}

// Router builds the full route tree with the middleware stack.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.Security.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Admin-Token", "X-Request-ID"},
		MaxAge:         86400,
	}))

	// Health endpoints get permissive rate limiting so monitors can
	// poll freely.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(h.rateLimit(1000, time.Minute))
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.rateLimit(h.cfg.Security.RateLimitReqs, h.cfg.Security.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)

		r.Route("/datasets", func(r chi.Router) {
			r.With(h.adminOnly).Post("/load", h.DatasetLoad)
			r.Get("/status", h.DatasetStatus)
			r.Get("/users", h.DatasetUsers)
			r.Post("/recommendations", h.Recommendations)
			r.Post("/validate-recommendations", h.ValidateRecommendations)
			r.Post("/explain-recommendations", h.ExplainRecommendations)
			r.Post("/diagnose-user", h.DiagnoseUser)
		})

		r.Route("/books", func(r chi.Router) {
			r.Get("/", h.ListBooks)
			r.Get("/top-rated", h.TopRatedBooks)
			r.Get("/{isbn}", h.GetBook)
			r.Get("/{isbn}/stats", h.GetBookStats)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/most-active", h.MostActiveUsers)
			r.Get("/{id}/stats", h.GetUserStats)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/overview", h.StatsOverview)
			r.Get("/rating-distribution", h.RatingDistribution)
		})

		r.With(h.adminOnly).Post("/ratings", h.AddRating)
	})

	// Prometheus scrape endpoint, outside the instrumented group so the
	// scraper does not inflate its own metrics.
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// rateLimit returns an IP-keyed httprate limiter, or a no-op when rate
// limiting is disabled in config.
func (h *Handler) rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if h.cfg.Security.RateLimitDisabled || requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window, httprate.WithKeyFuncs(httprate.KeyByIP))
}

// adminOnly requires the X-Admin-Token header to match the configured
// admin token. An empty configured token disables the check, which is
// only acceptable in development.
func (h *Handler) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.cfg.Security.AdminToken
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		presented := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			NewResponseWriter(w, r).Unauthorized("Admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
