// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shelfwise/shelfwise/internal/cache"
	"github.com/shelfwise/shelfwise/internal/logging"
	"github.com/shelfwise/shelfwise/internal/metrics"
	"github.com/shelfwise/shelfwise/internal/recommend"
)

// cacheType label used for the recommendation response cache metrics.
const recommendationCacheType = "recommendations"

// LoadResult is the response body of a successful dataset load.
type LoadResult struct {
	Status     string          `json:"status"`
	Message    string          `json:"message"`
	Statistics recommend.Stats `json:"statistics"`
	Import     any             `json:"import,omitempty"`
	ElapsedMs  float64         `json:"elapsed_ms"`
}

// DatasetLoad handles POST /api/v1/datasets/load. It runs the CSV
// import into DuckDB and rebuilds the in-memory model from the stored
// ratings. Only one load may run at a time.
func (h *Handler) DatasetLoad(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req LoadRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	if !h.loadMu.TryLock() {
		metrics.RecordDatasetLoad("rejected", 0, 0, 0, 0, 0)
		rw.Conflict(ErrCodeLoadInProgress, "A dataset load is already in progress")
		return
	}
	defer h.loadMu.Unlock()

	dir := req.Source
	if dir == "" {
		dir = h.cfg.Data.Dir
	}
	rowLimit := req.NRows
	switch {
	case rowLimit == 0:
		rowLimit = h.cfg.Data.DefaultRows
	case rowLimit < 0:
		rowLimit = 0 // load everything
	}

	start := time.Now()

	importStats, err := h.importer.Import(r.Context(), dir, rowLimit)
	if err != nil {
		metrics.RecordDatasetLoad("error", 0, 0, 0, 0, 0)
		logging.Ctx(r.Context()).Error().Err(err).Str("dir", dir).Msg("dataset import failed")
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("Import failed: %v", err))
		return
	}

	stats, err := h.state.LoadFrom(r.Context(), h.db, rowLimit)
	if err != nil {
		metrics.RecordDatasetLoad("error", 0, 0, 0, 0, 0)
		logging.Ctx(r.Context()).Error().Err(err).Msg("model load failed")
		rw.InternalError(fmt.Sprintf("Model load failed: %v", err))
		return
	}

	elapsed := time.Since(start)
	status := h.state.Status()
	metrics.RecordDatasetLoad("success", elapsed, stats.Users, stats.Books, stats.Ratings, status.Generation)

	rw.Success(LoadResult{
		Status:     "loaded",
		Message:    fmt.Sprintf("Loaded %d ratings from %d users over %d books", stats.Ratings, stats.Users, stats.Books),
		Statistics: stats,
		Import:     importStats,
		ElapsedMs:  float64(elapsed.Microseconds()) / 1000.0,
	})
}

// DatasetStatus handles GET /api/v1/datasets/status.
func (h *Handler) DatasetStatus(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.state.Status())
}

// DatasetUsers handles GET /api/v1/datasets/users. It returns a sample
// of user ids that have ratings, for trying out the recommendation
// endpoints.
func (h *Handler) DatasetUsers(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit := queryInt(r, "limit", h.cfg.API.DefaultPageSize)
	if limit < 1 || limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.DefaultPageSize
	}

	ids, err := h.db.SampleUserIDs(r.Context(), limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(map[string]any{"user_ids": ids, "count": len(ids)})
}

// RecommendationsResult is the response body of a recommendation request.
type RecommendationsResult struct {
	UserID          int                       `json:"user_id"`
	K               int                       `json:"k"`
	TopN            int                       `json:"top_n"`
	Count           int                       `json:"count"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
	Cached          bool                      `json:"cached"`
}

// Recommendations handles POST /api/v1/datasets/recommendations.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req RecommendationsRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	// Normalize to the engine's effective parameters so cache keys are
	// stable regardless of how the request spelled the defaults.
	cfg := h.engine.Config()
	k := clampParam(req.K, cfg.DefaultK, cfg.MaxK)
	topN := clampParam(req.TopN, cfg.DefaultTopN, cfg.MaxTopN)

	var generation uint64
	if snap, ok := h.state.Snapshot(); ok {
		generation = snap.Generation
	}

	if h.cache != nil && generation > 0 {
		if recs, err := h.cache.Get(generation, req.UserID, k, topN); err == nil {
			metrics.RecordCacheHit(recommendationCacheType)
			rw.Success(RecommendationsResult{
				UserID:          req.UserID,
				K:               k,
				TopN:            topN,
				Count:           len(recs),
				Recommendations: recs,
				Cached:          true,
			})
			return
		} else if !errors.Is(err, cache.ErrMiss) {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("recommendation cache read failed")
		}
		metrics.RecordCacheMiss(recommendationCacheType)
	}

	start := time.Now()
	recs, err := h.engine.Recommend(req.UserID, k, topN)
	if err != nil {
		metrics.RecordRecommendation(engineErrorOutcome(err), time.Since(start))
		h.writeEngineError(rw, err)
		return
	}
	metrics.RecordRecommendation("success", time.Since(start))

	if h.cache != nil && generation > 0 {
		if err := h.cache.Set(generation, req.UserID, k, topN, recs); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("recommendation cache write failed")
		}
	}

	rw.Success(RecommendationsResult{
		UserID:          req.UserID,
		K:               k,
		TopN:            topN,
		Count:           len(recs),
		Recommendations: recs,
		Cached:          false,
	})
}

// ValidateRecommendations handles POST /api/v1/datasets/validate-recommendations.
func (h *Handler) ValidateRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req ValidateRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	report, err := h.engine.Validate(req.UserID, req.TopN)
	if err != nil {
		h.writeEngineError(rw, err)
		return
	}
	rw.Success(report)
}

// ExplainRecommendations handles POST /api/v1/datasets/explain-recommendations.
func (h *Handler) ExplainRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req ExplainRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	report, err := h.engine.Explain(req.UserID, req.TopN, req.ShowSimilarUsers)
	if err != nil {
		h.writeEngineError(rw, err)
		return
	}
	rw.Success(report)
}

// DiagnoseUser handles POST /api/v1/datasets/diagnose-user.
func (h *Handler) DiagnoseUser(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req DiagnoseRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	report, err := h.engine.Diagnose(req.UserID)
	if err != nil {
		h.writeEngineError(rw, err)
		return
	}
	rw.Success(report)
}

// writeEngineError maps the engine's typed errors onto the envelope.
func (h *Handler) writeEngineError(rw *ResponseWriter, err error) {
	var unknownUser *recommend.UnknownUserError
	var noNeighbors *recommend.NoNeighborsError
	var noCandidates *recommend.NoCandidatesError

	switch {
	case errors.Is(err, recommend.ErrNotLoaded):
		rw.Conflict(ErrCodeDatasetNotLoaded, "No dataset loaded; call /api/v1/datasets/load first")
	case errors.Is(err, recommend.ErrLoadInProgress):
		rw.Conflict(ErrCodeLoadInProgress, "A dataset load is in progress; retry shortly")
	case errors.As(err, &unknownUser):
		rw.Error(http.StatusNotFound, ErrCodeUnknownUser, err.Error())
	case errors.As(err, &noNeighbors):
		rw.Error(http.StatusUnprocessableEntity, ErrCodeNoNeighbors, err.Error())
	case errors.As(err, &noCandidates):
		rw.Error(http.StatusUnprocessableEntity, ErrCodeNoCandidates, err.Error())
	default:
		rw.InternalError("Recommendation failed")
	}
}

// engineErrorOutcome classifies an engine error for the outcome metric label.
func engineErrorOutcome(err error) string {
	var unknownUser *recommend.UnknownUserError
	var noNeighbors *recommend.NoNeighborsError
	var noCandidates *recommend.NoCandidatesError

	switch {
	case errors.Is(err, recommend.ErrNotLoaded):
		return "not_loaded"
	case errors.As(err, &unknownUser):
		return "unknown_user"
	case errors.As(err, &noNeighbors):
		return "no_neighbors"
	case errors.As(err, &noCandidates):
		return "no_candidates"
	default:
		return "error"
	}
}

// clampParam mirrors the engine's parameter normalization.
func clampParam(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
