// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shelfwise/shelfwise/internal/database"
	"github.com/shelfwise/shelfwise/internal/logging"
	"github.com/shelfwise/shelfwise/internal/metrics"
	"github.com/shelfwise/shelfwise/internal/recommend"
)

// ListBooks handles GET /api/v1/books with optional ?search=, ?limit=
// and ?offset=. Search matches title and author case-insensitively.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit := queryInt(r, "limit", h.cfg.API.DefaultPageSize)
	if limit < 1 || limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.DefaultPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	search := r.URL.Query().Get("search")

	start := time.Now()
	books, err := h.db.ListBooks(r.Context(), search, limit, offset)
	metrics.RecordDBQuery("list_books", time.Since(start), err)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(map[string]any{
		"books":  books,
		"count":  len(books),
		"limit":  limit,
		"offset": offset,
	})
}

// GetBook handles GET /api/v1/books/{isbn}.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	isbn := chi.URLParam(r, "isbn")

	start := time.Now()
	book, err := h.db.GetBook(r.Context(), isbn)
	metrics.RecordDBQuery("get_book", time.Since(start), err)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("Book not found: " + isbn)
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(book)
}

// GetBookStats handles GET /api/v1/books/{isbn}/stats.
func (h *Handler) GetBookStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	isbn := chi.URLParam(r, "isbn")

	start := time.Now()
	stats, err := h.db.GetBookRatingStats(r.Context(), isbn)
	metrics.RecordDBQuery("book_stats", time.Since(start), err)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("Book not found: " + isbn)
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(stats)
}

// TopRatedBooks handles GET /api/v1/books/top-rated with ?min_ratings=
// and ?limit=.
func (h *Handler) TopRatedBooks(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	minRatings := queryInt(r, "min_ratings", 10)
	if minRatings < 1 {
		minRatings = 1
	}
	limit := queryInt(r, "limit", h.cfg.API.DefaultPageSize)
	if limit < 1 || limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.DefaultPageSize
	}

	start := time.Now()
	books, err := h.db.TopRatedBooks(r.Context(), minRatings, limit)
	metrics.RecordDBQuery("top_rated", time.Since(start), err)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(map[string]any{
		"books":       books,
		"count":       len(books),
		"min_ratings": minRatings,
	})
}

// GetUserStats handles GET /api/v1/users/{id}/stats.
func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || userID < 1 {
		rw.BadRequest("Invalid user id")
		return
	}

	start := time.Now()
	stats, err := h.db.GetUserRatingStats(r.Context(), userID)
	metrics.RecordDBQuery("user_stats", time.Since(start), err)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("User has no ratings")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(stats)
}

// MostActiveUsers handles GET /api/v1/users/most-active with ?limit=.
func (h *Handler) MostActiveUsers(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit := queryInt(r, "limit", h.cfg.API.DefaultPageSize)
	if limit < 1 || limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.DefaultPageSize
	}

	start := time.Now()
	users, err := h.db.MostActiveUsers(r.Context(), limit)
	metrics.RecordDBQuery("most_active", time.Since(start), err)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(map[string]any{"users": users, "count": len(users)})
}

// StatsOverview handles GET /api/v1/stats/overview.
func (h *Handler) StatsOverview(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	start := time.Now()
	overview, err := h.db.GetOverviewStats(r.Context())
	metrics.RecordDBQuery("overview", time.Since(start), err)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(overview)
}

// RatingDistribution handles GET /api/v1/stats/rating-distribution.
// Buckets are the 0-10 rating values.
func (h *Handler) RatingDistribution(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	start := time.Now()
	dist, err := h.db.RatingDistribution(r.Context())
	metrics.RecordDBQuery("rating_distribution", time.Since(start), err)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(map[string]any{"distribution": dist})
}

// AddRating handles POST /api/v1/ratings. The rating lands in the
// catalogue store immediately but the in-memory model only picks it up
// on the next load; cached recommendations for the user are dropped so
// stale responses do not outlive the write.
func (h *Handler) AddRating(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req AddRatingRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	triple := recommend.RatingTriple{
		UserID: req.UserID,
		ISBN:   req.ISBN,
		Rating: *req.Rating,
	}

	start := time.Now()
	err := h.db.AddRating(r.Context(), triple)
	metrics.RecordDBQuery("add_rating", time.Since(start), err)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	if h.cache != nil {
		if snap, ok := h.state.Snapshot(); ok {
			if err := h.cache.InvalidateUser(snap.Generation, req.UserID); err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Int("user_id", req.UserID).
					Msg("cache invalidation failed")
			}
		}
	}

	rw.Created(map[string]any{
		"user_id": req.UserID,
		"isbn":    req.ISBN,
		"rating":  *req.Rating,
		"note":    "rating stored; model updates on next dataset load",
	})
}
