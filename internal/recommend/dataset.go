// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package recommend

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Snapshot bundles everything one load produced: the rating matrix, the
// similarity table, the book metadata and the raw triples that fed the
// matrix. A snapshot is immutable once installed; reloads replace the
// whole bundle atomically so a reader never observes structures from two
// different loads.
type Snapshot struct {
	Matrix     *Matrix
	Similarity *mat.Dense
	Books      map[string]Book
	Triples    []RatingTriple
	Generation uint64
	LoadedAt   time.Time
}

// State is the process-wide holder for the currently loaded model. It owns
// the load/reload lifecycle and answers "is data ready" queries.
//
// Readers take the current snapshot pointer and keep using it for the
// duration of their request; an in-flight load never disturbs them. Only
// one load may run at a time; a second concurrent load is rejected with
// ErrLoadInProgress rather than queued.
type State struct {
	snap   atomic.Pointer[Snapshot]
	loadMu sync.Mutex
	gen    atomic.Uint64
	logger zerolog.Logger
}

// NewState creates an empty State.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewState(logger zerolog.Logger) *State {
	return &State{
		logger: logger.With().Str("component", "dataset").Logger(),
	}
}

// Load builds a rating matrix and similarity model from scratch and
// installs them as the current snapshot. rowLimit caps the ingested rating
// rows (<= 0 means all). On any failure the previous snapshot, or the
// "not loaded" state, remains authoritative.
func (s *State) Load(triples []RatingTriple, books map[string]Book, rowLimit int) (Stats, error) {
	if !s.loadMu.TryLock() {
		return Stats{}, ErrLoadInProgress
	}
	defer s.loadMu.Unlock()

	start := time.Now()

	matrix := BuildMatrix(triples, rowLimit)
	if matrix.Empty() {
		return Stats{}, fmt.Errorf("no usable ratings in input (%d rows)", len(triples))
	}

	similarity := ComputeSimilarity(matrix)

	// Keep only the triples that fed the matrix so snapshot consumers
	// see the same population the model saw.
	kept := triples
	if rowLimit > 0 && len(triples) > rowLimit {
		kept = triples[:rowLimit]
	}

	snap := &Snapshot{
		Matrix:     matrix,
		Similarity: similarity,
		Books:      books,
		Triples:    kept,
		Generation: s.gen.Add(1),
		LoadedAt:   time.Now(),
	}
	s.snap.Store(snap)

	stats := Stats{
		Users:   matrix.UserCount(),
		Books:   matrix.BookCount(),
		Ratings: matrix.RatingCount(),
	}

	s.logger.Info().
		Int("users", stats.Users).
		Int("books", stats.Books).
		Int("ratings", stats.Ratings).
		Uint64("generation", snap.Generation).
		Dur("elapsed", time.Since(start)).
		Msg("dataset loaded")

	return stats, nil
}

// Snapshot returns the current snapshot, or false when nothing is loaded.
func (s *State) Snapshot() (*Snapshot, bool) {
	snap := s.snap.Load()
	return snap, snap != nil
}

// IsLoaded reports whether a model is installed.
func (s *State) IsLoaded() bool {
	return s.snap.Load() != nil
}

// Status returns the current load state and shape. It reads the snapshot
// pointer only and never blocks on an in-flight load.
func (s *State) Status() Status {
	snap := s.snap.Load()
	if snap == nil {
		return Status{Loaded: false}
	}
	return Status{
		Loaded: true,
		Stats: Stats{
			Users:   snap.Matrix.UserCount(),
			Books:   snap.Matrix.BookCount(),
			Ratings: snap.Matrix.RatingCount(),
		},
		Generation: snap.Generation,
		LoadedAt:   snap.LoadedAt,
	}
}
