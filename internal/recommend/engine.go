// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package recommend

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Engine produces ranked, explainable book recommendations from the
// snapshot held by a State. It is stateless apart from configuration and
// safe for concurrent use; every call works against one immutable
// snapshot taken at entry.
type Engine struct {
	state  *State
	config Config
	logger zerolog.Logger
}

// NewEngine creates an engine bound to a dataset state.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(state *State, cfg Config, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Engine{
		state:  state,
		config: cfg,
		logger: logger.With().Str("component", "recommend").Logger(),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Recommend returns up to topN books for the user, ranked by predicted
// rating. k is the neighbor count; both parameters fall back to configured
// defaults when <= 0 and are capped at configured maxima.
//
// Error conditions: ErrNotLoaded, *UnknownUserError, *NoNeighborsError,
// *NoCandidatesError. All are expected outcomes, not failures.
func (e *Engine) Recommend(userID, k, topN int) ([]Recommendation, error) {
	snap, ok := e.state.Snapshot()
	if !ok {
		return nil, ErrNotLoaded
	}
	return e.recommendOn(snap, userID, k, topN)
}

// recommendOn runs the recommendation pipeline against one snapshot.
// Callers that combine the result with other reads of the same model
// (Validate, Explain) pass the snapshot they already hold, so a reload
// landing mid-call can never mix generations.
func (e *Engine) recommendOn(snap *Snapshot, userID, k, topN int) ([]Recommendation, error) {
	start := time.Now()

	row, ok := snap.Matrix.UserPosition(userID)
	if !ok {
		return nil, &UnknownUserError{UserID: userID}
	}

	k = clamp(k, e.config.DefaultK, e.config.MaxK)
	topN = clamp(topN, e.config.DefaultTopN, e.config.MaxTopN)

	neighbors := selectNeighbors(snap, row, k)
	if len(neighbors) == 0 {
		return nil, &NoNeighborsError{UserID: userID}
	}

	candidates := predictCandidates(snap.Matrix, row, neighbors)
	if len(candidates) == 0 {
		return nil, &NoCandidatesError{UserID: userID}
	}

	// Rank by predicted rating descending; ties break on ascending ISBN
	// so results are reproducible across runs.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].predicted != candidates[j].predicted {
			return candidates[i].predicted > candidates[j].predicted
		}
		return candidates[i].isbn < candidates[j].isbn
	})

	recs := make([]Recommendation, 0, topN)
	for _, c := range candidates {
		if len(recs) == topN {
			break
		}
		// Candidates without catalogue metadata are dropped: metadata
		// completeness is not guaranteed, notably for synthetic data.
		book, ok := snap.Books[c.isbn]
		if !ok {
			continue
		}
		recs = append(recs, Recommendation{
			ISBN:            c.isbn,
			Title:           book.Title,
			Author:          book.Author,
			Year:            book.Year,
			Publisher:       book.Publisher,
			PredictedRating: c.predicted,
		})
	}

	e.logger.Debug().
		Int("user_id", userID).
		Int("k", k).
		Int("top_n", topN).
		Int("neighbors", len(neighbors)).
		Int("candidates", len(candidates)).
		Int("returned", len(recs)).
		Dur("elapsed", time.Since(start)).
		Msg("recommendation complete")

	return recs, nil
}

// candidate is an unrated book with its predicted rating.
type candidate struct {
	isbn      string
	predicted float64
}

// selectNeighbors picks the k users most similar to the target row,
// excluding the target itself and every non-positive similarity. Ties on
// similarity break by ascending user id for determinism.
func selectNeighbors(snap *Snapshot, row, k int) []neighbor {
	sims := snap.Similarity.RawRowView(row)

	neighbors := make([]neighbor, 0, len(sims))
	for pos, sim := range sims {
		if pos == row || sim <= 0 {
			continue
		}
		neighbors = append(neighbors, neighbor{
			pos:        pos,
			userID:     snap.Matrix.UserAt(pos),
			similarity: sim,
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].similarity != neighbors[j].similarity {
			return neighbors[i].similarity > neighbors[j].similarity
		}
		return neighbors[i].userID < neighbors[j].userID
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}

// predictCandidates scores every book the target user has not rated as
// the similarity-weighted average of the neighbors that did rate it.
// Books no selected neighbor rated are excluded entirely; a prediction is
// never defaulted to 0.
func predictCandidates(m *Matrix, row int, neighbors []neighbor) []candidate {
	cols := m.BookCount()
	candidates := make([]candidate, 0, cols)

	for col := 0; col < cols; col++ {
		if m.At(row, col) > 0 {
			continue // already rated
		}

		var num, den float64
		for _, n := range neighbors {
			rating := m.At(n.pos, col)
			if rating <= 0 {
				continue
			}
			num += n.similarity * rating
			den += n.similarity
		}
		if den == 0 {
			continue
		}

		candidates = append(candidates, candidate{
			isbn:      m.BookAt(col),
			predicted: num / den,
		})
	}

	return candidates
}

// clamp applies the default for non-positive values and the maximum cap.
func clamp(v, def, max int) int {
	if v <= 0 {
		v = def
	}
	if v > max {
		v = max
	}
	return v
}
