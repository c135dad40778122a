// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package recommend

import "fmt"

// Config contains the request-shaping parameters of the engine.
type Config struct {
	// DefaultK is the neighbor count used when a request passes k <= 0.
	DefaultK int `json:"default_k"`

	// MaxK caps the neighbor count of any request.
	MaxK int `json:"max_k"`

	// DefaultTopN is the result count used when a request passes top_n <= 0.
	DefaultTopN int `json:"default_top_n"`

	// MaxTopN caps the result count of any request.
	MaxTopN int `json:"max_top_n"`

	// Policy holds the diagnostic thresholds.
	Policy QualityPolicy `json:"policy"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		DefaultK:    10,
		MaxK:        200,
		DefaultTopN: 10,
		MaxTopN:     100,
		Policy:      DefaultQualityPolicy(),
	}
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	if c.DefaultK < 1 {
		return fmt.Errorf("default_k must be at least 1, got %d", c.DefaultK)
	}
	if c.MaxK < c.DefaultK {
		return fmt.Errorf("max_k (%d) must be >= default_k (%d)", c.MaxK, c.DefaultK)
	}
	if c.DefaultTopN < 1 {
		return fmt.Errorf("default_top_n must be at least 1, got %d", c.DefaultTopN)
	}
	if c.MaxTopN < c.DefaultTopN {
		return fmt.Errorf("max_top_n (%d) must be >= default_top_n (%d)", c.MaxTopN, c.DefaultTopN)
	}
	return c.Policy.Validate()
}

// QualityPolicy is the table of thresholds driving the validation, explain
// and diagnosis views. These are product policy constants, not derived
// values; override individual fields to tune the reports.
//
// The defaults reproduce the behavior of the original catalogue backend:
// a "high" rating is >= 4 on the 0-10 scale, fewer than 3
// positive-similarity neighbors is penalized, and matrix density below 1%
// (sparsity above 99%) is penalized.
type QualityPolicy struct {
	// HighRating is the minimum rating treated as an endorsement when
	// explaining a recommendation.
	HighRating int `json:"high_rating"`

	// Neighbor-count thresholds for diagnosis.
	MinNeighbors  int `json:"min_neighbors"`  // below this: strong penalty
	GoodNeighbors int `json:"good_neighbors"` // below this: mild penalty

	// DiagnoseNeighborWindow is how many top neighbors the diagnosis view
	// inspects.
	DiagnoseNeighborWindow int `json:"diagnose_neighbor_window"`

	// Similarity thresholds (percent, 0-100) for diagnosis.
	LowSimilarityPct      float64 `json:"low_similarity_pct"`
	ModerateSimilarityPct float64 `json:"moderate_similarity_pct"`

	// User activity thresholds (rated-book counts).
	MinUserRatings    int `json:"min_user_ratings"`
	GoodUserRatings   int `json:"good_user_ratings"`
	VeryActiveRatings int `json:"very_active_ratings"`

	// SparseSparsityPct is the sparsity percentage above which the matrix
	// is considered too sparse (99 means less than 1% of cells filled).
	SparseSparsityPct float64 `json:"sparse_sparsity_pct"`

	// Diagnosis penalties subtracted from a perfect score of 100.
	FewNeighborsPenalty       int `json:"few_neighbors_penalty"`
	SomeNeighborsPenalty      int `json:"some_neighbors_penalty"`
	LowSimilarityPenalty      int `json:"low_similarity_penalty"`
	ModerateSimilarityPenalty int `json:"moderate_similarity_penalty"`
	FewRatingsPenalty         int `json:"few_ratings_penalty"`
	SomeRatingsPenalty        int `json:"some_ratings_penalty"`
	SparseDataPenalty         int `json:"sparse_data_penalty"`

	// Validation scoring thresholds on the mean predicted rating.
	HighConfidenceAvg     float64 `json:"high_confidence_avg"`
	ModerateConfidenceAvg float64 `json:"moderate_confidence_avg"`

	// Author diversity thresholds (percent) for validation scoring.
	GoodDiversityPct     float64 `json:"good_diversity_pct"`
	ModerateDiversityPct float64 `json:"moderate_diversity_pct"`

	// Confidence labels on individual predictions in the explain view.
	VeryHighPrediction float64 `json:"very_high_prediction"`
	HighPrediction     float64 `json:"high_prediction"`
	MediumPrediction   float64 `json:"medium_prediction"`

	// Reliability labels on the diagnosis quality score.
	HighReliabilityScore   int `json:"high_reliability_score"`
	MediumReliabilityScore int `json:"medium_reliability_score"`
}

// DefaultQualityPolicy returns the thresholds used in production.
func DefaultQualityPolicy() QualityPolicy {
	return QualityPolicy{
		HighRating:             4,
		MinNeighbors:           3,
		GoodNeighbors:          5,
		DiagnoseNeighborWindow: 20,
		LowSimilarityPct:       30,
		ModerateSimilarityPct:  50,
		MinUserRatings:         5,
		GoodUserRatings:        10,
		VeryActiveRatings:      20,
		SparseSparsityPct:      99,

		FewNeighborsPenalty:       40,
		SomeNeighborsPenalty:      20,
		LowSimilarityPenalty:      30,
		ModerateSimilarityPenalty: 15,
		FewRatingsPenalty:         20,
		SomeRatingsPenalty:        10,
		SparseDataPenalty:         10,

		HighConfidenceAvg:     7.5,
		ModerateConfidenceAvg: 6.5,
		GoodDiversityPct:      70,
		ModerateDiversityPct:  50,

		VeryHighPrediction: 8.5,
		HighPrediction:     7.5,
		MediumPrediction:   6.5,

		HighReliabilityScore:   70,
		MediumReliabilityScore: 40,
	}
}

// Validate checks the policy for values that would break scoring.
func (p *QualityPolicy) Validate() error {
	if p.HighRating < 0 || p.HighRating > 10 {
		return fmt.Errorf("high_rating must be within the 0-10 scale, got %d", p.HighRating)
	}
	if p.MinNeighbors < 0 || p.GoodNeighbors < p.MinNeighbors {
		return fmt.Errorf("neighbor thresholds out of order: min=%d good=%d", p.MinNeighbors, p.GoodNeighbors)
	}
	if p.DiagnoseNeighborWindow < 1 {
		return fmt.Errorf("diagnose_neighbor_window must be at least 1, got %d", p.DiagnoseNeighborWindow)
	}
	if p.SparseSparsityPct <= 0 || p.SparseSparsityPct > 100 {
		return fmt.Errorf("sparse_sparsity_pct must be in (0, 100], got %g", p.SparseSparsityPct)
	}
	return nil
}
