// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package recommend

import (
	"fmt"
	"sort"
)

// RatedBook is one entry of a user's rating history with catalogue
// metadata joined in.
type RatedBook struct {
	ISBN   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Rating int    `json:"rating"`
}

// ValidationChecks holds the mechanical checks run over one
// recommendation set.
type ValidationChecks struct {
	NoDuplicates       bool    `json:"no_duplicates"`
	AllUnrated         bool    `json:"all_unrated"`
	Count              int     `json:"recommendations_count"`
	AvgPredicted       float64 `json:"avg_predicted_rating"`
	MinPredicted       float64 `json:"min_predicted_rating"`
	MaxPredicted       float64 `json:"max_predicted_rating"`
	UniqueAuthors      int     `json:"unique_authors"`
	AuthorDiversityPct float64 `json:"author_diversity_percentage"`
}

// QualityAssessment is the scored summary of a validation run.
type QualityAssessment struct {
	Score   int      `json:"overall_score"`
	Rating  string   `json:"rating"`
	Reasons []string `json:"reasons"`
}

// ValidationReport is the full output of Validate.
type ValidationReport struct {
	UserID          int               `json:"user_id"`
	TotalRated      int               `json:"total_rated"`
	History         []RatedBook       `json:"history"`
	Recommendations []Recommendation  `json:"recommendations"`
	Checks          ValidationChecks  `json:"validation_checks"`
	Quality         QualityAssessment `json:"quality_assessment"`
}

// SimilarRater is a neighbor who rated a recommended book at or above the
// high-rating threshold.
type SimilarRater struct {
	UserID        int     `json:"user_id"`
	Rating        int     `json:"rating"`
	Similarity    float64 `json:"similarity_score"`
	SimilarityPct float64 `json:"similarity_percentage"`
}

// Explanation justifies one recommendation by listing the similar users
// whose high ratings drove its predicted score.
type Explanation struct {
	ISBN            string         `json:"isbn"`
	Title           string         `json:"book_title"`
	Author          string         `json:"book_author"`
	Year            int            `json:"year"`
	Publisher       string         `json:"publisher"`
	PredictedRating float64        `json:"predicted_rating"`
	Confidence      string         `json:"confidence_level"`
	TotalHighRaters int            `json:"total_high_raters"`
	SimilarRaters   []SimilarRater `json:"similar_users_who_rated_highly"`
	Reason          string         `json:"recommendation_reason"`
}

// ExplainReport is the full output of Explain.
type ExplainReport struct {
	UserID            int           `json:"user_id"`
	Explanations      []Explanation `json:"explanations"`
	AvgPredicted      float64       `json:"average_predicted_rating"`
	NeighborsExamined int           `json:"similar_users_involved"`
}

// SimilarUserAnalysis describes one neighbor in the diagnosis view.
type SimilarUserAnalysis struct {
	UserID            int     `json:"user_id"`
	Similarity        float64 `json:"similarity_score"`
	SimilarityPct     float64 `json:"similarity_percentage"`
	OverlappingBooks  int     `json:"overlapping_rated_books"`
	TheirTotalRatings int     `json:"their_total_ratings"`
}

// DiagnosisUserStats summarizes the diagnosed user's own activity.
type DiagnosisUserStats struct {
	TotalRatings  int         `json:"total_ratings"`
	TotalBooks    int         `json:"total_books_in_system"`
	RatedPct      float64     `json:"rated_percentage"`
	SampleRatings []RatedBook `json:"sample_rated_books"`
	ActivityLevel string      `json:"activity_level"`
}

// DiagnosisNeighbors summarizes the user's positive-similarity
// neighborhood.
type DiagnosisNeighbors struct {
	Count    int                   `json:"count"`
	Top      []SimilarUserAnalysis `json:"top_similar_users"`
	MaxPct   float64               `json:"max_similarity_percentage"`
	AvgPct   float64               `json:"avg_similarity_percentage"`
	Analysis string                `json:"analysis"`
}

// DiagnosisSparsity summarizes the overall matrix density.
type DiagnosisSparsity struct {
	Users       int     `json:"total_users"`
	Books       int     `json:"total_books"`
	Ratings     int     `json:"total_ratings"`
	SparsityPct float64 `json:"dataset_sparsity"`
	Analysis    string  `json:"analysis"`
}

// DiagnosisReport is the full output of Diagnose: why recommendations
// for this user are (or are not) reliable, with a 0-100 quality score.
type DiagnosisReport struct {
	UserID       int                `json:"user_id"`
	UserStats    DiagnosisUserStats `json:"user_stats"`
	Neighbors    DiagnosisNeighbors `json:"similar_users"`
	Sparsity     DiagnosisSparsity  `json:"data_sparsity"`
	Issues       []string           `json:"issues"`
	Suggestions  []string           `json:"suggestions"`
	QualityScore int                `json:"quality_score"`
	Reliability  string             `json:"recommendation_reliability"`
}

// Validate runs a recommendation for the user and checks the result set
// for structural problems: duplicate ISBNs, books the user already rated,
// weak aggregate confidence and poor author diversity. The checks are
// scored into a 0-100 quality assessment.
//
// Read-only over the current snapshot; the snapshot is taken once so the
// history and the recommendations come from the same generation.
func (e *Engine) Validate(userID, topN int) (*ValidationReport, error) {
	snap, ok := e.state.Snapshot()
	if !ok {
		return nil, ErrNotLoaded
	}

	row, ok := snap.Matrix.UserPosition(userID)
	if !ok {
		return nil, &UnknownUserError{UserID: userID}
	}

	recs, err := e.recommendOn(snap, userID, e.config.DefaultK, topN)
	if err != nil {
		return nil, err
	}

	rated := ratedBooks(snap, row, 0)

	// recs can be empty without an error when every candidate lacked
	// catalogue metadata; the aggregates below stay at their zero values
	// in that case.
	checks := ValidationChecks{
		NoDuplicates: true,
		AllUnrated:   true,
		Count:        len(recs),
	}
	if len(recs) > 0 {
		checks.MinPredicted = recs[0].PredictedRating
		seen := make(map[string]struct{}, len(recs))
		authors := make(map[string]struct{}, len(recs))
		var sum float64
		for _, r := range recs {
			if _, dup := seen[r.ISBN]; dup {
				checks.NoDuplicates = false
			}
			seen[r.ISBN] = struct{}{}
			authors[r.Author] = struct{}{}
			if snap.Matrix.Rating(userID, r.ISBN) > 0 {
				checks.AllUnrated = false
			}
			sum += r.PredictedRating
			if r.PredictedRating < checks.MinPredicted {
				checks.MinPredicted = r.PredictedRating
			}
			if r.PredictedRating > checks.MaxPredicted {
				checks.MaxPredicted = r.PredictedRating
			}
		}
		checks.AvgPredicted = sum / float64(len(recs))
		checks.UniqueAuthors = len(authors)
		checks.AuthorDiversityPct = float64(len(authors)) / float64(len(recs)) * 100
	}

	p := e.config.Policy
	score := 20 // base
	var reasons []string

	if checks.NoDuplicates {
		score += 20
		reasons = append(reasons, "no duplicate recommendations")
	} else {
		reasons = append(reasons, "duplicate recommendations found")
	}
	if checks.AllUnrated {
		score += 20
		reasons = append(reasons, "all recommended books unrated by user")
	} else {
		reasons = append(reasons, "some recommended books already rated by user")
	}
	switch {
	case checks.AvgPredicted >= p.HighConfidenceAvg:
		score += 20
		reasons = append(reasons, fmt.Sprintf("high confidence (avg rating %.2f)", checks.AvgPredicted))
	case checks.AvgPredicted >= p.ModerateConfidenceAvg:
		score += 10
		reasons = append(reasons, fmt.Sprintf("moderate confidence (avg rating %.2f)", checks.AvgPredicted))
	default:
		reasons = append(reasons, fmt.Sprintf("low confidence (avg rating %.2f)", checks.AvgPredicted))
	}
	switch {
	case checks.AuthorDiversityPct >= p.GoodDiversityPct:
		score += 20
		reasons = append(reasons, fmt.Sprintf("good author diversity (%.1f%%)", checks.AuthorDiversityPct))
	case checks.AuthorDiversityPct >= p.ModerateDiversityPct:
		score += 10
		reasons = append(reasons, fmt.Sprintf("moderate author diversity (%.1f%%)", checks.AuthorDiversityPct))
	default:
		reasons = append(reasons, fmt.Sprintf("low author diversity (%.1f%%)", checks.AuthorDiversityPct))
	}
	if score > 100 {
		score = 100
	}

	return &ValidationReport{
		UserID:          userID,
		TotalRated:      len(rated),
		History:         rated,
		Recommendations: recs,
		Checks:          checks,
		Quality: QualityAssessment{
			Score:   score,
			Rating:  validationRating(score),
			Reasons: reasons,
		},
	}, nil
}

func validationRating(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	default:
		return "Poor"
	}
}

// Explain runs a recommendation and, for each returned book, re-derives
// which of the user's neighbors rated it at or above the high-rating
// threshold, sorted by similarity descending. showSimilarUsers caps the
// listed raters per book (<= 0 falls back to 5).
func (e *Engine) Explain(userID, topN, showSimilarUsers int) (*ExplainReport, error) {
	snap, ok := e.state.Snapshot()
	if !ok {
		return nil, ErrNotLoaded
	}

	row, ok := snap.Matrix.UserPosition(userID)
	if !ok {
		return nil, &UnknownUserError{UserID: userID}
	}

	recs, err := e.recommendOn(snap, userID, e.config.DefaultK, topN)
	if err != nil {
		return nil, err
	}

	if showSimilarUsers <= 0 {
		showSimilarUsers = 5
	}
	p := e.config.Policy
	neighbors := selectNeighbors(snap, row, e.config.DefaultK)

	explanations := make([]Explanation, 0, len(recs))
	var sum float64
	for _, r := range recs {
		col, _ := snap.Matrix.BookPosition(r.ISBN)

		// Count raters at or above the threshold over the whole matrix
		// column, so the total is not limited to the neighbor set. The
		// matrix is last-write-wins per (user, book), so each user counts
		// at most once.
		totalHigh := 0
		for pos := 0; pos < snap.Matrix.UserCount(); pos++ {
			if snap.Matrix.At(pos, col) >= float64(p.HighRating) {
				totalHigh++
			}
		}

		raters := make([]SimilarRater, 0, len(neighbors))
		for _, n := range neighbors {
			rating := snap.Matrix.At(n.pos, col)
			if rating < float64(p.HighRating) {
				continue
			}
			raters = append(raters, SimilarRater{
				UserID:        n.userID,
				Rating:        int(rating),
				Similarity:    n.similarity,
				SimilarityPct: n.similarity * 100,
			})
		}
		// Neighbors are already similarity-ordered; keep that order.
		if len(raters) > showSimilarUsers {
			raters = raters[:showSimilarUsers]
		}

		reason := fmt.Sprintf("based on %d similar user(s) who rated this book highly", len(raters))
		if len(raters) == 0 {
			reason = "based on moderate ratings from similar users"
		}

		explanations = append(explanations, Explanation{
			ISBN:            r.ISBN,
			Title:           r.Title,
			Author:          r.Author,
			Year:            r.Year,
			Publisher:       r.Publisher,
			PredictedRating: r.PredictedRating,
			Confidence:      e.confidenceLevel(r.PredictedRating),
			TotalHighRaters: totalHigh,
			SimilarRaters:   raters,
			Reason:          reason,
		})
		sum += r.PredictedRating
	}

	report := &ExplainReport{
		UserID:            userID,
		Explanations:      explanations,
		NeighborsExamined: len(neighbors),
	}
	// Guard the empty-recs case; NaN would poison JSON encoding.
	if len(recs) > 0 {
		report.AvgPredicted = sum / float64(len(recs))
	}
	return report, nil
}

func (e *Engine) confidenceLevel(predicted float64) string {
	p := e.config.Policy
	switch {
	case predicted >= p.VeryHighPrediction:
		return "Very High"
	case predicted >= p.HighPrediction:
		return "High"
	case predicted >= p.MediumPrediction:
		return "Medium"
	default:
		return "Low"
	}
}

// Diagnose analyzes why recommendations for a user may be unreliable. It
// inspects the user's own activity, their positive-similarity
// neighborhood and the overall matrix density, then combines the signals
// into a 0-100 quality score using the configured policy thresholds.
// Every penalty is table-driven; see QualityPolicy.
func (e *Engine) Diagnose(userID int) (*DiagnosisReport, error) {
	snap, ok := e.state.Snapshot()
	if !ok {
		return nil, ErrNotLoaded
	}

	row, ok := snap.Matrix.UserPosition(userID)
	if !ok {
		return nil, &UnknownUserError{UserID: userID}
	}

	p := e.config.Policy
	m := snap.Matrix

	ratedCount := m.RatedCount(row)
	totalBooks := m.BookCount()
	ratedPct := float64(ratedCount) / float64(totalBooks) * 100
	sample := ratedBooks(snap, row, 10)

	neighbors := selectNeighbors(snap, row, p.DiagnoseNeighborWindow)
	analysis := make([]SimilarUserAnalysis, 0, len(neighbors))
	var simSum float64
	for _, n := range neighbors {
		overlap := 0
		for col := 0; col < totalBooks; col++ {
			if m.At(row, col) > 0 && m.At(n.pos, col) > 0 {
				overlap++
			}
		}
		analysis = append(analysis, SimilarUserAnalysis{
			UserID:            n.userID,
			Similarity:        n.similarity,
			SimilarityPct:     n.similarity * 100,
			OverlappingBooks:  overlap,
			TheirTotalRatings: m.RatedCount(n.pos),
		})
		simSum += n.similarity * 100
	}

	var maxSimPct, avgSimPct float64
	if len(analysis) > 0 {
		maxSimPct = analysis[0].SimilarityPct
		avgSimPct = simSum / float64(len(analysis))
	}

	sparsityPct := (1 - m.Density()) * 100

	var issues, suggestions []string
	if len(neighbors) < p.MinNeighbors {
		issues = append(issues, fmt.Sprintf("only %d similar users found (need at least %d)", len(neighbors), p.MinNeighbors))
		suggestions = append(suggestions, "load more data (increase the row limit on load)")
	}
	if len(neighbors) >= 1 && maxSimPct < p.LowSimilarityPct {
		issues = append(issues, fmt.Sprintf("very low max similarity (%.1f%%), users have very different tastes", maxSimPct))
		suggestions = append(suggestions, "increase the k parameter or load more data")
	}
	if ratedCount < p.MinUserRatings {
		issues = append(issues, fmt.Sprintf("user has only %d ratings (need at least %d for good results)", ratedCount, p.MinUserRatings))
		suggestions = append(suggestions, "collect more ratings from this user")
	}
	if ratedPct < 1 {
		issues = append(issues, fmt.Sprintf("user rated only %.2f%% of available books", ratedPct))
		suggestions = append(suggestions, "very sparse history, recommendations will have low confidence")
	}
	if sparsityPct > p.SparseSparsityPct {
		issues = append(issues, fmt.Sprintf("dataset is extremely sparse (%.1f%%)", sparsityPct))
		suggestions = append(suggestions, "dataset has too few ratings overall, load the full dataset")
	}
	if len(issues) == 0 {
		issues = []string{"no major issues detected"}
		suggestions = []string{"data looks good for recommendations"}
	}

	score := 100
	switch {
	case len(neighbors) < p.MinNeighbors:
		score -= p.FewNeighborsPenalty
	case len(neighbors) < p.GoodNeighbors:
		score -= p.SomeNeighborsPenalty
	}
	switch {
	case maxSimPct < p.LowSimilarityPct:
		score -= p.LowSimilarityPenalty
	case maxSimPct < p.ModerateSimilarityPct:
		score -= p.ModerateSimilarityPenalty
	}
	switch {
	case ratedCount < p.MinUserRatings:
		score -= p.FewRatingsPenalty
	case ratedCount < p.GoodUserRatings:
		score -= p.SomeRatingsPenalty
	}
	if sparsityPct > p.SparseSparsityPct {
		score -= p.SparseDataPenalty
	}
	if score < 0 {
		score = 0
	}

	return &DiagnosisReport{
		UserID: userID,
		UserStats: DiagnosisUserStats{
			TotalRatings:  ratedCount,
			TotalBooks:    totalBooks,
			RatedPct:      ratedPct,
			SampleRatings: sample,
			ActivityLevel: activityLevel(ratedCount, p),
		},
		Neighbors: DiagnosisNeighbors{
			Count:    len(neighbors),
			Top:      analysis,
			MaxPct:   maxSimPct,
			AvgPct:   avgSimPct,
			Analysis: neighborAnalysis(len(neighbors), maxSimPct, p),
		},
		Sparsity: DiagnosisSparsity{
			Users:       m.UserCount(),
			Books:       totalBooks,
			Ratings:     m.RatingCount(),
			SparsityPct: sparsityPct,
			Analysis:    sparsityAnalysis(sparsityPct, p),
		},
		Issues:       issues,
		Suggestions:  suggestions,
		QualityScore: score,
		Reliability:  reliability(score, p),
	}, nil
}

func activityLevel(ratedCount int, p QualityPolicy) string {
	switch {
	case ratedCount >= p.VeryActiveRatings:
		return "Very Active"
	case ratedCount >= p.GoodUserRatings:
		return "Active"
	case ratedCount >= p.MinUserRatings:
		return "Moderate"
	default:
		return "Low Activity"
	}
}

func neighborAnalysis(count int, maxSimPct float64, p QualityPolicy) string {
	switch {
	case count >= p.GoodNeighbors && maxSimPct >= p.ModerateSimilarityPct:
		return "good, multiple highly similar users"
	case count >= p.MinNeighbors && maxSimPct >= p.LowSimilarityPct:
		return "fair, some similar users"
	default:
		return "poor, almost no similar users"
	}
}

func sparsityAnalysis(sparsityPct float64, p QualityPolicy) string {
	switch {
	case sparsityPct > p.SparseSparsityPct:
		return "very sparse data"
	case sparsityPct > 95:
		return "sparse data"
	default:
		return "good density"
	}
}

func reliability(score int, p QualityPolicy) string {
	switch {
	case score >= p.HighReliabilityScore:
		return "High"
	case score >= p.MediumReliabilityScore:
		return "Medium"
	default:
		return "Low"
	}
}

// ratedBooks collects the user's rated books with metadata joined in,
// ordered by ISBN. limit > 0 caps the result.
func ratedBooks(snap *Snapshot, row, limit int) []RatedBook {
	m := snap.Matrix
	rated := make([]RatedBook, 0, 16)
	for col := 0; col < m.BookCount(); col++ {
		v := m.At(row, col)
		if v <= 0 {
			continue
		}
		isbn := m.BookAt(col)
		book := snap.Books[isbn]
		rated = append(rated, RatedBook{
			ISBN:   isbn,
			Title:  book.Title,
			Author: book.Author,
			Rating: int(v),
		})
		if limit > 0 && len(rated) == limit {
			break
		}
	}
	sort.Slice(rated, func(i, j int) bool { return rated[i].ISBN < rated[j].ISBN })
	return rated
}
