// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package database

import (
	"context"
	"fmt"
)

// OverviewStats is the catalogue-wide summary behind the stats endpoint.
type OverviewStats struct {
	Books          int     `json:"books"`
	Users          int     `json:"users"`
	Ratings        int     `json:"ratings"`
	DistinctRaters int     `json:"distinct_raters"`
	RatedBooks     int     `json:"rated_books"`
	AvgRating      float64 `json:"avg_rating"`
}

// GetOverviewStats aggregates catalogue-wide counts in one round trip.
func (db *DB) GetOverviewStats(ctx context.Context) (OverviewStats, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var s OverviewStats
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM books),
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM ratings),
			(SELECT COUNT(DISTINCT user_id) FROM ratings),
			(SELECT COUNT(DISTINCT isbn) FROM ratings),
			COALESCE((SELECT AVG(rating) FROM ratings WHERE rating > 0), 0)`).
		Scan(&s.Books, &s.Users, &s.Ratings, &s.DistinctRaters, &s.RatedBooks, &s.AvgRating)
	if err != nil {
		return OverviewStats{}, fmt.Errorf("querying overview stats: %w", err)
	}
	return s, nil
}

// RatingDistribution returns how many ratings exist per rating value,
// indexed 0 through 10.
func (db *DB) RatingDistribution(ctx context.Context) ([11]int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var dist [11]int
	rows, err := db.conn.QueryContext(ctx, `
		SELECT rating, COUNT(*) FROM ratings GROUP BY rating ORDER BY rating`)
	if err != nil {
		return dist, fmt.Errorf("querying rating distribution: %w", err)
	}
	defer closeWithLog(rows, "rows")

	for rows.Next() {
		var rating, count int
		if err := rows.Scan(&rating, &count); err != nil {
			return dist, fmt.Errorf("scanning rating distribution: %w", err)
		}
		if rating >= 0 && rating <= 10 {
			dist[rating] = count
		}
	}
	return dist, rows.Err()
}
