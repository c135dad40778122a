// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shelfwise/shelfwise/internal/recommend"
)

// BookRatingStats aggregates the ratings one book has received.
type BookRatingStats struct {
	ISBN        string  `json:"isbn"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	RatingCount int     `json:"rating_count"`
	AvgRating   float64 `json:"avg_rating"`
	MinRating   int     `json:"min_rating"`
	MaxRating   int     `json:"max_rating"`
}

// UserRatingStats aggregates one user's rating activity.
type UserRatingStats struct {
	UserID      int     `json:"user_id"`
	RatingCount int     `json:"rating_count"`
	AvgRating   float64 `json:"avg_rating"`
	MinRating   int     `json:"min_rating"`
	MaxRating   int     `json:"max_rating"`
}

// UpsertRatings writes rating triples in one transaction, replacing any
// existing (user, isbn) pair. Returns the number of rows written.
func (db *DB) UpsertRatings(ctx context.Context, triples []recommend.RatingTriple) (int, error) {
	if len(triples) == 0 {
		return 0, nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO ratings (user_id, isbn, rating) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	written := 0
	for _, t := range triples {
		if _, err := stmt.ExecContext(ctx, t.UserID, t.ISBN, t.Rating); err != nil {
			return 0, fmt.Errorf("inserting rating (%d, %s): %w", t.UserID, t.ISBN, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

// AddRating writes a single rating, replacing any existing one. The model
// sees it on the next load, not immediately.
func (db *DB) AddRating(ctx context.Context, t recommend.RatingTriple) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO ratings (user_id, isbn, rating) VALUES (?, ?, ?)`,
		t.UserID, t.ISBN, t.Rating)
	if err != nil {
		return fmt.Errorf("inserting rating (%d, %s): %w", t.UserID, t.ISBN, err)
	}
	return nil
}

// RatingTriples returns rating rows ordered by (user_id, isbn) so a row
// cap truncates deterministically. limit <= 0 returns everything. This is
// the recommend.DataProvider ratings feed.
func (db *DB) RatingTriples(ctx context.Context, limit int) ([]recommend.RatingTriple, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT user_id, isbn, rating FROM ratings ORDER BY user_id, isbn`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ratings: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var triples []recommend.RatingTriple
	for rows.Next() {
		var t recommend.RatingTriple
		if err := rows.Scan(&t.UserID, &t.ISBN, &t.Rating); err != nil {
			return nil, fmt.Errorf("scanning rating: %w", err)
		}
		triples = append(triples, t)
	}
	return triples, rows.Err()
}

// CountRatings returns the number of stored ratings.
func (db *DB) CountRatings(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM ratings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting ratings: %w", err)
	}
	return count, nil
}

// GetBookRatingStats aggregates ratings for one book, or ErrNotFound when
// the book has none.
func (db *DB) GetBookRatingStats(ctx context.Context, isbn string) (BookRatingStats, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var s BookRatingStats
	err := db.conn.QueryRowContext(ctx, `
		SELECT r.isbn,
			COALESCE(MAX(b.title), ''),
			COALESCE(MAX(b.author), ''),
			COUNT(*),
			AVG(r.rating),
			MIN(r.rating),
			MAX(r.rating)
		FROM ratings r
		LEFT JOIN books b ON b.isbn = r.isbn
		WHERE r.isbn = ?
		GROUP BY r.isbn`, isbn).
		Scan(&s.ISBN, &s.Title, &s.Author, &s.RatingCount, &s.AvgRating, &s.MinRating, &s.MaxRating)
	if errors.Is(err, sql.ErrNoRows) {
		return BookRatingStats{}, ErrNotFound
	}
	if err != nil {
		return BookRatingStats{}, fmt.Errorf("book rating stats for %s: %w", isbn, err)
	}
	return s, nil
}

// GetUserRatingStats aggregates one user's ratings, or ErrNotFound when
// the user has none.
func (db *DB) GetUserRatingStats(ctx context.Context, userID int) (UserRatingStats, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var s UserRatingStats
	err := db.conn.QueryRowContext(ctx, `
		SELECT user_id, COUNT(*), AVG(rating), MIN(rating), MAX(rating)
		FROM ratings
		WHERE user_id = ?
		GROUP BY user_id`, userID).
		Scan(&s.UserID, &s.RatingCount, &s.AvgRating, &s.MinRating, &s.MaxRating)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRatingStats{}, ErrNotFound
	}
	if err != nil {
		return UserRatingStats{}, fmt.Errorf("user rating stats for %d: %w", userID, err)
	}
	return s, nil
}

// TopRatedBooks returns the highest average-rated books with at least
// minRatings ratings, ordered by average descending then ISBN.
func (db *DB) TopRatedBooks(ctx context.Context, minRatings, limit int) ([]BookRatingStats, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if minRatings < 1 {
		minRatings = 1
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT r.isbn,
			COALESCE(MAX(b.title), ''),
			COALESCE(MAX(b.author), ''),
			COUNT(*),
			AVG(r.rating),
			MIN(r.rating),
			MAX(r.rating)
		FROM ratings r
		LEFT JOIN books b ON b.isbn = r.isbn
		WHERE r.rating > 0
		GROUP BY r.isbn
		HAVING COUNT(*) >= ?
		ORDER BY AVG(r.rating) DESC, r.isbn
		LIMIT ?`, minRatings, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top rated books: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var stats []BookRatingStats
	for rows.Next() {
		var s BookRatingStats
		if err := rows.Scan(&s.ISBN, &s.Title, &s.Author, &s.RatingCount,
			&s.AvgRating, &s.MinRating, &s.MaxRating); err != nil {
			return nil, fmt.Errorf("scanning top rated book: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
