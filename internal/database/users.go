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
)

// User is one catalogue user. Age is a pointer because the source data
// leaves it blank for a large share of users.
type User struct {
	ID       int    `json:"user_id"`
	Location string `json:"location"`
	Age      *int   `json:"age,omitempty"`
}

// ActiveUser pairs a user id with their rating activity for the
// most-active listing.
type ActiveUser struct {
	UserID      int     `json:"user_id"`
	Location    string  `json:"location"`
	RatingCount int     `json:"rating_count"`
	AvgRating   float64 `json:"avg_rating"`
}

// UpsertUsers inserts or replaces users in one transaction. Returns the
// number of rows written.
func (db *DB) UpsertUsers(ctx context.Context, users []User) (int, error) {
	if len(users) == 0 {
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
		INSERT OR REPLACE INTO users (user_id, location, age) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	written := 0
	for _, u := range users {
		var age any
		if u.Age != nil {
			age = *u.Age
		}
		if _, err := stmt.ExecContext(ctx, u.ID, u.Location, age); err != nil {
			return 0, fmt.Errorf("inserting user %d: %w", u.ID, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

// GetUser returns one user by id, or ErrNotFound.
func (db *DB) GetUser(ctx context.Context, userID int) (User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		u   User
		age sql.NullInt64
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT user_id, location, age FROM users WHERE user_id = ?`, userID).
		Scan(&u.ID, &u.Location, &age)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("querying user %d: %w", userID, err)
	}
	if age.Valid {
		v := int(age.Int64)
		u.Age = &v
	}
	return u, nil
}

// CountUsers returns the number of stored users.
func (db *DB) CountUsers(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// SampleUserIDs returns user ids that actually have ratings, ordered by
// id. Useful for trying out the recommendation endpoints.
func (db *DB) SampleUserIDs(ctx context.Context, limit int) ([]int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM ratings ORDER BY user_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sampling user ids: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MostActiveUsers returns the users with the most ratings, ordered by
// rating count descending then user id.
func (db *DB) MostActiveUsers(ctx context.Context, limit int) ([]ActiveUser, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT r.user_id,
			COALESCE(MAX(u.location), ''),
			COUNT(*),
			AVG(r.rating)
		FROM ratings r
		LEFT JOIN users u ON u.user_id = r.user_id
		GROUP BY r.user_id
		ORDER BY COUNT(*) DESC, r.user_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying most active users: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var users []ActiveUser
	for rows.Next() {
		var u ActiveUser
		if err := rows.Scan(&u.UserID, &u.Location, &u.RatingCount, &u.AvgRating); err != nil {
			return nil, fmt.Errorf("scanning active user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
