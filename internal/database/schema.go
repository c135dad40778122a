// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createSchema creates the catalogue tables and indexes. All columns are
// defined in the initial CREATE TABLE statements; there is no migration
// machinery because the store can always be rebuilt from the source CSVs.
func (db *DB) createSchema() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS books (
			isbn        VARCHAR PRIMARY KEY,
			title       VARCHAR NOT NULL,
			author      VARCHAR NOT NULL DEFAULT '',
			year        INTEGER NOT NULL DEFAULT 0,
			publisher   VARCHAR NOT NULL DEFAULT '',
			image_url_s VARCHAR NOT NULL DEFAULT '',
			image_url_m VARCHAR NOT NULL DEFAULT '',
			image_url_l VARCHAR NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			user_id  INTEGER PRIMARY KEY,
			location VARCHAR NOT NULL DEFAULT '',
			age      INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS ratings (
			user_id INTEGER NOT NULL,
			isbn    VARCHAR NOT NULL,
			rating  INTEGER NOT NULL CHECK (rating BETWEEN 0 AND 10),
			PRIMARY KEY (user_id, isbn)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_isbn ON ratings(isbn)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_user ON ratings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_books_author ON books(author)`,
	}

	for _, q := range queries {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
