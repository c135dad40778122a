// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/database"
)

// Stats holds the outcome of one import run.
type Stats struct {
	Books          int           `json:"books"`
	BooksSkipped   int           `json:"books_skipped"`
	Users          int           `json:"users"`
	UsersSkipped   int           `json:"users_skipped"`
	Ratings        int           `json:"ratings"`
	RatingsSkipped int           `json:"ratings_skipped"`
	Elapsed        time.Duration `json:"-"`
}

// Importer loads the CSV dump into the catalogue store.
type Importer struct {
	db     *database.DB
	logger zerolog.Logger
}

// NewImporter creates an importer writing to db.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewImporter(db *database.DB, logger zerolog.Logger) *Importer {
	return &Importer{
		db:     db,
		logger: logger.With().Str("component", "importer").Logger(),
	}
}

// Import reads Books.csv, Book-Ratings.csv and Users.csv from dir and
// upserts them into the store. maxRatingRows > 0 caps the ingested
// rating rows. Users.csv is optional; the other two are required.
func (i *Importer) Import(ctx context.Context, dir string, maxRatingRows int) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	if err := i.importBooks(ctx, filepath.Join(dir, BooksFile), stats); err != nil {
		return nil, err
	}
	if err := i.importRatings(ctx, filepath.Join(dir, RatingsFile), maxRatingRows, stats); err != nil {
		return nil, err
	}
	if err := i.importUsers(ctx, filepath.Join(dir, UsersFile), stats); err != nil {
		return nil, err
	}

	stats.Elapsed = time.Since(start)
	i.logger.Info().
		Int("books", stats.Books).
		Int("ratings", stats.Ratings).
		Int("users", stats.Users).
		Int("skipped", stats.BooksSkipped+stats.RatingsSkipped+stats.UsersSkipped).
		Dur("elapsed", stats.Elapsed).
		Msg("import complete")
	return stats, nil
}

func (i *Importer) importBooks(ctx context.Context, path string, stats *Stats) error {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	books, skipped, err := ReadBooks(f)
	if err != nil {
		return err
	}
	written, err := i.db.UpsertBooks(ctx, books)
	if err != nil {
		return fmt.Errorf("storing books: %w", err)
	}
	stats.Books = written
	stats.BooksSkipped = skipped
	return nil
}

func (i *Importer) importRatings(ctx context.Context, path string, maxRows int, stats *Stats) error {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	triples, skipped, err := ReadRatings(f, maxRows)
	if err != nil {
		return err
	}
	written, err := i.db.UpsertRatings(ctx, triples)
	if err != nil {
		return fmt.Errorf("storing ratings: %w", err)
	}
	stats.Ratings = written
	stats.RatingsSkipped = skipped
	return nil
}

func (i *Importer) importUsers(ctx context.Context, path string, stats *Stats) error {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		if os.IsNotExist(err) {
			i.logger.Warn().Str("path", path).Msg("users file missing, skipping")
			return nil
		}
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	users, skipped, err := ReadUsers(f)
	if err != nil {
		return err
	}
	written, err := i.db.UpsertUsers(ctx, users)
	if err != nil {
		return fmt.Errorf("storing users: %w", err)
	}
	stats.Users = written
	stats.UsersSkipped = skipped
	return nil
}
