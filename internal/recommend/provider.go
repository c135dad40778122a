// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package recommend

import (
	"context"
	"fmt"
)

// Note: This package has no dependencies on other internal packages. The
// DataProvider interface lets the database layer feed loads without
// creating circular imports.

// DataProvider supplies the raw catalogue data a load consumes. Typically
// implemented by the database layer.
type DataProvider interface {
	// RatingTriples returns rating rows, capped at limit when limit > 0.
	RatingTriples(ctx context.Context, limit int) ([]RatingTriple, error)

	// BookIndex returns book metadata keyed by ISBN.
	BookIndex(ctx context.Context) (map[string]Book, error)
}

// LoadFrom fetches triples and metadata from the provider and installs
// them via Load. Fetching happens before the load lock is taken, so a
// concurrent load is only detected once the data is in hand.
func (s *State) LoadFrom(ctx context.Context, provider DataProvider, rowLimit int) (Stats, error) {
	triples, err := provider.RatingTriples(ctx, rowLimit)
	if err != nil {
		return Stats{}, fmt.Errorf("fetching ratings: %w", err)
	}
	books, err := provider.BookIndex(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("fetching books: %w", err)
	}
	return s.Load(triples, books, rowLimit)
}
