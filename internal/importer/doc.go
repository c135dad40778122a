// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package importer reads the Book-Crossing CSV dump (Books.csv,
// Book-Ratings.csv, Users.csv) into the catalogue store.
//
// The dump is semicolon-separated and Latin-1 encoded. Malformed rows
// are skipped and counted rather than failing the import; ratings
// outside the 0-10 scale are rejected at this boundary so the
// recommendation core never sees them.
package importer
