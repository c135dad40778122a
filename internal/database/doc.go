// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package database provides the DuckDB-backed catalogue store: books,
// users and ratings, plus the aggregate queries the stats endpoints and
// the recommendation loader consume.
//
// The store is the system of record for raw catalogue data only. The
// recommendation model is always rebuilt in memory from the ratings
// table; it is never persisted here.
package database
