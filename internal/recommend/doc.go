// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package recommend implements memory-based collaborative filtering over
// the user/book rating matrix.
//
// The pipeline is: rating triples -> dense user-by-book matrix
// (BuildMatrix) -> user-by-user cosine similarity (ComputeSimilarity) ->
// immutable Snapshot installed in a State -> per-request ranked
// predictions (Engine.Recommend) -> optional validation, explanation and
// diagnosis views (Engine.Validate, Engine.Explain, Engine.Diagnose).
//
// A Snapshot is immutable once installed; State.Load builds the next
// snapshot off to the side and swaps it in atomically, so concurrent
// readers always see a consistent model and a failed load leaves the
// previous one serving. The whole model is recomputed on every load; there
// is no incremental update path, which bounds this design to user counts
// where an O(users^2) similarity table fits in memory.
package recommend
