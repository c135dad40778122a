// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package recommend

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ComputeSimilarity derives the symmetric user-by-user cosine similarity
// table from a rating matrix.
//
// Zero cells contribute zero magnitude; the raw rating vectors are used
// directly, without mean-centering. The computation is vectorized: each
// row is normalized to unit length and the whole table is produced by a
// single dense product S = R * R^T, which keeps the O(users^2 * books)
// work inside one BLAS-backed multiplication instead of a pairwise loop.
//
// A user whose rating vector is all zeros has undefined cosine similarity
// (0/0); such rows are left unnormalized at zero, so they come out with
// similarity 0 to every user, including themselves. No NaN ever enters the
// result. For all other users the diagonal is 1 within floating-point
// tolerance; neighbor selection must still exclude it explicitly.
//
// Returns nil for an empty matrix.
func ComputeSimilarity(m *Matrix) *mat.Dense {
	if m == nil || m.Empty() {
		return nil
	}

	rows, cols := m.data.Dims()

	// Row-normalized copy of the rating matrix.
	normalized := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		row := m.data.RawRowView(i)
		var sumSq float64
		for _, v := range row {
			sumSq += v * v
		}
		if sumSq == 0 {
			continue // all-zero vector stays zero
		}
		inv := 1 / math.Sqrt(sumSq)
		out := normalized.RawRowView(i)
		for j, v := range row {
			out[j] = v * inv
		}
	}

	similarity := mat.NewDense(rows, rows, nil)
	similarity.Mul(normalized, normalized.T())
	return similarity
}
