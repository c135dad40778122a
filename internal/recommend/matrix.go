// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package recommend

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Matrix is the dense user-by-book rating table with bidirectional lookup
// indices. Rows are distinct user ids in ascending order, columns distinct
// ISBNs in ascending order; a cell holds the user's rating for that book,
// or 0 when there is none.
//
// Modeling assumption: cell value 0 means "unrated". The source dataset
// also permits 0 as an explicit rating, which this representation cannot
// distinguish; that ambiguity is inherited from the origin data and
// flagged for product-level clarification rather than resolved here.
//
// A Matrix is built once per load and never mutated afterwards.
type Matrix struct {
	users []int    // row position -> user id, ascending
	books []string // column position -> ISBN, ascending

	userIndex map[int]int    // user id -> row position
	bookIndex map[string]int // ISBN -> column position

	data    *mat.Dense // nil when the matrix is empty in either dimension
	ratings int        // count of non-zero cells
}

// BuildMatrix constructs a Matrix from raw rating triples.
//
// rowLimit > 0 caps how many source rows are ingested (in input order),
// bounding memory and startup time for exploratory loads; rowLimit <= 0
// ingests everything. Duplicate (user, isbn) pairs resolve last-write-wins.
// Rating range validation belongs to the ingestion boundary, not here.
//
// An empty input produces a Matrix with zero rows and/or columns;
// downstream components treat that as "not loaded".
func BuildMatrix(triples []RatingTriple, rowLimit int) *Matrix {
	if rowLimit > 0 && len(triples) > rowLimit {
		triples = triples[:rowLimit]
	}

	userSet := make(map[int]struct{})
	bookSet := make(map[string]struct{})
	for _, t := range triples {
		userSet[t.UserID] = struct{}{}
		bookSet[t.ISBN] = struct{}{}
	}

	users := make([]int, 0, len(userSet))
	for id := range userSet {
		users = append(users, id)
	}
	sort.Ints(users)

	books := make([]string, 0, len(bookSet))
	for isbn := range bookSet {
		books = append(books, isbn)
	}
	sort.Strings(books)

	m := &Matrix{
		users:     users,
		books:     books,
		userIndex: make(map[int]int, len(users)),
		bookIndex: make(map[string]int, len(books)),
	}
	for pos, id := range users {
		m.userIndex[id] = pos
	}
	for pos, isbn := range books {
		m.bookIndex[isbn] = pos
	}

	if len(users) == 0 || len(books) == 0 {
		return m
	}

	m.data = mat.NewDense(len(users), len(books), nil)
	for _, t := range triples {
		row := m.userIndex[t.UserID]
		col := m.bookIndex[t.ISBN]
		prev := m.data.At(row, col)
		if prev == 0 && t.Rating != 0 {
			m.ratings++
		} else if prev != 0 && t.Rating == 0 {
			m.ratings--
		}
		m.data.Set(row, col, float64(t.Rating))
	}

	return m
}

// UserCount returns the number of matrix rows.
func (m *Matrix) UserCount() int { return len(m.users) }

// BookCount returns the number of matrix columns.
func (m *Matrix) BookCount() int { return len(m.books) }

// RatingCount returns the number of non-zero cells.
func (m *Matrix) RatingCount() int { return m.ratings }

// Empty reports whether the matrix has no rows or no columns.
func (m *Matrix) Empty() bool { return m.data == nil }

// Density returns the fraction of non-zero cells, in [0, 1].
func (m *Matrix) Density() float64 {
	total := len(m.users) * len(m.books)
	if total == 0 {
		return 0
	}
	return float64(m.ratings) / float64(total)
}

// UserPosition returns the row position for a user id.
func (m *Matrix) UserPosition(userID int) (int, bool) {
	pos, ok := m.userIndex[userID]
	return pos, ok
}

// BookPosition returns the column position for an ISBN.
func (m *Matrix) BookPosition(isbn string) (int, bool) {
	pos, ok := m.bookIndex[isbn]
	return pos, ok
}

// UserAt returns the user id at a row position.
func (m *Matrix) UserAt(pos int) int { return m.users[pos] }

// BookAt returns the ISBN at a column position.
func (m *Matrix) BookAt(pos int) string { return m.books[pos] }

// Users returns the ordered user ids. The returned slice is shared; do not
// modify it.
func (m *Matrix) Users() []int { return m.users }

// Books returns the ordered ISBNs. The returned slice is shared; do not
// modify it.
func (m *Matrix) Books() []string { return m.books }

// At returns the cell value at (row, col).
func (m *Matrix) At(row, col int) float64 {
	return m.data.At(row, col)
}

// Rating returns the rating a user gave a book, or 0 when either is
// unknown or no rating exists.
func (m *Matrix) Rating(userID int, isbn string) float64 {
	if m.data == nil {
		return 0
	}
	row, ok := m.userIndex[userID]
	if !ok {
		return 0
	}
	col, ok := m.bookIndex[isbn]
	if !ok {
		return 0
	}
	return m.data.At(row, col)
}

// RatedCount returns how many books the user at the given row has rated.
func (m *Matrix) RatedCount(row int) int {
	if m.data == nil {
		return 0
	}
	count := 0
	for col := 0; col < len(m.books); col++ {
		if m.data.At(row, col) > 0 {
			count++
		}
	}
	return count
}

// Dense exposes the underlying dense matrix for the similarity
// computation. Nil when the matrix is empty.
func (m *Matrix) Dense() *mat.Dense { return m.data }
