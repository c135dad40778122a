// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/config"
	"github.com/shelfwise/shelfwise/internal/recommend"
)

// testDBSemaphore serializes database creation. Concurrent DuckDB CGO
// calls under CI resource pressure can hang.
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB creates an in-memory test database. The semaphore is held
// for the whole test lifecycle so only one test has an active DuckDB
// connection at a time.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      "",
		MaxMemory: "512MB",
		Threads:   2,
	}

	db, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return db
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func seedCatalogue(t *testing.T, db *DB) {
	t.Helper()
	ctx := testContext(t)

	books := []recommend.Book{
		{ISBN: "1111", Title: "First Book", Author: "Author A", Year: 1999, Publisher: "Pub A"},
		{ISBN: "2222", Title: "Second Book", Author: "Author B", Year: 2004, Publisher: "Pub B"},
		{ISBN: "3333", Title: "Third Book", Author: "Author C", Year: 2011, Publisher: "Pub C"},
	}
	if n, err := db.UpsertBooks(ctx, books); err != nil || n != 3 {
		t.Fatalf("UpsertBooks = (%d, %v), want (3, nil)", n, err)
	}

	age := 34
	users := []User{
		{ID: 1, Location: "lisbon, portugal", Age: &age},
		{ID: 2, Location: "porto, portugal"},
		{ID: 3, Location: "madrid, spain"},
	}
	if n, err := db.UpsertUsers(ctx, users); err != nil || n != 3 {
		t.Fatalf("UpsertUsers = (%d, %v), want (3, nil)", n, err)
	}

	triples := []recommend.RatingTriple{
		{UserID: 1, ISBN: "1111", Rating: 8},
		{UserID: 1, ISBN: "2222", Rating: 6},
		{UserID: 2, ISBN: "1111", Rating: 9},
		{UserID: 2, ISBN: "2222", Rating: 7},
		{UserID: 2, ISBN: "3333", Rating: 5},
		{UserID: 3, ISBN: "3333", Rating: 9},
	}
	if n, err := db.UpsertRatings(ctx, triples); err != nil || n != 6 {
		t.Fatalf("UpsertRatings = (%d, %v), want (6, nil)", n, err)
	}
}

func TestDB_PingAndClose(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Ping(testContext(t)); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestDB_BookCRUD(t *testing.T) {
	db := setupTestDB(t)
	seedCatalogue(t, db)
	ctx := testContext(t)

	book, err := db.GetBook(ctx, "1111")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if book.Title != "First Book" || book.Author != "Author A" {
		t.Fatalf("book = %+v", book)
	}

	if _, err := db.GetBook(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetBook(nope) err = %v, want ErrNotFound", err)
	}

	count, err := db.CountBooks(ctx)
	if err != nil || count != 3 {
		t.Fatalf("CountBooks = (%d, %v), want (3, nil)", count, err)
	}

	// Upsert replaces on conflicting ISBN.
	if _, err := db.UpsertBooks(ctx, []recommend.Book{
		{ISBN: "1111", Title: "First Book Revised", Author: "Author A"},
	}); err != nil {
		t.Fatalf("UpsertBooks: %v", err)
	}
	book, err = db.GetBook(ctx, "1111")
	if err != nil || book.Title != "First Book Revised" {
		t.Fatalf("after upsert: (%+v, %v)", book, err)
	}
}

func TestDB_ListBooksSearch(t *testing.T) {
	db := setupTestDB(t)
	seedCatalogue(t, db)
	ctx := testContext(t)

	all, err := db.ListBooks(ctx, "", 10, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListBooks all = (%d, %v), want 3", len(all), err)
	}
	if all[0].ISBN != "1111" {
		t.Fatalf("books must be ISBN-ordered, got %s first", all[0].ISBN)
	}

	hits, err := db.ListBooks(ctx, "second", 10, 0)
	if err != nil || len(hits) != 1 || hits[0].ISBN != "2222" {
		t.Fatalf("search = (%+v, %v), want single 2222", hits, err)
	}

	byAuthor, err := db.ListBooks(ctx, "author c", 10, 0)
	if err != nil || len(byAuthor) != 1 || byAuthor[0].ISBN != "3333" {
		t.Fatalf("author search = (%+v, %v), want single 3333", byAuthor, err)
	}
}

func TestDB_BookIndex(t *testing.T) {
	db := setupTestDB(t)
	seedCatalogue(t, db)

	index, err := db.BookIndex(testContext(t))
	if err != nil {
		t.Fatalf("BookIndex: %v", err)
	}
	if len(index) != 3 {
		t.Fatalf("index size = %d, want 3", len(index))
	}
	if index["2222"].Title != "Second Book" {
		t.Fatalf("index[2222] = %+v", index["2222"])
	}
}

func TestDB_RatingTriples(t *testing.T) {
	db := setupTestDB(t)
	seedCatalogue(t, db)
	ctx := testContext(t)

	triples, err := db.RatingTriples(ctx, 0)
	if err != nil || len(triples) != 6 {
		t.Fatalf("RatingTriples = (%d, %v), want 6", len(triples), err)
	}
	// Deterministic (user_id, isbn) order.
	if triples[0].UserID != 1 || triples[0].ISBN != "1111" {
		t.Fatalf("first triple = %+v", triples[0])
	}

	capped, err := db.RatingTriples(ctx, 4)
	if err != nil || len(capped) != 4 {
		t.Fatalf("capped RatingTriples = (%d, %v), want 4", len(capped), err)
	}
}

func TestDB_RatingUpsertReplaces(t *testing.T) {
	db := setupTestDB(t)
	seedCatalogue(t, db)
	ctx := testContext(t)

	if err := db.AddRating(ctx, recommend.RatingTriple{UserID: 1, ISBN: "1111", Rating: 3}); err != nil {
		t.Fatalf("AddRating: %v", err)
	}

	count, err := db.CountRatings(ctx)
	if err != nil || count != 6 {
		t.Fatalf("CountRatings = (%d, %v), want 6 after replace", count, err)
	}

	triples, err := db.RatingTriples(ctx, 0)
	if err != nil {
		t.Fatalf("RatingTriples: %v", err)
	}
	for _, tr := range triples {
		if tr.UserID == 1 && tr.ISBN == "1111" && tr.Rating != 3 {
			t.Fatalf("rating not replaced: %+v", tr)
		}
	}
}

func TestDB_RatingStats(t *testing.T) {
	db := setupTestDB(t)
	seedCatalogue(t, db)
	ctx := testContext(t)

	bookStats, err := db.GetBookRatingStats(ctx, "1111")
	if err != nil {
		t.Fatalf("GetBookRatingStats: %v", err)
	}
	if bookStats.RatingCount != 2 || bookStats.AvgRating != 8.5 {
		t.Fatalf("book stats = %+v, want count 2 avg 8.5", bookStats)
	}
	if bookStats.Title != "First Book" {
		t.Fatalf("book stats title = %s", bookStats.Title)
	}

	if _, err := db.GetBookRatingStats(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing book stats err = %v, want ErrNotFound", err)
	}

	userStats, err := db.GetUserRatingStats(ctx, 2)
	if err != nil {
		t.Fatalf("GetUserRatingStats: %v", err)
	}
	if userStats.RatingCount != 3 || userStats.MinRating != 5 || userStats.MaxRating != 9 {
		t.Fatalf("user stats = %+v", userStats)
	}

	if _, err := db.GetUserRatingStats(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user stats err = %v, want ErrNotFound", err)
	}
}

func TestDB_TopRatedBooks(t *testing.T) {
	db := setupTestDB(t)
	seedCatalogue(t, db)
	ctx := testContext(t)

	top, err := db.TopRatedBooks(ctx, 2, 10)
	if err != nil {
		t.Fatalf("TopRatedBooks: %v", err)
	}
	// Only 1111 (avg 8.5), 2222 (avg 6.5) and 3333 (avg 7) have >= 2
	// ratings; ordered by average descending.
	if len(top) != 3 {
		t.Fatalf("top = %d entries, want 3", len(top))
	}
	if top[0].ISBN != "1111" || top[1].ISBN != "3333" || top[2].ISBN != "2222" {
		t.Fatalf("order = %s, %s, %s", top[0].ISBN, top[1].ISBN, top[2].ISBN)
	}

	// Every book has exactly 2 raters, so a floor of 3 filters them all.
	strict, err := db.TopRatedBooks(ctx, 3, 10)
	if err != nil || len(strict) != 0 {
		t.Fatalf("strict top = (%d, %v), want empty", len(strict), err)
	}
}

func TestDB_Users(t *testing.T) {
	db := setupTestDB(t)
	seedCatalogue(t, db)
	ctx := testContext(t)

	u, err := db.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Location != "lisbon, portugal" || u.Age == nil || *u.Age != 34 {
		t.Fatalf("user = %+v", u)
	}

	u2, err := db.GetUser(ctx, 2)
	if err != nil || u2.Age != nil {
		t.Fatalf("user 2 = (%+v, %v), want nil age", u2, err)
	}

	if _, err := db.GetUser(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user err = %v, want ErrNotFound", err)
	}

	ids, err := db.SampleUserIDs(ctx, 2)
	if err != nil || len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("SampleUserIDs = (%v, %v)", ids, err)
	}

	active, err := db.MostActiveUsers(ctx, 10)
	if err != nil {
		t.Fatalf("MostActiveUsers: %v", err)
	}
	if len(active) != 3 || active[0].UserID != 2 || active[0].RatingCount != 3 {
		t.Fatalf("active = %+v", active)
	}
}

func TestDB_OverviewStats(t *testing.T) {
	db := setupTestDB(t)
	seedCatalogue(t, db)

	s, err := db.GetOverviewStats(testContext(t))
	if err != nil {
		t.Fatalf("GetOverviewStats: %v", err)
	}
	if s.Books != 3 || s.Users != 3 || s.Ratings != 6 {
		t.Fatalf("overview = %+v", s)
	}
	if s.DistinctRaters != 3 || s.RatedBooks != 3 {
		t.Fatalf("overview = %+v", s)
	}
	if s.AvgRating <= 0 {
		t.Fatalf("avg rating = %g, want positive", s.AvgRating)
	}
}

func TestDB_RatingDistribution(t *testing.T) {
	db := setupTestDB(t)
	seedCatalogue(t, db)

	dist, err := db.RatingDistribution(testContext(t))
	if err != nil {
		t.Fatalf("RatingDistribution: %v", err)
	}
	if dist[9] != 2 || dist[8] != 1 || dist[5] != 1 {
		t.Fatalf("distribution = %v", dist)
	}
}

func TestDB_FeedsRecommenderLoad(t *testing.T) {
	// The store implements recommend.DataProvider; a LoadFrom against it
	// must produce a working model.
	db := setupTestDB(t)
	seedCatalogue(t, db)

	var provider recommend.DataProvider = db
	state := recommend.NewState(zerolog.Nop())

	stats, err := state.LoadFrom(testContext(t), provider, 0)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if stats.Users != 3 || stats.Books != 3 || stats.Ratings != 6 {
		t.Fatalf("stats = %+v", stats)
	}
}
