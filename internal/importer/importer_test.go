// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/config"
	"github.com/shelfwise/shelfwise/internal/database"
)

func writeDumpFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestImporter_Import(t *testing.T) {
	dir := t.TempDir()
	writeDumpFile(t, dir, BooksFile,
		"ISBN;Book-Title;Book-Author;Year-Of-Publication;Publisher\n"+
			"1111;First Book;Author A;1999;Pub A\n"+
			"2222;Second Book;Author B;2004;Pub B\n")
	writeDumpFile(t, dir, RatingsFile,
		"User-ID;ISBN;Book-Rating\n"+
			"1;1111;8\n"+
			"1;2222;6\n"+
			"2;1111;9\n"+
			"junk;1111;9\n")
	writeDumpFile(t, dir, UsersFile,
		"User-ID;Location;Age\n"+
			"1;lisbon, portugal;34\n"+
			"2;porto, portugal;NULL\n")

	db, err := database.New(&config.DatabaseConfig{MaxMemory: "512MB", Threads: 2})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	stats, err := NewImporter(db, zerolog.Nop()).Import(ctx, dir, 0)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if stats.Books != 2 || stats.Ratings != 3 || stats.Users != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.RatingsSkipped != 1 {
		t.Fatalf("RatingsSkipped = %d, want 1", stats.RatingsSkipped)
	}

	count, err := db.CountRatings(ctx)
	if err != nil || count != 3 {
		t.Fatalf("CountRatings = (%d, %v), want 3", count, err)
	}
}

func TestImporter_Import_MissingRatingsFile(t *testing.T) {
	dir := t.TempDir()
	writeDumpFile(t, dir, BooksFile,
		"ISBN;Book-Title;Book-Author;Year-Of-Publication;Publisher\n"+
			"1111;First Book;Author A;1999;Pub A\n")

	db, err := database.New(&config.DatabaseConfig{MaxMemory: "512MB", Threads: 2})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if _, err := NewImporter(db, zerolog.Nop()).Import(ctx, dir, 0); err == nil {
		t.Fatal("expected error for missing ratings file")
	}
}
