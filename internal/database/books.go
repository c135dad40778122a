// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shelfwise/shelfwise/internal/recommend"
)

// UpsertBooks inserts or replaces book metadata in one transaction.
// Returns the number of rows written.
func (db *DB) UpsertBooks(ctx context.Context, books []recommend.Book) (int, error) {
	if len(books) == 0 {
		return 0, nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO books
			(isbn, title, author, year, publisher, image_url_s, image_url_m, image_url_l)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	written := 0
	for _, b := range books {
		if b.ISBN == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			b.ISBN, b.Title, b.Author, b.Year, b.Publisher,
			b.ImageS, b.ImageM, b.ImageL); err != nil {
			return 0, fmt.Errorf("inserting book %s: %w", b.ISBN, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

// GetBook returns one book by ISBN, or ErrNotFound.
func (db *DB) GetBook(ctx context.Context, isbn string) (recommend.Book, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var b recommend.Book
	err := db.conn.QueryRowContext(ctx, `
		SELECT isbn, title, author, year, publisher, image_url_s, image_url_m, image_url_l
		FROM books WHERE isbn = ?`, isbn).
		Scan(&b.ISBN, &b.Title, &b.Author, &b.Year, &b.Publisher,
			&b.ImageS, &b.ImageM, &b.ImageL)
	if errors.Is(err, sql.ErrNoRows) {
		return recommend.Book{}, ErrNotFound
	}
	if err != nil {
		return recommend.Book{}, fmt.Errorf("querying book %s: %w", isbn, err)
	}
	return b, nil
}

// ListBooks returns books ordered by ISBN. search, when non-empty,
// filters case-insensitively on title and author.
func (db *DB) ListBooks(ctx context.Context, search string, limit, offset int) ([]recommend.Book, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT isbn, title, author, year, publisher, image_url_s, image_url_m, image_url_l
		FROM books`
	args := []any{}
	if search != "" {
		query += ` WHERE lower(title) LIKE '%' || lower(?) || '%'
			OR lower(author) LIKE '%' || lower(?) || '%'`
		args = append(args, search, search)
	}
	query += ` ORDER BY isbn LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var books []recommend.Book
	for rows.Next() {
		var b recommend.Book
		if err := rows.Scan(&b.ISBN, &b.Title, &b.Author, &b.Year, &b.Publisher,
			&b.ImageS, &b.ImageM, &b.ImageL); err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// CountBooks returns the number of catalogued books.
func (db *DB) CountBooks(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting books: %w", err)
	}
	return count, nil
}

// BookIndex returns all book metadata keyed by ISBN. This is the
// recommend.DataProvider metadata feed for a model load.
func (db *DB) BookIndex(ctx context.Context) (map[string]recommend.Book, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT isbn, title, author, year, publisher, image_url_s, image_url_m, image_url_l
		FROM books`)
	if err != nil {
		return nil, fmt.Errorf("loading book index: %w", err)
	}
	defer closeWithLog(rows, "rows")

	index := make(map[string]recommend.Book)
	for rows.Next() {
		var b recommend.Book
		if err := rows.Scan(&b.ISBN, &b.Title, &b.Author, &b.Year, &b.Publisher,
			&b.ImageS, &b.ImageM, &b.ImageL); err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		index[b.ISBN] = b
	}
	return index, rows.Err()
}
