// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/shelfwise/shelfwise/internal/database"
	"github.com/shelfwise/shelfwise/internal/recommend"
)

// Expected dump file names.
const (
	BooksFile   = "Books.csv"
	RatingsFile = "Book-Ratings.csv"
	UsersFile   = "Users.csv"
)

// newDumpReader wraps a Latin-1 CSV stream in a configured csv.Reader.
// LazyQuotes because the dump contains unescaped quotes in titles.
func newDumpReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(r))
	cr.Comma = ';'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr
}

// readRows streams CSV records past the header row into handle. handle
// reports whether the row was usable; unusable rows are counted as
// skipped. maxRows > 0 caps the usable rows.
func readRows(r io.Reader, maxRows int, handle func(record []string) bool) (read, skipped int, err error) {
	cr := newDumpReader(r)

	header := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A row the CSV layer itself cannot parse is skipped like any
			// other malformed row.
			skipped++
			continue
		}
		if header {
			header = false
			continue
		}
		if handle(record) {
			read++
		} else {
			skipped++
		}
		if maxRows > 0 && read >= maxRows {
			break
		}
	}
	return read, skipped, nil
}

// ReadBooks parses a Books.csv stream.
func ReadBooks(r io.Reader) (books []recommend.Book, skipped int, err error) {
	_, skipped, err = readRows(r, 0, func(record []string) bool {
		if len(record) < 5 {
			return false
		}
		isbn := strings.TrimSpace(record[0])
		title := strings.TrimSpace(record[1])
		if isbn == "" || title == "" {
			return false
		}
		year, _ := strconv.Atoi(strings.TrimSpace(record[3]))
		b := recommend.Book{
			ISBN:      isbn,
			Title:     title,
			Author:    strings.TrimSpace(record[2]),
			Year:      year,
			Publisher: strings.TrimSpace(record[4]),
		}
		if len(record) > 5 {
			b.ImageS = strings.TrimSpace(record[5])
		}
		if len(record) > 6 {
			b.ImageM = strings.TrimSpace(record[6])
		}
		if len(record) > 7 {
			b.ImageL = strings.TrimSpace(record[7])
		}
		books = append(books, b)
		return true
	})
	if err != nil {
		return nil, skipped, fmt.Errorf("reading books: %w", err)
	}
	return books, skipped, nil
}

// ReadRatings parses a Book-Ratings.csv stream. maxRows > 0 caps the
// ingested rows. Rows with a rating outside [0, 10] are rejected here;
// downstream components assume the scale holds.
func ReadRatings(r io.Reader, maxRows int) (triples []recommend.RatingTriple, skipped int, err error) {
	_, skipped, err = readRows(r, maxRows, func(record []string) bool {
		if len(record) < 3 {
			return false
		}
		userID, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return false
		}
		isbn := strings.TrimSpace(record[1])
		if isbn == "" {
			return false
		}
		rating, err := strconv.Atoi(strings.TrimSpace(record[2]))
		if err != nil || rating < 0 || rating > 10 {
			return false
		}
		triples = append(triples, recommend.RatingTriple{UserID: userID, ISBN: isbn, Rating: rating})
		return true
	})
	if err != nil {
		return nil, skipped, fmt.Errorf("reading ratings: %w", err)
	}
	return triples, skipped, nil
}

// ReadUsers parses a Users.csv stream. The age column is frequently the
// literal "NULL"; that maps to a nil Age, not a skip.
func ReadUsers(r io.Reader) (users []database.User, skipped int, err error) {
	_, skipped, err = readRows(r, 0, func(record []string) bool {
		if len(record) < 2 {
			return false
		}
		userID, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return false
		}
		u := database.User{ID: userID, Location: strings.TrimSpace(record[1])}
		if len(record) > 2 {
			if age, err := strconv.Atoi(strings.TrimSpace(record[2])); err == nil && age > 0 {
				u.Age = &age
			}
		}
		users = append(users, u)
		return true
	})
	if err != nil {
		return nil, skipped, fmt.Errorf("reading users: %w", err)
	}
	return users, skipped, nil
}
