// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package recommend

import "time"

// RatingTriple is one raw (user, book, rating) observation.
// Ratings are on the 0-10 Book-Crossing scale. A value of 0 is modeled as
// "no interaction" throughout this package even though the source data
// technically allows it as an explicit rating; see Matrix for the full
// statement of that assumption.
type RatingTriple struct {
	UserID int    `json:"user_id"`
	ISBN   string `json:"isbn"`
	Rating int    `json:"rating"`
}

// Book is the catalogue metadata joined into recommendation output.
// It is read-only reference data; the recommendation core never mutates it.
type Book struct {
	ISBN      string `json:"isbn"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Year      int    `json:"year"`
	Publisher string `json:"publisher"`
	ImageS    string `json:"image_url_s,omitempty"`
	ImageM    string `json:"image_url_m,omitempty"`
	ImageL    string `json:"image_url_l,omitempty"`
}

// Recommendation is one ranked prediction for a user. Ephemeral, computed
// per request.
type Recommendation struct {
	ISBN            string  `json:"isbn"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	Year            int     `json:"year"`
	Publisher       string  `json:"publisher"`
	PredictedRating float64 `json:"predicted_rating"`
}

// Stats summarizes a loaded snapshot.
type Stats struct {
	Users   int `json:"users"`
	Books   int `json:"books"`
	Ratings int `json:"ratings"`
}

// Status reports whether a model is installed and its shape.
type Status struct {
	Loaded     bool      `json:"loaded"`
	Stats      Stats     `json:"statistics"`
	Generation uint64    `json:"generation,omitempty"`
	LoadedAt   time.Time `json:"loaded_at,omitzero"`
}

// neighbor is a similar user selected for prediction.
type neighbor struct {
	pos        int // row position in the matrix
	userID     int
	similarity float64
}
