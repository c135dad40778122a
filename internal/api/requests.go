// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

// validate is the shared validator instance. validator.Validate caches
// struct metadata and is safe for concurrent use.
var validate = validator.New()

// LoadRequest is the body of POST /api/v1/datasets/load.
//
// Source optionally overrides the configured data directory. NRows caps
// the ingested rating rows; 0 falls back to the configured default and
// -1 loads everything.
type LoadRequest struct {
	Source string `json:"source" validate:"omitempty,max=4096"`
	NRows  int    `json:"nrows" validate:"min=-1,max=100000000"`
}

// RecommendationsRequest is the body of POST /api/v1/datasets/recommendations.
// K and TopN fall back to configured defaults when omitted.
type RecommendationsRequest struct {
	UserID int `json:"user_id" validate:"required,min=1"`
	K      int `json:"k" validate:"min=0,max=10000"`
	TopN   int `json:"top_n" validate:"min=0,max=1000"`
}

// ValidateRequest is the body of POST /api/v1/datasets/validate-recommendations.
type ValidateRequest struct {
	UserID int `json:"user_id" validate:"required,min=1"`
	TopN   int `json:"top_n" validate:"min=0,max=1000"`
}

// ExplainRequest is the body of POST /api/v1/datasets/explain-recommendations.
type ExplainRequest struct {
	UserID           int `json:"user_id" validate:"required,min=1"`
	TopN             int `json:"top_n" validate:"min=0,max=1000"`
	ShowSimilarUsers int `json:"show_similar_users" validate:"min=0,max=100"`
}

// DiagnoseRequest is the body of POST /api/v1/datasets/diagnose-user.
type DiagnoseRequest struct {
	UserID int `json:"user_id" validate:"required,min=1"`
}

// AddRatingRequest is the body of POST /api/v1/ratings. Rating 0 is an
// implicit interaction, same scale as the dump format.
type AddRatingRequest struct {
	UserID int    `json:"user_id" validate:"required,min=1"`
	ISBN   string `json:"isbn" validate:"required,min=1,max=32"`
	Rating *int   `json:"rating" validate:"required,min=0,max=10"`
}

// fieldError describes one failed validation constraint.
type fieldError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
}

// decodeAndValidate decodes the JSON request body into dst and runs
// struct validation. It writes the error response itself and reports
// whether the handler should continue.
func decodeAndValidate(rw *ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rw.BadRequest(fmt.Sprintf("Invalid JSON body: %v", err))
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var details []fieldError
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			for _, fe := range verrs {
				details = append(details, fieldError{
					Field:      fe.Field(),
					Constraint: fe.Tag(),
				})
			}
		}
		rw.ValidationError("Request validation failed", details)
		return false
	}
	return true
}

// asValidationErrors unwraps a validator error. Split out so the handler
// path stays readable.
func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

// queryInt reads an integer query parameter, falling back to def when
// absent or malformed.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
