// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package recommend

import (
	"errors"
	"fmt"
)

// Sentinel errors for state-level conditions. Both are expected,
// user-facing conditions rather than defects.
var (
	// ErrNotLoaded is returned when no model has been installed yet.
	// Recoverable by calling Load.
	ErrNotLoaded = errors.New("dataset not loaded")

	// ErrLoadInProgress is returned when a load request arrives while
	// another load is running. The caller should retry once the running
	// load finishes; loads are never interleaved.
	ErrLoadInProgress = errors.New("dataset load already in progress")
)

// UnknownUserError reports a user id absent from the rating matrix.
// Not recoverable without loading new data.
type UnknownUserError struct {
	UserID int
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf("user %d not found in the dataset", e.UserID)
}

// NoNeighborsError reports that a user exists but has no other user with
// positive similarity. Recoverable by widening k or loading more data.
type NoNeighborsError struct {
	UserID int
}

func (e *NoNeighborsError) Error() string {
	return fmt.Sprintf("cannot generate recommendations: user %d has no similar users with positive similarity", e.UserID)
}

// NoCandidatesError reports that the selected neighbors rated no book the
// target user has not already rated. Same recovery path as NoNeighborsError.
type NoCandidatesError struct {
	UserID int
}

func (e *NoCandidatesError) Error() string {
	return fmt.Sprintf("cannot generate recommendations: no unrated book has ratings from user %d's neighbors", e.UserID)
}
