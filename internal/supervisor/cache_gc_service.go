// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// GCTarget is the slice of the cache this service needs: one GC pass,
// reporting whether anything was reclaimed.
type GCTarget interface {
	RunGC() (bool, error)
}

// CacheGCService periodically compacts the cache's value log. Badger
// only reclaims value log space when asked, so a disk-backed cache left
// alone grows until restart.
type CacheGCService struct {
	target   GCTarget
	interval time.Duration
	logger   zerolog.Logger
}

// NewCacheGCService creates the GC loop. Interval defaults to 5 minutes.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCacheGCService(target GCTarget, interval time.Duration, logger zerolog.Logger) *CacheGCService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CacheGCService{
		target:   target,
		interval: interval,
		logger:   logger.With().Str("component", "cache-gc").Logger(),
	}
}

// Serve implements suture.Service. GC failures are logged, not fatal;
// the loop keeps its schedule.
func (s *CacheGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			reclaimed, err := s.target.RunGC()
			if err != nil {
				s.logger.Warn().Err(err).Msg("cache gc pass failed")
				continue
			}
			if reclaimed {
				s.logger.Debug().Msg("cache gc reclaimed space")
			}
		}
	}
}

func (s *CacheGCService) String() string {
	return "cache-gc"
}
