// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package cache provides the badger-backed recommendation response
// cache. Entries are keyed by (model generation, user, k, topN); a
// reload bumps the generation, so entries for the old model simply
// stop being addressed and expire via TTL. Only computed responses are
// cached; the model itself is never persisted.
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/shelfwise/shelfwise/internal/config"
	"github.com/shelfwise/shelfwise/internal/logging"
	"github.com/shelfwise/shelfwise/internal/recommend"
)

const recommendationKeyPrefix = "rec:"

// ErrMiss is returned when no entry exists for a key.
var ErrMiss = errors.New("cache miss")

// RecommendationCache stores computed recommendation lists in badger.
type RecommendationCache struct {
	db  *badger.DB
	ttl time.Duration
}

// New opens the cache. An empty cfg.Dir runs badger in memory; badger's
// own verbose logger is disabled in favor of ours.
func New(cfg *config.CacheConfig) (*RecommendationCache, error) {
	var opts badger.Options
	if cfg.Dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	logging.Info().Str("dir", cfg.Dir).Dur("ttl", ttl).Msg("recommendation cache ready")
	return &RecommendationCache{db: db, ttl: ttl}, nil
}

// Close closes the underlying badger store.
func (c *RecommendationCache) Close() error {
	return c.db.Close()
}

// RunGC reclaims badger value log space. Reports whether a rewrite
// happened. In-memory mode has no value log, which badger reports as an
// error; both that and ErrNoRewrite are quiet no-ops.
func (c *RecommendationCache) RunGC() (bool, error) {
	err := c.db.RunValueLogGC(0.5)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return false, nil
	}
	return false, fmt.Errorf("value log gc: %w", err)
}

func recommendationKey(generation uint64, userID, k, topN int) []byte {
	return []byte(fmt.Sprintf("%s%d:%d:%d:%d", recommendationKeyPrefix, generation, userID, k, topN))
}

// Get returns the cached recommendations for the key, or ErrMiss.
func (c *RecommendationCache) Get(generation uint64, userID, k, topN int) ([]recommend.Recommendation, error) {
	var recs []recommend.Recommendation

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recommendationKey(generation, userID, k, topN))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMiss
		}
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &recs)
		})
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// Set stores recommendations under the key with the configured TTL.
func (c *RecommendationCache) Set(generation uint64, userID, k, topN int, recs []recommend.Recommendation) error {
	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(recommendationKey(generation, userID, k, topN), data).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
}

// InvalidateUser drops every cached entry for one user in the given
// generation. Used when a rating is added so the user sees the effect of
// their own activity on the next computed response, not a stale one.
func (c *RecommendationCache) InvalidateUser(generation uint64, userID int) error {
	prefix := []byte(fmt.Sprintf("%s%d:%d:", recommendationKeyPrefix, generation, userID))

	return c.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
}
