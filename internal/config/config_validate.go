// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package config

import (
	"fmt"
)

// Validate checks the configuration for invalid or inconsistent values.
// It is called by Load() after all layers are merged; call it manually when
// constructing a Config by hand in tests.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive, got %v", c.Server.ReadTimeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive, got %v", c.Server.ShutdownTimeout)
	}

	if c.Database.Threads < 0 {
		return fmt.Errorf("database.threads must not be negative, got %d", c.Database.Threads)
	}

	if c.Data.DefaultRows < 0 {
		return fmt.Errorf("data.default_rows must not be negative, got %d", c.Data.DefaultRows)
	}

	if c.Recommend.DefaultK < 1 {
		return fmt.Errorf("recommend.default_k must be at least 1, got %d", c.Recommend.DefaultK)
	}
	if c.Recommend.MaxK < c.Recommend.DefaultK {
		return fmt.Errorf("recommend.max_k (%d) must be >= recommend.default_k (%d)",
			c.Recommend.MaxK, c.Recommend.DefaultK)
	}
	if c.Recommend.DefaultTopN < 1 {
		return fmt.Errorf("recommend.default_top_n must be at least 1, got %d", c.Recommend.DefaultTopN)
	}
	if c.Recommend.MaxTopN < c.Recommend.DefaultTopN {
		return fmt.Errorf("recommend.max_top_n (%d) must be >= recommend.default_top_n (%d)",
			c.Recommend.MaxTopN, c.Recommend.DefaultTopN)
	}

	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when cache is enabled, got %v", c.Cache.TTL)
	}

	if c.API.DefaultPageSize < 1 {
		return fmt.Errorf("api.default_page_size must be at least 1, got %d", c.API.DefaultPageSize)
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api.max_page_size (%d) must be >= api.default_page_size (%d)",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}

	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("security.rate_limit_reqs must be at least 1, got %d", c.Security.RateLimitReqs)
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("security.rate_limit_window must be positive, got %v", c.Security.RateLimitWindow)
		}
	}

	return nil
}
