// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package config provides centralized configuration management for Shelfwise.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Config is immutable after Load() and safe for concurrent read access from
// multiple goroutines.
package config

import (
	"time"
)

// Config holds all application configuration loaded from environment
// variables and config files.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Data      DataConfig      `koanf:"data"`
	Recommend RecommendConfig `koanf:"recommend"`
	Cache     CacheConfig     `koanf:"cache"`
	API       APIConfig       `koanf:"api"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_PORT: Listen port (default: 8095)
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds DuckDB settings for the catalogue store.
//
// Environment Variables:
//   - DUCKDB_PATH: Database file path; empty for in-memory (default: /data/shelfwise.duckdb)
//   - DUCKDB_MAX_MEMORY: Memory limit passed to DuckDB (default: 1GB)
type DatabaseConfig struct {
	// Path is the DuckDB file path. Empty string opens an in-memory
	// database, which is what tests use.
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads is the DuckDB worker thread count. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// DataConfig holds dataset file locations and ingest limits.
//
// The expected files mirror the Book-Crossing dump layout:
// Books.csv, Book-Ratings.csv and Users.csv, semicolon-separated,
// Latin-1 encoded.
type DataConfig struct {
	// Dir is the folder scanned for the three CSV files.
	Dir string `koanf:"dir"`
	// DefaultRows caps how many rating rows a load ingests when the
	// request does not say otherwise. 0 means load everything.
	DefaultRows int `koanf:"default_rows"`
}

// RecommendConfig holds recommendation engine settings.
type RecommendConfig struct {
	// DefaultK is the neighbor count used when a request omits k.
	DefaultK int `koanf:"default_k"`
	// MaxK bounds the neighbor count a request may ask for.
	MaxK int `koanf:"max_k"`
	// DefaultTopN is the result count used when a request omits top_n.
	DefaultTopN int `koanf:"default_top_n"`
	// MaxTopN bounds the result count a request may ask for.
	MaxTopN int `koanf:"max_top_n"`
}

// CacheConfig holds the badger-backed recommendation response cache settings.
type CacheConfig struct {
	Enabled bool `koanf:"enabled"`
	// Dir is the badger data directory. Empty enables badger's in-memory
	// mode (used by tests).
	Dir string        `koanf:"dir"`
	TTL time.Duration `koanf:"ttl"`
}

// APIConfig holds pagination and response limits.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds authentication and rate limiting settings.
//
// Environment Variables:
//   - ADMIN_TOKEN: Token required (X-Admin-Token header) for load and
//     mutating endpoints. Empty disables admin auth (development only).
type SecurityConfig struct {
	AdminToken        string        `koanf:"admin_token"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log level and output format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
