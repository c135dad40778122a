// Shelfwise - Book Catalogue and Recommendation Service
// Copyright 2026 Shelfwise Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Command server runs the Shelfwise HTTP service: the DuckDB catalogue
// store, the CSV importer, the collaborative-filtering recommendation
// engine and the badger response cache, all under a suture supervision
// tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shelfwise/shelfwise/internal/api"
	"github.com/shelfwise/shelfwise/internal/cache"
	"github.com/shelfwise/shelfwise/internal/config"
	"github.com/shelfwise/shelfwise/internal/database"
	"github.com/shelfwise/shelfwise/internal/importer"
	"github.com/shelfwise/shelfwise/internal/logging"
	"github.com/shelfwise/shelfwise/internal/recommend"
	"github.com/shelfwise/shelfwise/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("data_dir", cfg.Data.Dir).
		Bool("cache_enabled", cfg.Cache.Enabled).
		Bool("admin_auth", cfg.Security.AdminToken != "").
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	state := recommend.NewState(logging.Logger())
	engineCfg := recommend.DefaultConfig()
	engineCfg.DefaultK = cfg.Recommend.DefaultK
	engineCfg.MaxK = cfg.Recommend.MaxK
	engineCfg.DefaultTopN = cfg.Recommend.DefaultTopN
	engineCfg.MaxTopN = cfg.Recommend.MaxTopN

	engine, err := recommend.NewEngine(state, engineCfg, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid recommendation configuration")
	}

	// Warm start: if the catalogue already holds ratings from a previous
	// run, build the model now instead of waiting for an explicit load.
	warmStart(db, state, cfg.Data.DefaultRows)

	var recCache *cache.RecommendationCache
	if cfg.Cache.Enabled {
		recCache, err = cache.New(&cfg.Cache)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open recommendation cache")
		}
		defer func() {
			if err := recCache.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing cache")
			}
		}()
	}

	imp := importer.NewImporter(db, logging.Logger())
	handler := api.NewHandler(cfg, db, state, engine, imp, recCache)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	slogger := slog.New(logging.NewSlogHandler())
	tree := supervisor.NewTree(slogger, supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	if recCache != nil {
		tree.AddMaintenanceService(supervisor.NewCacheGCService(recCache, 5*time.Minute, logging.Logger()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting Shelfwise")

	errCh := tree.ServeBackground(ctx)
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
		os.Exit(1)
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}

	logging.Info().Msg("Shutdown complete")
}

// warmStart rebuilds the model from stored ratings. Failure is not
// fatal; the service starts unloaded and answers loads normally.
func warmStart(db *database.DB, state *recommend.State, rowLimit int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	count, err := db.CountRatings(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Warm start skipped; could not count stored ratings")
		return
	}
	if count == 0 {
		return
	}

	stats, err := state.LoadFrom(ctx, db, rowLimit)
	if err != nil {
		logging.Warn().Err(err).Msg("Warm start failed; waiting for explicit load")
		return
	}
	logging.Info().
		Int("users", stats.Users).
		Int("books", stats.Books).
		Int("ratings", stats.Ratings).
		Msg("Model rebuilt from stored ratings")
}
