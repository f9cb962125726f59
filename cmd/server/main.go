// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

// Command server runs the Resona recommendation service: the hybrid
// engine, its preference learner, and the HTTP API, all under a
// supervision tree.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/resona-fm/resona/internal/api"
	"github.com/resona-fm/resona/internal/cache"
	"github.com/resona-fm/resona/internal/config"
	"github.com/resona-fm/resona/internal/logging"
	"github.com/resona-fm/resona/internal/recommend"
	"github.com/resona-fm/resona/internal/recommend/content"
	"github.com/resona-fm/resona/internal/recommend/diversity"
	"github.com/resona-fm/resona/internal/recommend/preferences"
	"github.com/resona-fm/resona/internal/recommend/similarity"
	"github.com/resona-fm/resona/internal/recommend/sources"
	"github.com/resona-fm/resona/internal/recommend/storage"
	"github.com/resona-fm/resona/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "resona: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logging.Init(cfg.Logging)
	logger := logging.Logger()
	logger.Info().
		Int("port", cfg.Server.Port).
		Bool("storage", cfg.Storage.Enabled).
		Msg("starting resona")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Durable preference storage is optional; without it the learner
	// runs purely in memory.
	var persister preferences.Persister
	if cfg.Storage.Enabled {
		store, db, err := storage.Open(cfg.Storage.Path, logger)
		if err != nil {
			return fmt.Errorf("opening preference storage: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("closing badger")
			}
		}()
		persister = store
	}

	learner := preferences.NewLearner(cfg.Engine.Learning, persister, logger)
	if err := learner.Load(ctx); err != nil {
		return fmt.Errorf("restoring preference state: %w", err)
	}

	memo, err := cache.New(cfg.Cache.Size)
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}

	engine, err := recommend.NewEngine(cfg.Engine, logger)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	catalog := sources.NewMemoryCatalog()
	index := similarity.NewIndex(cfg.Engine.Similarity)

	engine.RegisterSource(sources.NewCollaborative(index, catalog, memo))
	engine.RegisterSource(sources.NewContentBased(content.NewScorer(), catalog, memo))
	engine.RegisterSource(sources.NewPopularity(catalog))
	engine.RegisterSource(sources.NewRecency(catalog))
	engine.SetSelector(diversity.NewSelector(cfg.Engine.Diversity))
	engine.SetPreferences(learner)
	engine.SetFallback(sources.NewPopularityFallback(catalog))

	handler := api.NewHandler(engine)
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimit:   cfg.Server.RateLimit,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
	tree.AddMaintenanceService(preferences.NewWorker(
		learner,
		cfg.Maintenance.FlushInterval,
		cfg.Maintenance.DecayInterval,
		logger,
	))
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	logger.Info().Str("addr", server.Addr).Msg("serving")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervision tree failed: %w", err)
	}
	logger.Info().Msg("shutdown complete")
	return nil
}
