// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

// Package main is the mirror service entry point.
//
// Startup order:
//
//  1. Configuration from environment variables and an optional YAML file
//  2. Global zerolog logger (LOG_LVL, LOG_TO_CONSOLE)
//  3. PostgreSQL pool, unaccent extension, job_queue recreation
//  4. Upstream client with the process-wide rate gate
//  5. Supervision tree: scheduler, Postgres queue bridge, CRON runner,
//     optional REST API
//
// SIGINT/SIGTERM cancel the tree; services drain within the 30s shutdown
// grace before the process exits.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessielw/tmdb-mirror/internal/api"
	"github.com/jessielw/tmdb-mirror/internal/config"
	"github.com/jessielw/tmdb-mirror/internal/database"
	"github.com/jessielw/tmdb-mirror/internal/ingest"
	"github.com/jessielw/tmdb-mirror/internal/logging"
	"github.com/jessielw/tmdb-mirror/internal/notify"
	"github.com/jessielw/tmdb-mirror/internal/scheduler"
	"github.com/jessielw/tmdb-mirror/internal/supervisor"
	"github.com/jessielw/tmdb-mirror/internal/tmdb"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Configuration error")
		return 1
	}

	logging.Init(logging.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
	})
	logging.Info().Msg("Starting tmdb-mirror")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, cfg.TMDB.MaxConnections)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to connect to database")
		return 1
	}
	defer db.Close()

	if err := db.InitJobQueue(ctx); err != nil {
		logging.Error().Err(err).Msg("Failed to initialize job queue")
		return 1
	}

	client := tmdb.New(&cfg.TMDB)
	engine := ingest.NewEngine(db, client, &cfg.TMDB)
	notifier := notify.New(&cfg.Webhook)
	sched := scheduler.New(engine, db, notifier)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.Add(sched)
	tree.Add(scheduler.NewQueueBridge(db, sched))
	tree.Add(scheduler.NewCronRunner(&cfg.Cron, sched))
	if cfg.API.Enabled {
		tree.Add(api.NewServer(&cfg.API, sched))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
		return 1
	}

	logging.Info().Msg("Shutdown complete")
	return 0
}
