// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

// Package database owns the PostgreSQL side of the mirror: the connection
// pool, the catalog schema (live, staging and *_old generations), the
// service_metadata key/value table, the job_queue table with its
// LISTEN/NOTIFY trigger, and the staging-to-live swap.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jessielw/tmdb-mirror/internal/config"
	"github.com/jessielw/tmdb-mirror/internal/logging"
	"github.com/jessielw/tmdb-mirror/internal/metrics"
)

// schedulerConnOverhead is extra pool capacity reserved for the scheduler,
// the queue listener and metadata bookkeeping on top of the fetcher workers.
const schedulerConnOverhead = 4

// DB wraps a pgx connection pool and provides mirror data access methods.
type DB struct {
	pool *pgxpool.Pool
	cfg  *config.DatabaseConfig
}

// New opens a connection pool sized for maxWorkers concurrent ingestion
// workers plus scheduler overhead, verifies connectivity, and applies the
// unaccent extension when enabled.
func New(ctx context.Context, cfg *config.DatabaseConfig, maxWorkers int) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URI: %w", err)
	}
	poolCfg.MaxConns = int32(maxWorkers + schedulerConnOverhead)
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{pool: pool, cfg: cfg}

	if cfg.EnableUnaccent {
		logging.Info().Msg("Ensuring unaccent extension exists")
		if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS unaccent"); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create unaccent extension: %w", err)
		}
	}

	logging.Info().Int32("max_conns", poolCfg.MaxConns).Msg("Database pool created")
	return db, nil
}

// Pool exposes the underlying pool for callers that need dedicated
// connections (the queue listener).
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping verifies database connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close releases all pool connections.
func (db *DB) Close() {
	db.pool.Close()
}

// exec runs a statement and records its duration under the given operation
// label.
func (db *DB) exec(ctx context.Context, operation, sql string, args ...any) error {
	start := time.Now()
	_, err := db.pool.Exec(ctx, sql, args...)
	metrics.RecordDBQuery(operation, time.Since(start))
	return err
}
