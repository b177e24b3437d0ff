// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package database

import (
	"context"
	"fmt"

	"github.com/jessielw/tmdb-mirror/internal/logging"
)

const metadataTableSQL = `CREATE TABLE IF NOT EXISTS service_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// CreateTables creates the live catalog tables for both families plus the
// service_metadata table. Existing tables are left untouched.
func (db *DB) CreateTables(ctx context.Context) error {
	for _, t := range AllTables() {
		if err := db.exec(ctx, "create", t.CreateSQL("")); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.Name, err)
		}
	}
	if err := db.exec(ctx, "create", metadataTableSQL); err != nil {
		return fmt.Errorf("failed to create service_metadata: %w", err)
	}
	logging.Info().Msg("Catalog tables created")
	return nil
}

// CreateStagingTables drops any leftover staging tables for the family and
// recreates them empty. A full sweep always starts from a clean build.
func (db *DB) CreateStagingTables(ctx context.Context, family Family) error {
	for _, t := range family.Tables() {
		drop := fmt.Sprintf("DROP TABLE IF EXISTS %s%s", StagingPrefix, t.Name)
		if err := db.exec(ctx, "drop", drop); err != nil {
			return fmt.Errorf("failed to drop staging table %s: %w", t.Name, err)
		}
		if err := db.exec(ctx, "create", t.CreateSQL(StagingPrefix)); err != nil {
			return fmt.Errorf("failed to create staging table %s: %w", t.Name, err)
		}
	}
	logging.Info().Str("family", string(family)).Msg("Staging tables created")
	return nil
}
