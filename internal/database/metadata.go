// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Keys persisted in service_metadata. Timestamps are stored as RFC 3339 UTC.
const (
	MetaLastFullSweepMovie    = "last_full_sweep_movie"
	MetaLastFullSweepSeries   = "last_full_sweep_series"
	MetaLastChangesSyncMovie  = "last_changes_sync_movie"
	MetaLastChangesSyncSeries = "last_changes_sync_series"
)

// GetMetadata returns the value for key, with found=false when the key has
// never been written.
func (db *DB) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.pool.QueryRow(ctx, "SELECT value FROM service_metadata WHERE key = $1", key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read metadata %s: %w", key, err)
	}
	return value, true, nil
}

// SetMetadata upserts a metadata key with the current timestamp.
func (db *DB) SetMetadata(ctx context.Context, key, value string) error {
	err := db.exec(ctx, "upsert",
		`INSERT INTO service_metadata (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write metadata %s: %w", key, err)
	}
	return nil
}

// GetMetadataTime reads a timestamp-valued metadata key.
func (db *DB) GetMetadataTime(ctx context.Context, key string) (time.Time, bool, error) {
	value, found, err := db.GetMetadata(ctx, key)
	if err != nil || !found {
		return time.Time{}, found, err
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("metadata %s holds invalid timestamp %q: %w", key, value, err)
	}
	return ts, true, nil
}

// SetMetadataTime writes a timestamp-valued metadata key.
func (db *DB) SetMetadataTime(ctx context.Context, key string, ts time.Time) error {
	return db.SetMetadata(ctx, key, ts.UTC().Format(time.RFC3339))
}
