// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jessielw/tmdb-mirror/internal/logging"
	"github.com/jessielw/tmdb-mirror/internal/metrics"
)

// ErrUnsafeSwap is returned when a staging build shrank too far below the
// live generation and force was not set.
var ErrUnsafeSwap = errors.New("staging row count dropped below safety threshold")

// swapShrinkThreshold aborts the swap when the staging root table holds less
// than this fraction of the live root's rows.
const swapShrinkThreshold = 0.5

// SwapGeneration promotes the family's staging tables to live inside one
// transaction: any pre-existing *_old generation is dropped, live renames to
// *_old, staging renames to live. Readers never observe a half-swapped
// catalog; on error the transaction rolls back and live is untouched.
//
// Unless force is set (first ingestion or operator override), the swap is
// refused when the staging root shrank more than 50% below the live root.
func (db *DB) SwapGeneration(ctx context.Context, family Family, force bool) error {
	if !force {
		safe, err := db.checkRowCountChange(ctx, family)
		if err != nil {
			return err
		}
		if !safe {
			metrics.RecordSwap(string(family), true)
			return fmt.Errorf("refusing to promote %s staging tables: %w", family, ErrUnsafeSwap)
		}
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin swap transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, t := range family.Tables() {
		stmts := []string{
			fmt.Sprintf("DROP TABLE IF EXISTS %s%s", t.Name, OldSuffix),
			fmt.Sprintf("ALTER TABLE IF EXISTS %s RENAME TO %s%s", t.Name, t.Name, OldSuffix),
			fmt.Sprintf("ALTER TABLE %s%s RENAME TO %s", StagingPrefix, t.Name, t.Name),
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				metrics.RecordSwap(string(family), true)
				return fmt.Errorf("swap failed on %q: %w", stmt, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.RecordSwap(string(family), true)
		return fmt.Errorf("failed to commit swap transaction: %w", err)
	}

	metrics.RecordSwap(string(family), false)
	logging.Info().Str("family", string(family)).Msg("Staging tables promoted to live")
	return nil
}

// checkRowCountChange compares the staging root count against the live root
// count. Returns true when promotion is safe. A missing live table (first
// ever sweep) is always safe.
func (db *DB) checkRowCountChange(ctx context.Context, family Family) (bool, error) {
	root := family.Root()

	liveCount, liveExists, err := db.rowCount(ctx, root)
	if err != nil {
		return false, err
	}
	if !liveExists || liveCount == 0 {
		return true, nil
	}

	stagingCount, stagingExists, err := db.rowCount(ctx, StagingPrefix+root)
	if err != nil {
		return false, err
	}
	if !stagingExists {
		return false, fmt.Errorf("staging table %s%s does not exist", StagingPrefix, root)
	}

	if float64(stagingCount) < float64(liveCount)*swapShrinkThreshold {
		logging.Error().
			Str("table", root).
			Int64("live_rows", liveCount).
			Int64("staging_rows", stagingCount).
			Msg("Staging row count dropped more than 50% below live")
		return false, nil
	}
	return true, nil
}

// rowCount returns the row count of a table, reporting existence separately
// so a missing table is not an error.
func (db *DB) rowCount(ctx context.Context, table string) (int64, bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = $1)",
		table,
	).Scan(&exists)
	if err != nil {
		return 0, false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	if !exists {
		return 0, false, nil
	}

	var count int64
	if err := db.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		return 0, false, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, true, nil
}

// RootCount returns the live root row count for a family (0 when the table
// does not exist yet).
func (db *DB) RootCount(ctx context.Context, family Family) (int64, error) {
	count, _, err := db.rowCount(ctx, family.Root())
	return count, err
}
