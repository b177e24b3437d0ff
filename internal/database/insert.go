// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jessielw/tmdb-mirror/internal/metrics"
)

// BuildInsertSQL renders one multi-row INSERT for the given table and row
// count. conflictTarget, when non-empty, appends ON CONFLICT (...) DO
// NOTHING so shared dimension rows collapse across records.
func BuildInsertSQL(table string, columns []string, rowCount int, conflictTarget string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	arg := 1
	for r := 0; r < rowCount; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", arg)
			arg++
		}
		b.WriteByte(')')
	}

	if conflictTarget != "" {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO NOTHING", conflictTarget)
	} else {
		b.WriteString(" ON CONFLICT DO NOTHING")
	}
	return b.String()
}

// InsertRows flushes a batch of rows into table with one multi-row INSERT.
// Rows must all match the column list. Safe to call concurrently for
// different tables; the loader serializes per-table flushes.
func (db *DB) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, conflictTarget string) error {
	if len(rows) == 0 {
		return nil
	}

	sql := BuildInsertSQL(table, columns, len(rows), conflictTarget)
	args := make([]any, 0, len(rows)*len(columns))
	for _, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row has %d values, table %s expects %d", len(row), table, len(columns))
		}
		args = append(args, row...)
	}

	start := time.Now()
	_, err := db.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to insert %d rows into %s: %w", len(rows), table, err)
	}
	metrics.RecordFlush(table, len(rows), time.Since(start))
	return nil
}

// InsertRowsTx is InsertRows inside an existing transaction, used by the
// whole-record replace path.
func InsertRowsTx(ctx context.Context, tx pgx.Tx, table string, columns []string, rows [][]any, conflictTarget string) error {
	if len(rows) == 0 {
		return nil
	}
	sql := BuildInsertSQL(table, columns, len(rows), conflictTarget)
	args := make([]any, 0, len(rows)*len(columns))
	for _, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row has %d values, table %s expects %d", len(row), table, len(columns))
		}
		args = append(args, row...)
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert %d rows into %s: %w", len(rows), table, err)
	}
	return nil
}

// ReplaceRecord runs fn inside one transaction after deleting the root row
// and all of its owned child and association rows. Used by the changes
// reconciler and single-title adds for whole-record replace against live
// tables.
func (db *DB) ReplaceRecord(ctx context.Context, family Family, rootID int64, fn func(pgx.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin replace transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := deleteRecordTx(ctx, tx, family, rootID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit replace transaction: %w", err)
	}
	return nil
}

// DeleteRecords removes the given root ids and their owned rows, one
// transaction per id so a failure mid-batch leaves prior deletes committed.
// Returns the number of roots actually deleted.
func (db *DB) DeleteRecords(ctx context.Context, family Family, rootIDs []int64) (int64, error) {
	var deleted int64
	for _, id := range rootIDs {
		tx, err := db.pool.Begin(ctx)
		if err != nil {
			return deleted, fmt.Errorf("failed to begin delete transaction: %w", err)
		}
		n, err := deleteRecordTx(ctx, tx, family, id)
		if err != nil {
			tx.Rollback(ctx) //nolint:errcheck
			return deleted, err
		}
		if err := tx.Commit(ctx); err != nil {
			return deleted, fmt.Errorf("failed to commit delete transaction: %w", err)
		}
		deleted += n
	}
	return deleted, nil
}

// recordDeleteOrder lists the tables cleared when one root record is
// removed: the owning child and association tables first, then the root row
// itself. The root must go too, or a reinsert's ON CONFLICT DO NOTHING
// would keep the stale root columns. Dimension rows are shared across
// records and never cleared.
func recordDeleteOrder(family Family) []Table {
	var tables []Table
	for _, t := range family.Tables() {
		if t.Rank == RankChild || t.Rank == RankAssociation {
			tables = append(tables, t)
		}
	}
	root, _ := TableByName(family.Root())
	return append(tables, root)
}

// deleteRecordTx removes one root record inside tx. The schema carries no
// FK cascades, so each owning table is cleared explicitly. Returns 1 when
// the root row existed.
func deleteRecordTx(ctx context.Context, tx pgx.Tx, family Family, rootID int64) (int64, error) {
	fkColumn := string(family) + "_id"
	var rootDeleted int64
	for _, t := range recordDeleteOrder(family) {
		where := fkColumn
		if t.Rank == RankRoot {
			where = "id"
		}
		tag, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1", t.Name, where), rootID)
		if err != nil {
			return rootDeleted, fmt.Errorf("failed to clear %s for %s %d: %w", t.Name, family, rootID, err)
		}
		if t.Rank == RankRoot {
			rootDeleted = tag.RowsAffected()
		}
	}
	return rootDeleted, nil
}

// LiveRootIDs returns the set of root ids currently in the live table.
func (db *DB) LiveRootIDs(ctx context.Context, family Family) (map[int64]struct{}, error) {
	start := time.Now()
	rows, err := db.pool.Query(ctx, fmt.Sprintf("SELECT id FROM %s", family.Root()))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s ids: %w", family.Root(), err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", family.Root(), err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s ids: %w", family.Root(), err)
	}
	metrics.RecordDBQuery("select", time.Since(start))
	return ids, nil
}
