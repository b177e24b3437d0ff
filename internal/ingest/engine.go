// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/jessielw/tmdb-mirror/internal/catalog"
	"github.com/jessielw/tmdb-mirror/internal/config"
	"github.com/jessielw/tmdb-mirror/internal/database"
	"github.com/jessielw/tmdb-mirror/internal/logging"
	"github.com/jessielw/tmdb-mirror/internal/metrics"
	"github.com/jessielw/tmdb-mirror/internal/tmdb"
)

// store is the database surface the engine drives. *database.DB satisfies
// it; tests substitute a recorder.
type store interface {
	rowSink
	CreateStagingTables(ctx context.Context, family database.Family) error
	SwapGeneration(ctx context.Context, family database.Family, force bool) error
	GetMetadataTime(ctx context.Context, key string) (time.Time, bool, error)
	SetMetadataTime(ctx context.Context, key string, ts time.Time) error
	ReplaceRecord(ctx context.Context, family database.Family, rootID int64, fn func(pgx.Tx) error) error
	DeleteRecords(ctx context.Context, family database.Family, rootIDs []int64) (int64, error)
	LiveRootIDs(ctx context.Context, family database.Family) (map[int64]struct{}, error)
}

// upstream is the client surface the engine fetches from.
type upstream interface {
	Export(ctx context.Context, kind tmdb.Kind) ([]tmdb.ExportEntry, error)
	Changes(ctx context.Context, kind tmdb.Kind, start, end time.Time) ([]tmdb.Change, error)
	FetchMovie(ctx context.Context, id int64) (*catalog.Movie, error)
	FetchSeries(ctx context.Context, id int64) (*catalog.Series, error)
}

// Engine runs the ingestion jobs. One engine is shared by every job; the
// upstream client's rate gate bounds all concurrent fetch work.
type Engine struct {
	db        store
	client    upstream
	batchSize int
	workers   int
}

func NewEngine(db *database.DB, client *tmdb.Client, cfg *config.TMDBConfig) *Engine {
	return &Engine{
		db:        db,
		client:    client,
		batchSize: cfg.BatchInsert,
		workers:   cfg.MaxConnections,
	}
}

func kindFor(family database.Family) tmdb.Kind {
	if family == database.FamilySeries {
		return tmdb.KindSeries
	}
	return tmdb.KindMovie
}

func sweepKey(family database.Family) string {
	if family == database.FamilySeries {
		return database.MetaLastFullSweepSeries
	}
	return database.MetaLastFullSweepMovie
}

func changesKey(family database.Family) string {
	if family == database.FamilySeries {
		return database.MetaLastChangesSyncSeries
	}
	return database.MetaLastChangesSyncMovie
}

// fetch pulls one aggregate record and normalizes it into row batches.
func (e *Engine) fetch(ctx context.Context, family database.Family, id int64) ([]catalog.RowBatch, error) {
	if family == database.FamilySeries {
		s, err := e.client.FetchSeries(ctx, id)
		if err != nil {
			return nil, err
		}
		return catalog.NormalizeSeries(s), nil
	}
	m, err := e.client.FetchMovie(ctx, id)
	if err != nil {
		return nil, err
	}
	return catalog.NormalizeMovie(m), nil
}

// upsertLive replaces one record in the live tables: delete the root's owned
// rows, reinsert everything, all inside one transaction. Batches arrive in
// rank order from the normalizer.
func (e *Engine) upsertLive(ctx context.Context, family database.Family, id int64, batches []catalog.RowBatch) error {
	return e.db.ReplaceRecord(ctx, family, id, func(tx pgx.Tx) error {
		for _, b := range batches {
			table, ok := database.TableByName(b.Table)
			if !ok {
				return fmt.Errorf("normalizer produced batch for unknown table %s", b.Table)
			}
			if err := database.InsertRowsTx(ctx, tx, table.Name, b.Columns, b.Rows, table.ConflictTarget()); err != nil {
				return err
			}
		}
		return nil
	})
}

// fatal reports errors that must abort the whole job rather than skip the
// current id: bad credentials, an open circuit, or cancellation.
func fatal(err error) bool {
	return errors.Is(err, tmdb.ErrAuth) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// FullSweep rebuilds the family's mirror from scratch: enumerate the daily
// id export, fetch every record into fresh staging tables, then promote the
// staging generation. Per-id failures are recorded and skipped; the sweep
// itself fails only on auth errors, database errors, or cancellation.
func (e *Engine) FullSweep(ctx context.Context, family database.Family, force bool) (*Report, error) {
	report := newReport("full_sweep", family)
	defer report.finish()

	if err := e.db.CreateStagingTables(ctx, family); err != nil {
		return report, err
	}

	entries, err := e.client.Export(ctx, kindFor(family))
	if err != nil {
		return report, err
	}
	ids := exportIDs(entries, true)
	report.Enumerated = len(ids)
	logging.Info().
		Str("family", string(family)).
		Int("ids", len(ids)).
		Bool("force", force).
		Msg("Starting full sweep")

	loader := NewLoader(e.db, database.StagingPrefix, e.batchSize)
	if err := e.fetchAll(ctx, family, ids, report, func(ctx context.Context, id int64, batches []catalog.RowBatch) error {
		if err := loader.Add(ctx, batches); err != nil {
			return err
		}
		report.addInserted()
		return nil
	}); err != nil {
		return report, err
	}
	if err := loader.Flush(ctx); err != nil {
		return report, err
	}

	if err := e.db.SwapGeneration(ctx, family, force); err != nil {
		return report, err
	}
	if err := e.db.SetMetadataTime(ctx, sweepKey(family), time.Now().UTC()); err != nil {
		return report, err
	}

	logging.Info().Str("family", string(family)).Str("report", report.Summary()).Msg("Full sweep complete")
	return report, nil
}

// AddTitle fetches one id and upserts it into the live tables. A 404 is a
// skip, not a failure.
func (e *Engine) AddTitle(ctx context.Context, family database.Family, id int64) (*Report, error) {
	report := newReport("add_"+string(family), family)
	defer report.finish()
	report.Enumerated = 1

	batches, err := e.fetch(ctx, family, id)
	if errors.Is(err, tmdb.ErrNotFound) {
		report.addNotFound()
		metrics.RecordTitle(string(family), "not_found")
		logging.Warn().Str("family", string(family)).Int64("id", id).Msg("Title does not exist upstream, skipping")
		return report, nil
	}
	if err != nil {
		report.addFailure(id)
		metrics.RecordTitle(string(family), "error")
		return report, err
	}
	report.addFetched()

	if err := e.upsertLive(ctx, family, id, batches); err != nil {
		report.addFailure(id)
		metrics.RecordTitle(string(family), "error")
		return report, err
	}
	report.addUpdated()
	metrics.RecordTitle(string(family), "success")
	logging.Info().Str("family", string(family)).Int64("id", id).Msg("Title upserted")
	return report, nil
}

// fetchAll runs the bounded worker pool over ids: fetch, normalize, then
// hand the batches to sink. Per-id failures are recorded on the report and
// skipped; fatal errors cancel the group.
func (e *Engine) fetchAll(ctx context.Context, family database.Family, ids []int64, report *Report, sink func(context.Context, int64, []catalog.RowBatch) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, id := range ids {
		g.Go(func() error {
			batches, err := e.fetch(gctx, family, id)
			switch {
			case errors.Is(err, tmdb.ErrNotFound):
				report.addNotFound()
				metrics.RecordTitle(string(family), "not_found")
				return nil
			case fatal(err):
				return err
			case err != nil:
				report.addFailure(id)
				metrics.RecordTitle(string(family), "error")
				logging.Warn().Str("family", string(family)).Int64("id", id).Err(err).Msg("Failed to fetch title, skipping")
				return nil
			}
			report.addFetched()
			metrics.RecordTitle(string(family), "success")
			return sink(gctx, id, batches)
		})
	}
	return g.Wait()
}

// exportIDs extracts ids from export entries, optionally filtering adult
// titles. The prune reference set keeps them so adult rows already in live
// are not treated as orphans.
func exportIDs(entries []tmdb.ExportEntry, skipAdult bool) []int64 {
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		if skipAdult && e.Adult {
			continue
		}
		ids = append(ids, e.ID)
	}
	return ids
}
