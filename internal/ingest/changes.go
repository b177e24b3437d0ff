// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jessielw/tmdb-mirror/internal/database"
	"github.com/jessielw/tmdb-mirror/internal/logging"
	"github.com/jessielw/tmdb-mirror/internal/metrics"
	"github.com/jessielw/tmdb-mirror/internal/tmdb"
)

const (
	// changesNarrowWindow is the look-back used when the last sync ran
	// within the past day.
	changesNarrowWindow = 24 * time.Hour

	// changesMaxLookBack caps the window at what the upstream /changes
	// feed retains.
	changesMaxLookBack = 14 * 24 * time.Hour
)

// changesWindow computes the adaptive query window. With no recorded last
// sync the full retention window is used; a recent sync narrows to 24h; an
// older sync resumes from where it left off, capped at 14 days back.
func changesWindow(now, last time.Time, hasLast bool) (start, end time.Time) {
	if !hasLast {
		return now.Add(-changesMaxLookBack), now
	}
	if now.Sub(last) <= changesNarrowWindow {
		return now.Add(-changesNarrowWindow), now
	}
	start = now.Add(-changesMaxLookBack)
	if last.After(start) {
		start = last
	}
	return start, now
}

// ChangesSync reconciles the live tables against the upstream /changes feed.
// Changed ids that still exist upstream are re-fetched and replaced; ids
// that now 404 are deleted. A full sweep within the last 24 hours makes this
// a no-op that still advances the last-sync marker.
func (e *Engine) ChangesSync(ctx context.Context, family database.Family) (*Report, error) {
	report := newReport("changes_sync", family)
	defer report.finish()

	now := time.Now().UTC()

	sweepAt, swept, err := e.db.GetMetadataTime(ctx, sweepKey(family))
	if err != nil {
		return report, err
	}
	if swept && now.Sub(sweepAt) < 24*time.Hour {
		report.Skipped = true
		logging.Info().
			Str("family", string(family)).
			Time("last_sweep", sweepAt).
			Msg("Skipping changes sync, full sweep completed within the last 24h")
		return report, e.db.SetMetadataTime(ctx, changesKey(family), now)
	}

	last, hasLast, err := e.db.GetMetadataTime(ctx, changesKey(family))
	if err != nil {
		return report, err
	}
	start, end := changesWindow(now, last, hasLast)
	logging.Info().
		Str("family", string(family)).
		Time("start", start).
		Time("end", end).
		Msg("Starting changes sync")

	changes, err := e.client.Changes(ctx, kindFor(family), start, end)
	if err != nil {
		return report, err
	}

	ids := make([]int64, 0, len(changes))
	for _, ch := range changes {
		if ch.Adult != nil && *ch.Adult {
			continue
		}
		ids = append(ids, ch.ID)
	}
	report.Enumerated = len(ids)

	// 404s from the re-fetch are delete signals; collect them and remove
	// in one pass after the workers drain.
	var deletedMu sync.Mutex
	var deletedIDs []int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, id := range ids {
		g.Go(func() error {
			batches, err := e.fetch(gctx, family, id)
			switch {
			case errors.Is(err, tmdb.ErrNotFound):
				deletedMu.Lock()
				deletedIDs = append(deletedIDs, id)
				deletedMu.Unlock()
				return nil
			case fatal(err):
				return err
			case err != nil:
				report.addFailure(id)
				metrics.RecordTitle(string(family), "error")
				logging.Warn().Str("family", string(family)).Int64("id", id).Err(err).Msg("Failed to fetch changed title, skipping")
				return nil
			}
			report.addFetched()
			if err := e.upsertLive(gctx, family, id, batches); err != nil {
				return err
			}
			report.addUpdated()
			metrics.RecordTitle(string(family), "success")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	if len(deletedIDs) > 0 {
		deleted, err := e.db.DeleteRecords(ctx, family, deletedIDs)
		if err != nil {
			return report, err
		}
		report.addDeleted(int(deleted))
	}

	if err := e.db.SetMetadataTime(ctx, changesKey(family), now); err != nil {
		return report, err
	}
	logging.Info().Str("family", string(family)).Str("report", report.Summary()).Msg("Changes sync complete")
	return report, nil
}
