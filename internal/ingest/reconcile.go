// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package ingest

import (
	"context"

	"github.com/jessielw/tmdb-mirror/internal/catalog"
	"github.com/jessielw/tmdb-mirror/internal/database"
	"github.com/jessielw/tmdb-mirror/internal/logging"
	"github.com/jessielw/tmdb-mirror/internal/metrics"
	"github.com/jessielw/tmdb-mirror/internal/tmdb"
)

// MissingIDs ingests every id present in the daily export but absent from
// the live root table. Adult titles are filtered out.
func (e *Engine) MissingIDs(ctx context.Context, family database.Family) (*Report, error) {
	report := newReport("missing_ids", family)
	defer report.finish()

	entries, err := e.client.Export(ctx, kindFor(family))
	if err != nil {
		return report, err
	}
	live, err := e.db.LiveRootIDs(ctx, family)
	if err != nil {
		return report, err
	}

	missing := diffMissing(entries, live)
	report.Enumerated = len(missing)
	logging.Info().
		Str("family", string(family)).
		Int("export_ids", len(entries)).
		Int("live_ids", len(live)).
		Int("missing", len(missing)).
		Msg("Starting missing-ids pass")

	if err := e.fetchAll(ctx, family, missing, report, func(ctx context.Context, id int64, batches []catalog.RowBatch) error {
		if err := e.upsertLive(ctx, family, id, batches); err != nil {
			return err
		}
		report.addInserted()
		return nil
	}); err != nil {
		return report, err
	}

	logging.Info().Str("family", string(family)).Str("report", report.Summary()).Msg("Missing-ids pass complete")
	return report, nil
}

// PruneDeleted removes every live root id that no longer appears in the
// daily export. The reference set keeps adult entries so adult rows already
// mirrored are not misread as upstream deletions.
func (e *Engine) PruneDeleted(ctx context.Context, family database.Family) (*Report, error) {
	report := newReport("prune_deleted", family)
	defer report.finish()

	entries, err := e.client.Export(ctx, kindFor(family))
	if err != nil {
		return report, err
	}
	live, err := e.db.LiveRootIDs(ctx, family)
	if err != nil {
		return report, err
	}

	orphans := diffOrphaned(entries, live)
	report.Enumerated = len(orphans)
	logging.Info().
		Str("family", string(family)).
		Int("live_ids", len(live)).
		Int("orphans", len(orphans)).
		Msg("Starting prune pass")

	if len(orphans) > 0 {
		deleted, err := e.db.DeleteRecords(ctx, family, orphans)
		if err != nil {
			return report, err
		}
		report.addDeleted(int(deleted))
		metrics.RecordPrune(string(family), int(deleted))
	}

	logging.Info().Str("family", string(family)).Str("report", report.Summary()).Msg("Prune pass complete")
	return report, nil
}

// diffMissing returns export ids absent from live, skipping adult titles.
func diffMissing(entries []tmdb.ExportEntry, live map[int64]struct{}) []int64 {
	var missing []int64
	for _, e := range entries {
		if e.Adult {
			continue
		}
		if _, ok := live[e.ID]; !ok {
			missing = append(missing, e.ID)
		}
	}
	return missing
}

// diffOrphaned returns live ids absent from the export, adult included.
func diffOrphaned(entries []tmdb.ExportEntry, live map[int64]struct{}) []int64 {
	inExport := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		inExport[e.ID] = struct{}{}
	}
	var orphans []int64
	for id := range live {
		if _, ok := inExport[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	return orphans
}
