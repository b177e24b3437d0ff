// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/jessielw/tmdb-mirror/internal/catalog"
	"github.com/jessielw/tmdb-mirror/internal/database"
	"github.com/jessielw/tmdb-mirror/internal/tmdb"
)

// fakeStore records engine calls against the database surface. ReplaceRecord
// tracks the replaced root ids without running the insert callback, which
// needs a live transaction.
type fakeStore struct {
	mu       sync.Mutex
	meta     map[string]time.Time
	replaced []int64
	deleted  []int64
	live     map[int64]struct{}
	staged   []database.Family
	swapped  []database.Family
}

func newFakeStore() *fakeStore {
	return &fakeStore{meta: make(map[string]time.Time)}
}

func (f *fakeStore) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, conflictTarget string) error {
	return nil
}

func (f *fakeStore) CreateStagingTables(ctx context.Context, family database.Family) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staged = append(f.staged, family)
	return nil
}

func (f *fakeStore) SwapGeneration(ctx context.Context, family database.Family, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swapped = append(f.swapped, family)
	return nil
}

func (f *fakeStore) GetMetadataTime(ctx context.Context, key string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts, ok := f.meta[key]
	return ts, ok, nil
}

func (f *fakeStore) SetMetadataTime(ctx context.Context, key string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta[key] = ts
	return nil
}

func (f *fakeStore) ReplaceRecord(ctx context.Context, family database.Family, rootID int64, fn func(pgx.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = append(f.replaced, rootID)
	return nil
}

func (f *fakeStore) DeleteRecords(ctx context.Context, family database.Family, rootIDs []int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, rootIDs...)
	return int64(len(rootIDs)), nil
}

func (f *fakeStore) LiveRootIDs(ctx context.Context, family database.Family) (map[int64]struct{}, error) {
	return f.live, nil
}

// fakeUpstream serves canned changes and records. Ids absent from movies
// come back as 404s.
type fakeUpstream struct {
	mu           sync.Mutex
	export       []tmdb.ExportEntry
	changes      []tmdb.Change
	changesCalls int
	movies       map[int64]*catalog.Movie
}

func (f *fakeUpstream) Export(ctx context.Context, kind tmdb.Kind) ([]tmdb.ExportEntry, error) {
	return f.export, nil
}

func (f *fakeUpstream) Changes(ctx context.Context, kind tmdb.Kind, start, end time.Time) ([]tmdb.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changesCalls++
	return f.changes, nil
}

func (f *fakeUpstream) FetchMovie(ctx context.Context, id int64) (*catalog.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.movies[id]
	if !ok {
		return nil, fmt.Errorf("movie %d: %w", id, tmdb.ErrNotFound)
	}
	return m, nil
}

func (f *fakeUpstream) FetchSeries(ctx context.Context, id int64) (*catalog.Series, error) {
	return nil, fmt.Errorf("series %d: %w", id, tmdb.ErrNotFound)
}

func newTestEngine(db store, client upstream) *Engine {
	return &Engine{db: db, client: client, batchSize: 10, workers: 2}
}

func TestChangesSyncSkipsAfterRecentSweep(t *testing.T) {
	st := newFakeStore()
	st.meta[database.MetaLastFullSweepMovie] = time.Now().UTC().Add(-time.Hour)
	up := &fakeUpstream{changes: []tmdb.Change{{ID: 603}}}
	e := newTestEngine(st, up)

	report, err := e.ChangesSync(context.Background(), database.FamilyMovie)
	if err != nil {
		t.Fatalf("ChangesSync() error = %v", err)
	}
	if !report.Skipped {
		t.Error("report not marked skipped after a sweep within 24h")
	}
	if up.changesCalls != 0 {
		t.Errorf("changes feed queried %d times, want 0", up.changesCalls)
	}
	if len(st.replaced) != 0 || len(st.deleted) != 0 {
		t.Errorf("skip run touched records: replaced=%v deleted=%v", st.replaced, st.deleted)
	}
	if _, ok := st.meta[database.MetaLastChangesSyncMovie]; !ok {
		t.Error("last-sync marker not advanced on skip")
	}
}

func TestChangesSyncRunsAfterStaleSweep(t *testing.T) {
	st := newFakeStore()
	st.meta[database.MetaLastFullSweepMovie] = time.Now().UTC().Add(-25 * time.Hour)
	up := &fakeUpstream{movies: map[int64]*catalog.Movie{}}
	e := newTestEngine(st, up)

	report, err := e.ChangesSync(context.Background(), database.FamilyMovie)
	if err != nil {
		t.Fatalf("ChangesSync() error = %v", err)
	}
	if report.Skipped {
		t.Error("sweep older than 24h must not skip the sync")
	}
	if up.changesCalls != 1 {
		t.Errorf("changes feed queried %d times, want 1", up.changesCalls)
	}
}

func TestChangesSyncReplacesAndDeletes(t *testing.T) {
	adult := true
	st := newFakeStore()
	up := &fakeUpstream{
		changes: []tmdb.Change{{ID: 603}, {ID: 604}, {ID: 605, Adult: &adult}},
		movies:  map[int64]*catalog.Movie{603: {ID: 603}},
	}
	e := newTestEngine(st, up)

	report, err := e.ChangesSync(context.Background(), database.FamilyMovie)
	if err != nil {
		t.Fatalf("ChangesSync() error = %v", err)
	}
	// 603 still exists upstream and goes through whole-record replace.
	if len(st.replaced) != 1 || st.replaced[0] != 603 {
		t.Errorf("replaced roots = %v, want [603]", st.replaced)
	}
	// 604 now 404s upstream and is removed from the mirror.
	if len(st.deleted) != 1 || st.deleted[0] != 604 {
		t.Errorf("deleted roots = %v, want [604]", st.deleted)
	}
	// 605 is adult and never enumerated.
	if report.Enumerated != 2 {
		t.Errorf("Enumerated = %d, want 2", report.Enumerated)
	}
	if report.Updated != 1 || report.Deleted != 1 {
		t.Errorf("Updated = %d, Deleted = %d, want 1 and 1", report.Updated, report.Deleted)
	}
	if _, ok := st.meta[database.MetaLastChangesSyncMovie]; !ok {
		t.Error("last-sync marker not advanced")
	}
}

func TestAddTitleReplacesLiveRecord(t *testing.T) {
	st := newFakeStore()
	up := &fakeUpstream{movies: map[int64]*catalog.Movie{603: {ID: 603}}}
	e := newTestEngine(st, up)

	report, err := e.AddTitle(context.Background(), database.FamilyMovie, 603)
	if err != nil {
		t.Fatalf("AddTitle() error = %v", err)
	}
	if len(st.replaced) != 1 || st.replaced[0] != 603 {
		t.Errorf("replaced roots = %v, want [603]", st.replaced)
	}
	if report.Updated != 1 {
		t.Errorf("Updated = %d, want 1", report.Updated)
	}
}

func TestFatalErrorClassification(t *testing.T) {
	fatalErrs := []error{
		tmdb.ErrAuth,
		gobreaker.ErrOpenState,
		gobreaker.ErrTooManyRequests,
		context.Canceled,
		context.DeadlineExceeded,
		fmt.Errorf("upstream circuit open: %w", gobreaker.ErrOpenState),
		fmt.Errorf("fetch movie: %w", tmdb.ErrAuth),
	}
	for _, err := range fatalErrs {
		if !fatal(err) {
			t.Errorf("fatal(%v) = false, want true", err)
		}
	}

	skippable := []error{
		tmdb.ErrNotFound,
		errors.New("server error: 500"),
		nil,
	}
	for _, err := range skippable {
		if fatal(err) {
			t.Errorf("fatal(%v) = true, want false", err)
		}
	}
}
