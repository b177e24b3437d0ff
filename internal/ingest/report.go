// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package ingest

import (
	"fmt"
	"sync"
	"time"

	"github.com/jessielw/tmdb-mirror/internal/database"
)

// failureWarnThreshold is the per-id failure fraction above which a report
// flags a warning for the notifier.
const failureWarnThreshold = 0.05

// Report accumulates per-phase counts for one job run. Counter methods are
// safe for concurrent workers; read the fields only after the job finishes.
type Report struct {
	Job     string
	Family  database.Family
	Started time.Time

	// Skipped marks a changes_sync that was a no-op because a full sweep
	// for the family completed within the last 24 hours.
	Skipped bool

	mu         sync.Mutex
	Duration   time.Duration
	Enumerated int
	Fetched    int
	Inserted   int
	Updated    int
	Deleted    int
	NotFound   int
	Errored    int
	FailedIDs  []int64
}

func newReport(job string, family database.Family) *Report {
	return &Report{Job: job, Family: family, Started: time.Now().UTC()}
}

func (r *Report) finish() {
	r.mu.Lock()
	r.Duration = time.Since(r.Started)
	r.mu.Unlock()
}

func (r *Report) addFetched() {
	r.mu.Lock()
	r.Fetched++
	r.mu.Unlock()
}

func (r *Report) addInserted() {
	r.mu.Lock()
	r.Inserted++
	r.mu.Unlock()
}

func (r *Report) addUpdated() {
	r.mu.Lock()
	r.Updated++
	r.mu.Unlock()
}

func (r *Report) addDeleted(n int) {
	r.mu.Lock()
	r.Deleted += n
	r.mu.Unlock()
}

func (r *Report) addNotFound() {
	r.mu.Lock()
	r.NotFound++
	r.mu.Unlock()
}

func (r *Report) addFailure(id int64) {
	r.mu.Lock()
	r.Errored++
	r.FailedIDs = append(r.FailedIDs, id)
	r.mu.Unlock()
}

// FailureRate is the fraction of enumerated ids that errored.
func (r *Report) FailureRate() float64 {
	if r.Enumerated == 0 {
		return 0
	}
	return float64(r.Errored) / float64(r.Enumerated)
}

// Warning reports whether the per-id failure rate crossed the notifier
// warning threshold.
func (r *Report) Warning() bool {
	return r.FailureRate() > failureWarnThreshold
}

// Summary renders a one-line human-readable report for logs and webhooks.
func (r *Report) Summary() string {
	if r.Skipped {
		return fmt.Sprintf("%s (%s): skipped, full sweep completed within the last 24h", r.Job, r.Family)
	}
	s := fmt.Sprintf("%s (%s): %d ids, %d fetched, %d inserted, %d updated, %d deleted, %d not found, %d errored in %s",
		r.Job, r.Family, r.Enumerated, r.Fetched, r.Inserted, r.Updated, r.Deleted, r.NotFound, r.Errored,
		r.Duration.Round(time.Second))
	if r.Warning() {
		s += fmt.Sprintf("; WARNING: %.1f%% of ids failed", r.FailureRate()*100)
	}
	return s
}
