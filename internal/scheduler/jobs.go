// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

// Package scheduler owns the job queue: kinds, single-flight locks, the
// dispatch worker, the CRON loop, and the Postgres LISTEN/NOTIFY bridge
// feeding CLI-enqueued jobs into the same queue.
package scheduler

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Kind names a job. The string values are the external contract shared by
// the CLI, the REST surface, and the job_queue table.
type Kind string

const (
	KindFullSweep    Kind = "full_sweep"
	KindMissingIDs   Kind = "missing_ids"
	KindPruneDeleted Kind = "prune_deleted"
	KindChangesSync  Kind = "changes_sync"
	KindCreateTables Kind = "create_tables"
	KindAddMovie     Kind = "add_movie"
	KindAddSeries    Kind = "add_series"
	KindTestWebhook  Kind = "test_webhook"
)

var allKinds = map[Kind]struct{}{
	KindFullSweep:    {},
	KindMissingIDs:   {},
	KindPruneDeleted: {},
	KindChangesSync:  {},
	KindCreateTables: {},
	KindAddMovie:     {},
	KindAddSeries:    {},
	KindTestWebhook:  {},
}

// ParseKind validates a job name from an external source.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := allKinds[k]; !ok {
		return "", fmt.Errorf("unknown job %q", s)
	}
	return k, nil
}

// Job is one unit of queued work. TitleID is set for add_movie/add_series,
// Message for test_webhook, Force for full_sweep.
type Job struct {
	ID      uuid.UUID
	Kind    Kind
	TitleID int64
	Message string
	Force   bool
}

// perID reports whether the kind is locked per title id rather than
// globally.
func (k Kind) perID() bool {
	return k == KindAddMovie || k == KindAddSeries
}

// lockKey is the single-flight lock name: the kind for global jobs,
// kind:id for per-title jobs.
func (j Job) lockKey() string {
	if j.Kind.perID() {
		return fmt.Sprintf("%s:%d", j.Kind, j.TitleID)
	}
	return string(j.Kind)
}

// NewJob builds a job from a kind name and a textual payload, the form jobs
// take on the Postgres queue and the CLI. Per-title kinds require a numeric
// payload; full_sweep accepts "force"; test_webhook treats the payload as
// the message.
func NewJob(kindName, payload string) (Job, error) {
	kind, err := ParseKind(kindName)
	if err != nil {
		return Job{}, err
	}

	job := Job{ID: uuid.New(), Kind: kind}
	switch {
	case kind.perID():
		id, err := strconv.ParseInt(payload, 10, 64)
		if err != nil || id <= 0 {
			return Job{}, fmt.Errorf("job %s requires a positive numeric id, got %q", kind, payload)
		}
		job.TitleID = id
	case kind == KindFullSweep:
		job.Force = payload == "force"
	case kind == KindTestWebhook:
		job.Message = payload
	}
	return job, nil
}
