// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package scheduler

import (
	"context"
	"errors"

	"github.com/jessielw/tmdb-mirror/internal/database"
	"github.com/jessielw/tmdb-mirror/internal/logging"
)

// QueueBridge feeds CLI-enqueued jobs from the Postgres job_queue table into
// the in-process scheduler: LISTEN for insert notifications, claim the row
// with DELETE ... RETURNING, submit. Run as a suture service; a broken
// listener connection surfaces as an error and the supervisor restarts it.
type QueueBridge struct {
	db    *database.DB
	sched *Scheduler
}

func NewQueueBridge(db *database.DB, sched *Scheduler) *QueueBridge {
	return &QueueBridge{db: db, sched: sched}
}

func (b *QueueBridge) Serve(ctx context.Context) error {
	listener, err := b.db.Listen(ctx)
	if err != nil {
		return err
	}
	defer listener.Close()
	logging.Info().Msg("Postgres job queue bridge listening")

	for {
		id, err := listener.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		b.handle(ctx, id)
	}
}

func (b *QueueBridge) handle(ctx context.Context, id int) {
	jobType, payload, ok, err := b.db.ClaimJob(ctx, id)
	if err != nil {
		logging.Error().Int("queue_id", id).Err(err).Msg("Failed to claim queued job")
		return
	}
	if !ok {
		// Another worker claimed it first.
		return
	}

	job, err := NewJob(jobType, payload)
	if err != nil {
		logging.Error().Int("queue_id", id).Str("job", jobType).Err(err).Msg("Dropping malformed queued job")
		return
	}

	if err := b.sched.Submit(job); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			logging.Info().Str("job", jobType).Msg("Queued job skipped, already running")
			return
		}
		logging.Error().Str("job", jobType).Err(err).Msg("Failed to submit queued job")
	}
}
