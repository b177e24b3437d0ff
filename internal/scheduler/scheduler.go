// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jessielw/tmdb-mirror/internal/database"
	"github.com/jessielw/tmdb-mirror/internal/ingest"
	"github.com/jessielw/tmdb-mirror/internal/logging"
	"github.com/jessielw/tmdb-mirror/internal/metrics"
	"github.com/jessielw/tmdb-mirror/internal/notify"
)

var (
	// ErrAlreadyRunning rejects a duplicate submission while the same job
	// (or the same title id) is queued or executing. The duplicate is NOT
	// queued behind the current instance.
	ErrAlreadyRunning = errors.New("job already running")

	// ErrQueueFull rejects submissions once the queue is at capacity.
	ErrQueueFull = errors.New("job queue full")
)

// queueCapacity bounds the in-memory job queue.
const queueCapacity = 75

// Scheduler owns the job queue. Dispatch is a single goroutine; each
// dispatched job runs on its own goroutine, so jobs of different kinds
// overlap while the single-flight locks serialize same-kind work.
type Scheduler struct {
	engine   *ingest.Engine
	db       *database.DB
	notifier *notify.Notifier

	queue chan Job

	mu      sync.Mutex
	running map[string]struct{}

	wg sync.WaitGroup

	// execute is swapped in tests.
	execute func(ctx context.Context, job Job) error
}

func New(engine *ingest.Engine, db *database.DB, notifier *notify.Notifier) *Scheduler {
	s := &Scheduler{
		engine:   engine,
		db:       db,
		notifier: notifier,
		queue:    make(chan Job, queueCapacity),
		running:  make(map[string]struct{}),
	}
	s.execute = s.runJob
	return s
}

// Submit enqueues a job, taking its single-flight lock immediately so a
// duplicate is rejected whether the original is still queued or already
// executing. The lock is released when the job finishes.
func (s *Scheduler) Submit(job Job) error {
	key := job.lockKey()
	if !s.acquire(key) {
		metrics.RecordJobRejected(string(job.Kind))
		logging.Warn().Str("job", string(job.Kind)).Str("lock", key).Msg("Job already running, submission rejected")
		return fmt.Errorf("%s: %w", job.Kind, ErrAlreadyRunning)
	}

	select {
	case s.queue <- job:
		metrics.UpdateQueueDepth(len(s.queue))
		logging.Info().Str("job", string(job.Kind)).Str("job_id", job.ID.String()).Msg("Job queued")
		return nil
	default:
		s.release(key)
		metrics.RecordJobRejected(string(job.Kind))
		return fmt.Errorf("%s: %w", job.Kind, ErrQueueFull)
	}
}

// Serve is the dispatch loop, run as a suture service. It drains until the
// context is cancelled, then waits for in-flight jobs (which share the same
// context and unwind on their own).
func (s *Scheduler) Serve(ctx context.Context) error {
	logging.Info().Int("capacity", queueCapacity).Msg("Job scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case job := <-s.queue:
			metrics.UpdateQueueDepth(len(s.queue))
			s.wg.Add(1)
			go s.dispatch(ctx, job)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, job Job) {
	defer s.wg.Done()
	defer s.release(job.lockKey())

	logging.Info().Str("job", string(job.Kind)).Str("job_id", job.ID.String()).Msg("Job started")
	start := time.Now()
	err := s.execute(ctx, job)
	elapsed := time.Since(start)
	metrics.RecordJob(string(job.Kind), elapsed, err)

	if err != nil {
		logging.Error().
			Str("job", string(job.Kind)).
			Str("job_id", job.ID.String()).
			Dur("duration", elapsed).
			Err(err).
			Msg("Job failed")
		s.notifier.Notify(ctx, fmt.Sprintf("%s failed: %v", job.Kind, err))
		return
	}
	logging.Info().
		Str("job", string(job.Kind)).
		Str("job_id", job.ID.String()).
		Dur("duration", elapsed).
		Msg("Job finished")
}

// runJob executes one job. Family-wide jobs cover movies then series; a
// failure in one family does not skip the other.
func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindCreateTables:
		return s.db.CreateTables(ctx)

	case KindTestWebhook:
		msg := job.Message
		if msg == "" {
			msg = "Webhook test from tmdb-mirror"
		}
		s.notifier.Notify(ctx, msg)
		return nil

	case KindAddMovie:
		report, err := s.engine.AddTitle(ctx, database.FamilyMovie, job.TitleID)
		return s.reportJob(ctx, report, err)

	case KindAddSeries:
		report, err := s.engine.AddTitle(ctx, database.FamilySeries, job.TitleID)
		return s.reportJob(ctx, report, err)

	case KindFullSweep:
		return s.eachFamily(ctx, func(ctx context.Context, f database.Family) (*ingest.Report, error) {
			return s.engine.FullSweep(ctx, f, job.Force)
		})

	case KindChangesSync:
		return s.eachFamily(ctx, s.engine.ChangesSync)

	case KindMissingIDs:
		return s.eachFamily(ctx, s.engine.MissingIDs)

	case KindPruneDeleted:
		return s.eachFamily(ctx, s.engine.PruneDeleted)

	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func (s *Scheduler) eachFamily(ctx context.Context, fn func(context.Context, database.Family) (*ingest.Report, error)) error {
	var errs []error
	for _, family := range []database.Family{database.FamilyMovie, database.FamilySeries} {
		report, err := fn(ctx, family)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", family, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		s.reportDone(ctx, report)
	}
	return errors.Join(errs...)
}

func (s *Scheduler) reportJob(ctx context.Context, report *ingest.Report, err error) error {
	if err != nil {
		return err
	}
	s.reportDone(ctx, report)
	return nil
}

func (s *Scheduler) reportDone(ctx context.Context, report *ingest.Report) {
	if report == nil {
		return
	}
	s.notifier.Notify(ctx, report.Summary())
}

func (s *Scheduler) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.running[key]; held {
		return false
	}
	s.running[key] = struct{}{}
	return true
}

func (s *Scheduler) release(key string) {
	s.mu.Lock()
	delete(s.running, key)
	s.mu.Unlock()
}
