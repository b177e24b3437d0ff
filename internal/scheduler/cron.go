// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package scheduler

import (
	"context"
	"errors"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/jessielw/tmdb-mirror/internal/config"
	"github.com/jessielw/tmdb-mirror/internal/logging"
)

// disableTokens deactivate a schedule, matched case-insensitively.
var disableTokens = map[string]struct{}{
	"":         {},
	"false":    {},
	"off":      {},
	"disable":  {},
	"disabled": {},
	"no":       {},
}

// ScheduleDisabled reports whether the expression is one of the disable
// tokens rather than a CRON schedule.
func ScheduleDisabled(expr string) bool {
	_, ok := disableTokens[strings.ToLower(strings.TrimSpace(expr))]
	return ok
}

// CronRunner submits jobs on the configured schedules. A schedule that
// fails to parse is logged and left inactive; single-flight rejections at
// fire time are logged and dropped.
type CronRunner struct {
	cron *cron.Cron
}

// NewCronRunner wires the four schedules against the scheduler. Standard
// 5-field expressions only.
func NewCronRunner(cfg *config.CronConfig, sched *Scheduler) *CronRunner {
	c := cron.New()

	schedules := []struct {
		expr string
		kind Kind
	}{
		{cfg.FullSweep, KindFullSweep},
		{cfg.MissingOnly, KindMissingIDs},
		{cfg.Prune, KindPruneDeleted},
		{cfg.ChangesSync, KindChangesSync},
	}
	for _, s := range schedules {
		if ScheduleDisabled(s.expr) {
			logging.Debug().Str("job", string(s.kind)).Msg("Schedule disabled")
			continue
		}
		kind := s.kind
		if _, err := c.AddFunc(s.expr, func() { submitScheduled(sched, kind) }); err != nil {
			logging.Error().Str("job", string(kind)).Str("expr", s.expr).Err(err).Msg("Invalid CRON expression, schedule inactive")
			continue
		}
		logging.Info().Str("job", string(kind)).Str("expr", s.expr).Msg("Schedule registered")
	}

	return &CronRunner{cron: c}
}

func submitScheduled(sched *Scheduler, kind Kind) {
	job, err := NewJob(string(kind), "")
	if err != nil {
		logging.Error().Str("job", string(kind)).Err(err).Msg("Failed to build scheduled job")
		return
	}
	if err := sched.Submit(job); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			logging.Info().Str("job", string(kind)).Msg("Scheduled job skipped, previous run still active")
			return
		}
		logging.Error().Str("job", string(kind)).Err(err).Msg("Failed to submit scheduled job")
	}
}

// Serve runs the CRON loop as a suture service until the context is
// cancelled, then waits for any firing callbacks to return.
func (r *CronRunner) Serve(ctx context.Context) error {
	r.cron.Start()
	<-ctx.Done()
	stop := r.cron.Stop()
	<-stop.Done()
	return ctx.Err()
}
