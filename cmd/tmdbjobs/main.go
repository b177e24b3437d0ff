// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

// Package main is the job enqueue CLI. It inserts a row into the job_queue
// table; the running service picks it up through LISTEN/NOTIFY.
//
// Usage:
//
//	tmdbjobs <job> [--id N] [--force] [--message S]
//
// Jobs: full_sweep, missing_ids, prune_deleted, changes_sync,
// create_tables, add_movie, add_series, test_webhook.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jessielw/tmdb-mirror/internal/config"
	"github.com/jessielw/tmdb-mirror/internal/database"
	"github.com/jessielw/tmdb-mirror/internal/logging"
	"github.com/jessielw/tmdb-mirror/internal/scheduler"
)

const usage = `usage: tmdbjobs <job> [--id N] [--force] [--message S]

jobs:
  full_sweep      rebuild the whole mirror (--force skips the swap safety check)
  missing_ids     ingest export ids absent from the mirror
  prune_deleted   remove mirrored ids absent from the export
  changes_sync    incremental sync from the upstream changes feed
  create_tables   create the live tables
  add_movie       upsert one movie (--id required)
  add_series      upsert one series (--id required)
  test_webhook    post a test message to the webhook (--message optional)
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	jobName := args[0]

	fs := flag.NewFlagSet("tmdbjobs", flag.ContinueOnError)
	id := fs.Int64("id", 0, "title id for add_movie/add_series")
	force := fs.Bool("force", false, "skip the full_sweep swap safety check")
	message := fs.String("message", "", "message for test_webhook")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	payload := ""
	switch jobName {
	case string(scheduler.KindAddMovie), string(scheduler.KindAddSeries):
		payload = strconv.FormatInt(*id, 10)
	case string(scheduler.KindFullSweep):
		if *force {
			payload = "force"
		}
	case string(scheduler.KindTestWebhook):
		payload = *message
	}

	// Validate before touching the database so bad args fail fast.
	if _, err := scheduler.NewJob(jobName, payload); err != nil {
		fmt.Fprintf(os.Stderr, "tmdbjobs: %v\n", err)
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tmdbjobs: %v\n", err)
		return 1
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Console: true})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tmdbjobs: %v\n", err)
		return 1
	}
	defer db.Close()

	if err := db.EnqueueJob(ctx, jobName, payload); err != nil {
		fmt.Fprintf(os.Stderr, "tmdbjobs: %v\n", err)
		return 1
	}

	fmt.Printf("queued %s\n", jobName)
	return 0
}
