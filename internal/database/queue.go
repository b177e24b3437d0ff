// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// jobQueueSQL creates the CLI job bridge: a plain table plus a trigger that
// NOTIFYs the worker on every insert. The table is recreated on startup so
// stale jobs from a previous process never replay.
const jobQueueSQL = `DROP TABLE IF EXISTS job_queue;

CREATE TABLE IF NOT EXISTS job_queue (
	id SERIAL PRIMARY KEY,
	job_type TEXT NOT NULL,
	payload TEXT,
	created_at TIMESTAMPTZ DEFAULT now()
);

CREATE OR REPLACE FUNCTION notify_new_job() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('new_job', NEW.id::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS job_insert_notify ON job_queue;
CREATE TRIGGER job_insert_notify
AFTER INSERT ON job_queue
FOR EACH ROW EXECUTE FUNCTION notify_new_job();`

const newJobChannel = "new_job"

// InitJobQueue recreates the job_queue table and its notify trigger.
func (db *DB) InitJobQueue(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, jobQueueSQL); err != nil {
		return fmt.Errorf("failed to initialize job queue: %w", err)
	}
	return nil
}

// EnqueueJob inserts a job row; the insert trigger notifies any listening
// worker. Used by the CLI, which runs in a separate process.
func (db *DB) EnqueueJob(ctx context.Context, jobType, payload string) error {
	var p *string
	if payload != "" {
		p = &payload
	}
	if err := db.exec(ctx, "insert", "INSERT INTO job_queue (job_type, payload) VALUES ($1, $2)", jobType, p); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", jobType, err)
	}
	return nil
}

// ClaimJob deletes and returns the job row with the given id. The
// DELETE ... RETURNING makes the claim atomic: two workers can never run the
// same queued job.
func (db *DB) ClaimJob(ctx context.Context, id int) (jobType, payload string, ok bool, err error) {
	var p *string
	err = db.pool.QueryRow(ctx,
		"DELETE FROM job_queue WHERE id = $1 RETURNING job_type, payload", id,
	).Scan(&jobType, &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("failed to claim job %d: %w", id, err)
	}
	if p != nil {
		payload = *p
	}
	return jobType, payload, true, nil
}

// QueueListener holds a dedicated connection subscribed to the new_job
// channel.
type QueueListener struct {
	conn *pgxpool.Conn
}

// Listen acquires a dedicated connection and subscribes to job
// notifications.
func (db *DB) Listen(ctx context.Context) (*QueueListener, error) {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+newJobChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to LISTEN on %s: %w", newJobChannel, err)
	}
	return &QueueListener{conn: conn}, nil
}

// Next blocks until a job notification arrives and returns the job id.
func (l *QueueListener) Next(ctx context.Context) (int, error) {
	n, err := l.conn.Conn().WaitForNotification(ctx)
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(n.Payload)
	if err != nil {
		return 0, fmt.Errorf("invalid job notification payload %q: %w", n.Payload, err)
	}
	return id, nil
}

// Close releases the listener connection back to the pool.
func (l *QueueListener) Close() {
	l.conn.Release()
}
