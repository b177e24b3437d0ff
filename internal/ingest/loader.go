// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

// Package ingest drives the pipeline: bulk loading into staging tables, the
// full sweep, the incremental changes reconciler, and the export-driven
// missing/prune passes.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jessielw/tmdb-mirror/internal/catalog"
	"github.com/jessielw/tmdb-mirror/internal/database"
)

// rowSink flushes one multi-row insert. *database.DB satisfies it; tests
// substitute a recorder.
type rowSink interface {
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any, conflictTarget string) error
}

// Loader buffers normalized row batches per destination table and flushes a
// table once its buffer reaches the batch size. Flushes are serialized per
// table; different tables flush in parallel. When a child or association
// buffer fills, the lower-ranked buffers (dimensions, roots) are drained
// first. With concurrent producers a racing Add can slip rows into a
// lower-ranked buffer after that drain, so mid-build rank ordering is best
// effort; only the final Flush drains in strict rank order. The schema
// carries no FK constraints, so rows landing ahead of their referents do
// not fail, and the completed build is whole before the generation swap.
type Loader struct {
	sink      rowSink
	prefix    string
	batchSize int

	mu      sync.Mutex
	buffers map[string]*tableBuffer
}

type tableBuffer struct {
	mu      sync.Mutex
	table   database.Table
	columns []string
	rows    [][]any
}

// NewLoader builds a loader writing into prefix+table (database.StagingPrefix
// for sweep builds, empty for live upserts).
func NewLoader(sink rowSink, prefix string, batchSize int) *Loader {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Loader{
		sink:      sink,
		prefix:    prefix,
		batchSize: batchSize,
		buffers:   make(map[string]*tableBuffer),
	}
}

// Add buffers every batch, flushing any table that reached the batch size.
func (l *Loader) Add(ctx context.Context, batches []catalog.RowBatch) error {
	for _, batch := range batches {
		if len(batch.Rows) == 0 {
			continue
		}
		buf, err := l.buffer(batch)
		if err != nil {
			return err
		}

		buf.mu.Lock()
		buf.rows = append(buf.rows, batch.Rows...)
		full := len(buf.rows) >= l.batchSize
		buf.mu.Unlock()

		if !full {
			continue
		}
		// Drain the lower ranks first so rows this batch references are
		// written ahead of it.
		if buf.table.Rank >= database.RankChild {
			if err := l.flushBelow(ctx, buf.table.Rank); err != nil {
				return err
			}
		}
		if err := l.flushBuffer(ctx, buf); err != nil {
			return err
		}
	}
	return nil
}

// Flush drains every buffer in rank order (dimensions, roots, children,
// associations). Call once the producer is done.
func (l *Loader) Flush(ctx context.Context) error {
	for _, buf := range l.ranked(database.RankAssociation + 1) {
		if err := l.flushBuffer(ctx, buf); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) buffer(batch catalog.RowBatch) (*tableBuffer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if buf, ok := l.buffers[batch.Table]; ok {
		return buf, nil
	}
	table, ok := database.TableByName(batch.Table)
	if !ok {
		return nil, fmt.Errorf("loader received batch for unknown table %s", batch.Table)
	}
	buf := &tableBuffer{table: table, columns: batch.Columns}
	l.buffers[batch.Table] = buf
	return buf, nil
}

func (l *Loader) flushBelow(ctx context.Context, rank database.Rank) error {
	for _, buf := range l.ranked(rank) {
		if err := l.flushBuffer(ctx, buf); err != nil {
			return err
		}
	}
	return nil
}

// ranked snapshots the buffers with rank below the bound, in rank order.
func (l *Loader) ranked(below database.Rank) []*tableBuffer {
	l.mu.Lock()
	bufs := make([]*tableBuffer, 0, len(l.buffers))
	for _, buf := range l.buffers {
		if buf.table.Rank < below {
			bufs = append(bufs, buf)
		}
	}
	l.mu.Unlock()

	sort.Slice(bufs, func(i, j int) bool { return bufs[i].table.Rank < bufs[j].table.Rank })
	return bufs
}

// flushBuffer detaches the buffered rows under the table lock, then issues
// one multi-row insert.
func (l *Loader) flushBuffer(ctx context.Context, buf *tableBuffer) error {
	buf.mu.Lock()
	rows := buf.rows
	buf.rows = nil
	buf.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}
	return l.sink.InsertRows(ctx, l.prefix+buf.table.Name, buf.columns, rows, buf.table.ConflictTarget())
}
