// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package tmdb

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/jessielw/tmdb-mirror/internal/logging"
)

// ExportEntry is one line of the daily id export.
type ExportEntry struct {
	ID    int64 `json:"id"`
	Adult bool  `json:"adult"`
}

// exportFilePrefix maps a record kind to its export file name prefix.
func exportFilePrefix(kind Kind) string {
	if kind == KindSeries {
		return "tv_series_ids"
	}
	return "movie_ids"
}

// Scanner buffer for export lines; individual lines are small but titles
// with long original_title fields exist.
const exportMaxLineSize = 1 << 20

// Export downloads the daily id export for the given kind. The file for
// today (UTC) is tried first; if the upstream has not published it yet the
// previous day's file is used instead.
func (c *Client) Export(ctx context.Context, kind Kind) ([]ExportEntry, error) {
	today := c.now().UTC()

	entries, err := c.downloadExport(ctx, kind, today)
	if errors.Is(err, ErrNotFound) {
		logging.Debug().
			Str("kind", string(kind)).
			Msg("Today's id export not published yet, falling back to yesterday")
		entries, err = c.downloadExport(ctx, kind, today.AddDate(0, 0, -1))
	}
	if err != nil {
		return nil, fmt.Errorf("id export download failed: %w", err)
	}
	return entries, nil
}

func (c *Client) downloadExport(ctx context.Context, kind Kind, day time.Time) ([]ExportEntry, error) {
	url := fmt.Sprintf("%s/%s_%s.json.gz", c.exportURL, exportFilePrefix(kind), day.Format("01_02_2006"))

	// The export host takes no credentials and sits outside the API rate
	// limit, so it bypasses the limiter and circuit breaker.
	body, _, err := c.doRequest(ctx, url, false)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress id export: %w", err)
	}
	defer gz.Close()

	entries, err := parseExport(gz)
	if err != nil {
		return nil, err
	}
	logging.Info().
		Str("kind", string(kind)).
		Str("date", day.Format("2006-01-02")).
		Int("ids", len(entries)).
		Msg("Downloaded id export")
	return entries, nil
}

// parseExport reads newline-delimited JSON entries. Malformed lines are
// skipped rather than failing the whole export.
func parseExport(r io.Reader) ([]ExportEntry, error) {
	var entries []ExportEntry
	skipped := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), exportMaxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e ExportEntry
		if err := json.Unmarshal(line, &e); err != nil || e.ID == 0 {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read id export: %w", err)
	}
	if skipped > 0 {
		logging.Warn().Int("lines", skipped).Msg("Skipped malformed id export lines")
	}
	return entries, nil
}
