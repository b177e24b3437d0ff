// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package tmdb

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/jessielw/tmdb-mirror/internal/catalog"
)

// Appended sub-responses fetched alongside each record. Series have no
// release_dates endpoint.
const (
	movieAppend  = "alternative_titles,credits,external_ids,keywords,release_dates,videos"
	seriesAppend = "alternative_titles,credits,external_ids,keywords,videos"
)

// FetchMovie retrieves one movie record with all appended sub-responses.
// Returns ErrNotFound when the id no longer exists upstream.
func (c *Client) FetchMovie(ctx context.Context, id int64) (*catalog.Movie, error) {
	url := fmt.Sprintf("%s/3/movie/%d?append_to_response=%s", c.baseURL, id, movieAppend)
	body, err := c.get(ctx, url, "movie")
	if err != nil {
		return nil, err
	}

	var m catalog.Movie
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("failed to decode movie %d: %w", id, err)
	}
	if m.ID == 0 {
		m.ID = id
	}
	return &m, nil
}

// FetchSeries retrieves one TV series record with all appended
// sub-responses. Returns ErrNotFound when the id no longer exists upstream.
func (c *Client) FetchSeries(ctx context.Context, id int64) (*catalog.Series, error) {
	url := fmt.Sprintf("%s/3/tv/%d?append_to_response=%s", c.baseURL, id, seriesAppend)
	body, err := c.get(ctx, url, "tv")
	if err != nil {
		return nil, err
	}

	var s catalog.Series
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("failed to decode series %d: %w", id, err)
	}
	if s.ID == 0 {
		s.ID = id
	}
	return &s, nil
}
