// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/jessielw/tmdb-mirror/internal/logging"
)

// Change is one entry from the /changes feed. Adult is a pointer because
// the upstream sometimes omits it; absent means unknown, not false.
type Change struct {
	ID    int64 `json:"id"`
	Adult *bool `json:"adult"`
}

type changesPage struct {
	Results      []Change `json:"results"`
	Page         int      `json:"page"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

// The upstream paginates /changes and caps the page parameter at 500.
const maxChangesPages = 500

// Changes walks every page of the /changes feed for the given kind between
// start and end (dates are truncated to UTC days) and returns the deduplicated
// set of changed ids. Duplicate ids across pages are collapsed, keeping the
// first adult flag seen.
func (c *Client) Changes(ctx context.Context, kind Kind, start, end time.Time) ([]Change, error) {
	seen := make(map[int64]struct{})
	var out []Change

	page := 1
	for {
		u := fmt.Sprintf("%s/3/%s/changes?start_date=%s&end_date=%s&page=%d",
			c.baseURL, url.PathEscape(string(kind)),
			start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02"), page)

		body, err := c.get(ctx, u, string(kind)+"_changes")
		if err != nil {
			return nil, fmt.Errorf("changes page %d: %w", page, err)
		}

		var p changesPage
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("failed to decode changes page %d: %w", page, err)
		}

		for _, ch := range p.Results {
			if ch.ID == 0 {
				continue
			}
			if _, dup := seen[ch.ID]; dup {
				continue
			}
			seen[ch.ID] = struct{}{}
			out = append(out, ch)
		}

		if page >= p.TotalPages || page >= maxChangesPages {
			if p.TotalPages > maxChangesPages {
				logging.Warn().
					Str("kind", string(kind)).
					Int("total_pages", p.TotalPages).
					Msg("Changes feed truncated at upstream page cap")
			}
			break
		}
		page++
	}

	logging.Debug().
		Str("kind", string(kind)).
		Int("changed_ids", len(out)).
		Int("pages", page).
		Msg("Fetched changes feed")
	return out, nil
}
