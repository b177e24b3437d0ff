// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

// Package tmdb is the upstream API client: a process-wide rate gate
// (token bucket plus in-flight semaphore), retrying HTTP transport behind a
// circuit breaker, record fetches with append_to_response, /changes
// pagination, and daily id-export downloads.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/jessielw/tmdb-mirror/internal/config"
	"github.com/jessielw/tmdb-mirror/internal/logging"
	"github.com/jessielw/tmdb-mirror/internal/metrics"
)

// Sentinel errors. ErrNotFound is a data signal, not a failure: missing-id
// probes and delete detection depend on it.
var (
	ErrNotFound = errors.New("upstream record not found")
	ErrAuth     = errors.New("upstream rejected credentials")
)

// Kind selects the upstream record family path segment.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "tv"
)

const (
	defaultBaseURL   = "https://api.themoviedb.org"
	defaultExportURL = "http://files.tmdb.org/p/exports"

	// maxAttempts bounds retries on transport errors, 5xx and 429.
	maxAttempts = 5

	requestTimeout = 30 * time.Second

	// maxErrorBodySize limits how much of an error response body is read
	// for diagnostics.
	maxErrorBodySize = 64 * 1024
)

// Client is the upstream API client. All methods are safe for concurrent
// use; the limiter and semaphore are shared across every caller in the
// process.
type Client struct {
	baseURL   string
	exportURL string
	token     string

	http    *http.Client
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	breaker *gobreaker.CircuitBreaker[[]byte]

	// retryBase seeds the backoff schedule; tests shrink it.
	retryBase time.Duration

	// now is swapped in tests to pin export file dates.
	now func() time.Time
}

// New builds a client from configuration: R permits/sec with burst R, and
// at most C concurrent in-flight requests.
func New(cfg *config.TMDBConfig) *Client {
	c := &Client{
		baseURL:   defaultBaseURL,
		exportURL: defaultExportURL,
		token:     cfg.ReadAccessToken,
		http:      &http.Client{Timeout: requestTimeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit),
		sem:       semaphore.NewWeighted(int64(cfg.MaxConnections)),
		retryBase: time.Second,
		now:       time.Now,
	}
	c.breaker = newBreaker("tmdb-api")
	return c
}

// newBreaker configures the upstream circuit breaker: opens at a 60%
// failure rate over at least 10 requests, probes again after 2 minutes.
// Not-found and auth results are data signals and never trip it.
func newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening upstream circuit")
				return true
			}
			return false
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrAuth) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := breakerState(from), breakerState(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("Upstream circuit state change")
			metrics.RecordCircuitBreakerTransition(name, fromStr, toStr)
		},
	})
}

func breakerState(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// get acquires the connection gate and rate limiter, then issues one
// authenticated GET behind the circuit breaker. The endpoint label is used
// for metrics only.
func (c *Client) get(ctx context.Context, url, endpoint string) ([]byte, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.getWithRetry(ctx, url, endpoint, true)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("upstream circuit open: %w", err)
	}
	return body, err
}

// getWithRetry issues a GET with up to maxAttempts tries. Transport errors,
// 5xx and 429 retry with exponential backoff and jitter; a 429 Retry-After
// header overrides the computed delay. 404 maps to ErrNotFound and 401/403
// to ErrAuth, both without retrying.
func (c *Client) getWithRetry(ctx context.Context, url, endpoint string, authed bool) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryBase
	bo.MaxInterval = 30 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.RecordUpstreamRetry(endpoint)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		body, retryAfter, err := c.doRequest(ctx, url, authed)
		elapsed := time.Since(start)

		switch {
		case err == nil:
			metrics.RecordUpstreamRequest(endpoint, "success", elapsed)
			return body, nil
		case errors.Is(err, ErrNotFound):
			metrics.RecordUpstreamRequest(endpoint, "not_found", elapsed)
			return nil, err
		case errors.Is(err, ErrAuth):
			metrics.RecordUpstreamRequest(endpoint, "error", elapsed)
			return nil, err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		}

		if retryAfter > 0 {
			metrics.RecordUpstreamRequest(endpoint, "rate_limited", elapsed)
		} else {
			metrics.RecordUpstreamRequest(endpoint, "error", elapsed)
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		delay := bo.NextBackOff()
		if retryAfter > 0 {
			delay = retryAfter
		}
		logging.Debug().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying upstream request")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("upstream request failed after %d attempts: %w", maxAttempts, lastErr)
}

// doRequest performs a single HTTP round trip. retryAfter is non-zero only
// for 429 responses carrying a parseable Retry-After header.
func (c *Client) doRequest(ctx context.Context, url string, authed bool) (body []byte, retryAfter time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read response body: %w", err)
		}
		return body, 0, nil

	case resp.StatusCode == http.StatusNotFound:
		return nil, 0, ErrNotFound

	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, 0, fmt.Errorf("%w (HTTP %d)", ErrAuth, resp.StatusCode)

	case resp.StatusCode == http.StatusTooManyRequests:
		if header := resp.Header.Get("Retry-After"); header != "" {
			if seconds, parseErr := strconv.Atoi(header); parseErr == nil && seconds > 0 {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, retryAfter, fmt.Errorf("rate limited (HTTP 429)")

	case resp.StatusCode >= 500:
		return nil, 0, fmt.Errorf("upstream server error (HTTP %d)", resp.StatusCode)

	default:
		snippet := readBodyForError(resp.Body)
		return nil, 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}
}

// readBodyForError reads a bounded amount of the response body for error
// reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}
