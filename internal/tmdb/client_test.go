// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package tmdb

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jessielw/tmdb-mirror/internal/config"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	c := New(&config.TMDBConfig{
		ReadAccessToken: "test-token",
		RateLimit:       1000,
		MaxConnections:  10,
	})
	c.baseURL = server.URL
	c.exportURL = server.URL
	c.retryBase = time.Millisecond
	return c
}

func TestFetchMovieSuccess(t *testing.T) {
	var gotAuth, gotAppend string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAppend = r.URL.Query().Get("append_to_response")
		if r.URL.Path != "/3/movie/603" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"id": 603, "title": "The Matrix"}`))
	}))
	defer server.Close()

	m, err := newTestClient(t, server).FetchMovie(context.Background(), 603)
	if err != nil {
		t.Fatalf("FetchMovie: %v", err)
	}
	if m.ID != 603 || m.Title == nil || *m.Title != "The Matrix" {
		t.Errorf("unexpected movie %+v", m)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if !strings.Contains(gotAppend, "release_dates") || !strings.Contains(gotAppend, "external_ids") {
		t.Errorf("append_to_response = %q", gotAppend)
	}
}

func TestFetchSeriesOmitsReleaseDates(t *testing.T) {
	var gotAppend string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAppend = r.URL.Query().Get("append_to_response")
		w.Write([]byte(`{"id": 1399, "name": "Game of Thrones"}`))
	}))
	defer server.Close()

	s, err := newTestClient(t, server).FetchSeries(context.Background(), 1399)
	if err != nil {
		t.Fatalf("FetchSeries: %v", err)
	}
	if s.ID != 1399 {
		t.Errorf("series id = %d", s.ID)
	}
	if strings.Contains(gotAppend, "release_dates") {
		t.Errorf("series append should not request release_dates: %q", gotAppend)
	}
}

func TestFetchMovieNotFound(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(t, server).FetchMovie(context.Background(), 999999999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("404 retried: %d requests, want 1", got)
	}
}

func TestFetchMovieAuthFailure(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(t, server).FetchMovie(context.Background(), 603)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("auth failure retried: %d requests, want 1", got)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"id": 603}`))
	}))
	defer server.Close()

	m, err := newTestClient(t, server).FetchMovie(context.Background(), 603)
	if err != nil {
		t.Fatalf("FetchMovie after retries: %v", err)
	}
	if m.ID != 603 {
		t.Errorf("movie id = %d", m.ID)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestRetriesExhausted(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(t, server).FetchMovie(context.Background(), 603)
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if got := requests.Load(); got != maxAttempts {
		t.Errorf("requests = %d, want %d", got, maxAttempts)
	}
}

func TestRetryAfterHeaderHonored(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"id": 603}`))
	}))
	defer server.Close()

	start := time.Now()
	_, err := newTestClient(t, server).FetchMovie(context.Background(), 603)
	if err != nil {
		t.Fatalf("FetchMovie: %v", err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("retry fired after %v, want at least the Retry-After delay", elapsed)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestChangesPagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/movie/changes" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("start_date") == "" || r.URL.Query().Get("end_date") == "" {
			t.Error("missing date window parameters")
		}
		switch r.URL.Query().Get("page") {
		case "1":
			w.Write([]byte(`{"results": [{"id": 1}, {"id": 2, "adult": true}], "page": 1, "total_pages": 2}`))
		case "2":
			w.Write([]byte(`{"results": [{"id": 2}, {"id": 3}], "page": 2, "total_pages": 2}`))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	end := time.Now().UTC()
	changes, err := newTestClient(t, server).Changes(context.Background(), KindMovie, end.Add(-24*time.Hour), end)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	if len(changes) != 3 {
		t.Fatalf("changes = %d, want 3 after dedupe", len(changes))
	}
	// id 2 keeps the adult flag from its first appearance
	for _, ch := range changes {
		if ch.ID == 2 && (ch.Adult == nil || !*ch.Adult) {
			t.Error("duplicate id lost its first adult flag")
		}
	}
}

func writeGzipLines(t *testing.T, w http.ResponseWriter, lines []string) {
	t.Helper()
	gz := gzip.NewWriter(w)
	for _, line := range lines {
		gz.Write([]byte(line + "\n"))
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
}

func TestExportDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie_ids_06_15_2026.json.gz" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("export download should not send credentials")
		}
		writeGzipLines(t, w, []string{
			`{"adult": false, "id": 603, "original_title": "The Matrix", "popularity": 50.1}`,
			`{"adult": true, "id": 1234, "original_title": "x"}`,
			`not json`,
		})
	}))
	defer server.Close()

	c := newTestClient(t, server)
	c.now = func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }

	entries, err := c.Export(context.Background(), KindMovie)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 (malformed line skipped)", len(entries))
	}
	if entries[0].ID != 603 || entries[0].Adult {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].ID != 1234 || !entries[1].Adult {
		t.Errorf("entry 1 = %+v", entries[1])
	}
}

func TestExportFallsBackToYesterday(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.Contains(r.URL.Path, "06_15") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeGzipLines(t, w, []string{`{"adult": false, "id": 42}`})
	}))
	defer server.Close()

	c := newTestClient(t, server)
	c.now = func() time.Time { return time.Date(2026, 6, 15, 1, 0, 0, 0, time.UTC) }

	entries, err := c.Export(context.Background(), KindSeries)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != 42 {
		t.Fatalf("entries = %+v", entries)
	}
	if len(paths) != 2 || !strings.HasPrefix(paths[0], "/tv_series_ids_06_15_2026") || !strings.HasPrefix(paths[1], "/tv_series_ids_06_14_2026") {
		t.Errorf("paths = %v", paths)
	}
}
