// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jessielw/tmdb-mirror/internal/config"
)

func testNotifier(url string) *Notifier {
	n := New(&config.WebhookConfig{
		Enabled:  true,
		URL:      url,
		Username: "bot",
		Password: "secret",
	})
	n.delay = time.Millisecond
	return n
}

func TestNotifyDelivers(t *testing.T) {
	var gotBody string
	var gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotUser, gotPass, _ = r.BasicAuth()
	}))
	defer server.Close()

	testNotifier(server.URL).Notify(context.Background(), "sweep complete")

	if !strings.Contains(gotBody, `"content":"sweep complete"`) {
		t.Errorf("body = %q", gotBody)
	}
	if gotUser != "bot" || gotPass != "secret" {
		t.Errorf("basic auth = %s:%s", gotUser, gotPass)
	}
}

func TestNotifyRetriesUntilSuccess(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	testNotifier(server.URL).Notify(context.Background(), "hello")

	if got := requests.Load(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestNotifyGivesUpAfterMaxAttempts(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	// Must not panic or return an error: delivery failure never fails a job.
	testNotifier(server.URL).Notify(context.Background(), "hello")

	if got := requests.Load(); got != maxAttempts {
		t.Errorf("requests = %d, want %d", got, maxAttempts)
	}
}

func TestNotifyDisabled(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	n := New(&config.WebhookConfig{Enabled: false, URL: server.URL})
	n.Notify(context.Background(), "hello")

	if requests.Load() != 0 {
		t.Error("disabled notifier must not post")
	}
}
