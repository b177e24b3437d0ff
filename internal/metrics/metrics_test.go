// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordJob(t *testing.T) {
	before := testutil.ToFloat64(JobsTotal.WithLabelValues("full_sweep_movie", "success"))
	RecordJob("full_sweep_movie", 42*time.Second, nil)
	after := testutil.ToFloat64(JobsTotal.WithLabelValues("full_sweep_movie", "success"))
	if after != before+1 {
		t.Errorf("success counter = %v, want %v", after, before+1)
	}

	beforeFail := testutil.ToFloat64(JobsTotal.WithLabelValues("full_sweep_movie", "failure"))
	RecordJob("full_sweep_movie", time.Second, errors.New("export download failed"))
	afterFail := testutil.ToFloat64(JobsTotal.WithLabelValues("full_sweep_movie", "failure"))
	if afterFail != beforeFail+1 {
		t.Errorf("failure counter = %v, want %v", afterFail, beforeFail+1)
	}
}

func TestRecordJobRejected(t *testing.T) {
	before := testutil.ToFloat64(JobsTotal.WithLabelValues("changes_sync", "rejected"))
	RecordJobRejected("changes_sync")
	after := testutil.ToFloat64(JobsTotal.WithLabelValues("changes_sync", "rejected"))
	if after != before+1 {
		t.Errorf("rejected counter = %v, want %v", after, before+1)
	}
}

func TestUpdateQueueDepth(t *testing.T) {
	UpdateQueueDepth(7)
	if got := testutil.ToFloat64(JobQueueDepth); got != 7 {
		t.Errorf("queue depth gauge = %v, want 7", got)
	}
	UpdateQueueDepth(0)
	if got := testutil.ToFloat64(JobQueueDepth); got != 0 {
		t.Errorf("queue depth gauge = %v, want 0", got)
	}
}

func TestRecordFlush(t *testing.T) {
	before := testutil.ToFloat64(RowsFlushed.WithLabelValues("movies"))
	RecordFlush("movies", 5000, 120*time.Millisecond)
	after := testutil.ToFloat64(RowsFlushed.WithLabelValues("movies"))
	if after != before+5000 {
		t.Errorf("rows flushed = %v, want %v", after, before+5000)
	}
}

func TestRecordSwap(t *testing.T) {
	before := testutil.ToFloat64(GenerationSwaps.WithLabelValues("movie", "aborted"))
	RecordSwap("movie", true)
	after := testutil.ToFloat64(GenerationSwaps.WithLabelValues("movie", "aborted"))
	if after != before+1 {
		t.Errorf("aborted swaps = %v, want %v", after, before+1)
	}
}

func TestRecordWebhookDelivery(t *testing.T) {
	before := testutil.ToFloat64(WebhookDeliveries.WithLabelValues("failed"))
	RecordWebhookDelivery(false)
	after := testutil.ToFloat64(WebhookDeliveries.WithLabelValues("failed"))
	if after != before+1 {
		t.Errorf("failed deliveries = %v, want %v", after, before+1)
	}
}

func TestBreakerStateValue(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"half-open", 1},
		{"open", 2},
		{"anything-else", 0},
	}
	for _, tt := range tests {
		if got := breakerStateValue(tt.state); got != tt.want {
			t.Errorf("breakerStateValue(%q) = %v, want %v", tt.state, got, tt.want)
		}
	}
}
