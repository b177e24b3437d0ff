// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

// Package notify posts job completion and failure announcements to a single
// webhook. Delivery is best-effort: failures are logged and never propagate
// into the job that triggered them.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/jessielw/tmdb-mirror/internal/config"
	"github.com/jessielw/tmdb-mirror/internal/logging"
	"github.com/jessielw/tmdb-mirror/internal/metrics"
)

const (
	maxAttempts  = 6
	attemptDelay = time.Second
)

// Notifier delivers messages to the configured webhook with HTTP Basic
// credentials. A disabled notifier silently drops messages.
type Notifier struct {
	enabled  bool
	url      string
	username string
	password string

	client *http.Client
	delay  time.Duration
}

func New(cfg *config.WebhookConfig) *Notifier {
	return &Notifier{
		enabled:  cfg.Enabled,
		url:      cfg.URL,
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: 15 * time.Second},
		delay:    attemptDelay,
	}
}

// Notify posts {"content": message}. Up to 6 attempts, one second apart;
// exhaustion is logged and swallowed.
func (n *Notifier) Notify(ctx context.Context, message string) {
	if !n.enabled || n.url == "" {
		return
	}

	body, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to encode webhook payload")
		return
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := n.post(ctx, body); err == nil {
			metrics.RecordWebhookDelivery(true)
			logging.Debug().Int("attempt", attempt).Msg("Webhook delivered")
			return
		} else {
			lastErr = err
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(n.delay):
		case <-ctx.Done():
			metrics.RecordWebhookDelivery(false)
			logging.Warn().Err(ctx.Err()).Msg("Webhook delivery cancelled")
			return
		}
	}

	metrics.RecordWebhookDelivery(false)
	logging.Error().Err(lastErr).Int("attempts", maxAttempts).Msg("Webhook delivery failed")
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(n.username, n.password)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
