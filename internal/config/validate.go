// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package config

import (
	"fmt"
	"net/url"
)

// upstreamRateCap is TMDB's published request ceiling per second.
const upstreamRateCap = 50

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateWebhook(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	if c.Database.URI == "" {
		return fmt.Errorf("DATABASE_URI is required")
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.TMDB.ReadAccessToken == "" {
		return fmt.Errorf("TMDB_READ_ACCESS_TOKEN is required")
	}
	if c.TMDB.RateLimit < 1 || c.TMDB.RateLimit > upstreamRateCap {
		return fmt.Errorf("TMDB_RATE_LIMIT must be between 1 and %d, got %d", upstreamRateCap, c.TMDB.RateLimit)
	}
	if c.TMDB.MaxConnections < 1 {
		return fmt.Errorf("TMDB_MAX_CONNECTIONS must be at least 1, got %d", c.TMDB.MaxConnections)
	}
	if c.TMDB.BatchInsert < 1 {
		return fmt.Errorf("TMDB_BATCH_INSERT must be at least 1, got %d", c.TMDB.BatchInsert)
	}
	return nil
}

func (c *Config) validateWebhook() error {
	if !c.Webhook.Enabled {
		return nil
	}
	if c.Webhook.URL == "" || c.Webhook.Username == "" || c.Webhook.Password == "" {
		return fmt.Errorf("WEBHOOK_URL, WEBHOOK_BOT_USR and WEBHOOK_BOT_PW are required when WEBHOOK_ENABLED=true")
	}
	parsed, err := url.Parse(c.Webhook.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("WEBHOOK_URL is not a valid http(s) URL: %q", c.Webhook.URL)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if !c.API.Enabled {
		return nil
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("API_PORT must be between 1 and 65535, got %d", c.API.Port)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case 10, 20, 30, 40, 50:
		return nil
	default:
		return fmt.Errorf("LOG_LVL must be one of 10, 20, 30, 40, 50, got %d", c.Logging.Level)
	}
}
