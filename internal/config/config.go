// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

// Package config loads service configuration with Koanf v2.
//
// Precedence, highest wins: environment variables > optional YAML config
// file > built-in defaults. The environment keys are the service's stable
// contract (DATABASE_URI, TMDB_*, CRON_*, WEBHOOK_*, API_*, LOG_*); the
// YAML file is a convenience for development.
package config

// Config is the root configuration for the mirror service.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Cron     CronConfig     `koanf:"cron"`
	Logging  LoggingConfig  `koanf:"logging"`
	TMDB     TMDBConfig     `koanf:"tmdb"`
	Webhook  WebhookConfig  `koanf:"webhook"`
	API      APIConfig      `koanf:"api"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	// URI is the PostgreSQL connection string (DATABASE_URI).
	URI string `koanf:"uri"`

	// EnableUnaccent creates the unaccent extension at init so readers can
	// run accent-insensitive title searches (ENABLE_UNACCENT).
	EnableUnaccent bool `koanf:"enable_unaccent"`
}

// CronConfig holds the four job schedules. Each value is either a standard
// 5-field CRON expression or one of the disable tokens
// {"", "false", "off", "disable", "disabled", "no"} (case-insensitive).
type CronConfig struct {
	FullSweep   string `koanf:"full_sweep"`
	MissingOnly string `koanf:"missing_only"`
	Prune       string `koanf:"prune"`
	ChangesSync string `koanf:"changes_sync"`
}

// LoggingConfig holds log routing settings.
type LoggingConfig struct {
	// Level uses the numeric scale 10/20/30/40/50 (LOG_LVL).
	Level int `koanf:"level"`

	// Console switches from JSON to console output (LOG_TO_CONSOLE).
	Console bool `koanf:"console"`
}

// TMDBConfig holds upstream API settings.
type TMDBConfig struct {
	// ReadAccessToken is the v4 bearer token (TMDB_READ_ACCESS_TOKEN).
	ReadAccessToken string `koanf:"read_access_token"`

	// RateLimit is permits per second for the global token bucket
	// (TMDB_RATE_LIMIT). TMDB enforces ~50/s; stay under it.
	RateLimit int `koanf:"rate_limit"`

	// MaxConnections bounds concurrent in-flight upstream requests
	// (TMDB_MAX_CONNECTIONS).
	MaxConnections int `koanf:"max_connections"`

	// BatchInsert is rows per bulk INSERT (TMDB_BATCH_INSERT).
	BatchInsert int `koanf:"batch_insert"`
}

// WebhookConfig holds completion/failure notifier settings.
type WebhookConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Username string `koanf:"bot_usr"`
	Password string `koanf:"bot_pw"`
	URL      string `koanf:"url"`
}

// APIConfig holds the optional REST control surface settings.
type APIConfig struct {
	Enabled bool `koanf:"enabled"`
	Port    int  `koanf:"port"`

	// Key, when set, is required in the X-API-Key header on every route.
	Key string `koanf:"key"`
}

// defaultConfig returns a Config with all defaults applied. These are
// overridden by the config file and environment variables in that order.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URI:            "",
			EnableUnaccent: false,
		},
		Cron: CronConfig{
			// All schedules disabled by default; operators opt in.
			FullSweep:   "",
			MissingOnly: "",
			Prune:       "",
			ChangesSync: "",
		},
		Logging: LoggingConfig{
			Level:   20,
			Console: false,
		},
		TMDB: TMDBConfig{
			ReadAccessToken: "",
			RateLimit:       45,
			MaxConnections:  20,
			BatchInsert:     5000,
		},
		Webhook: WebhookConfig{
			Enabled: false,
		},
		API: APIConfig{
			Enabled: false,
			Port:    8080,
			Key:     "",
		},
	}
}
