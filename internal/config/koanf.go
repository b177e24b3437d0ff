// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths lists where a config file is searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tmdb-mirror/config.yaml",
	"/etc/tmdb-mirror/config.yml",
}

// Load builds the configuration from defaults, optional YAML file, and
// environment variables, then validates it. A validation error here is
// fatal to startup.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps the flat environment variable names (the service's
// historical contract) to nested koanf paths. Unknown variables are skipped
// so random environment noise never pollutes the config.
var envMappings = map[string]string{
	"database_uri":    "database.uri",
	"enable_unaccent": "database.enable_unaccent",

	"cron_full_sweep":   "cron.full_sweep",
	"cron_missing_only": "cron.missing_only",
	"cron_prune":        "cron.prune",
	"cron_changes_sync": "cron.changes_sync",

	"log_lvl":        "logging.level",
	"log_to_console": "logging.console",

	"tmdb_read_access_token": "tmdb.read_access_token",
	"tmdb_rate_limit":        "tmdb.rate_limit",
	"tmdb_max_connections":   "tmdb.max_connections",
	"tmdb_batch_insert":      "tmdb.batch_insert",

	"webhook_enabled": "webhook.enabled",
	"webhook_bot_usr": "webhook.bot_usr",
	"webhook_bot_pw":  "webhook.bot_pw",
	"webhook_url":     "webhook.url",

	"api_enabled": "api.enabled",
	"api_port":    "api.port",
	"api_key":     "api.key",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
