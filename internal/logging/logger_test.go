// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   int
		want zerolog.Level
	}{
		{10, zerolog.DebugLevel},
		{20, zerolog.InfoLevel},
		{30, zerolog.WarnLevel},
		{40, zerolog.ErrorLevel},
		{50, zerolog.FatalLevel},
		{0, zerolog.InfoLevel},
		{25, zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: 20, Output: &buf})
	defer Init(Config{Level: 20})

	Info().Str("key", "value").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"key":"value"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestInitLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: 30, Output: &buf})
	defer Init(Config{Level: 20})

	Debug().Msg("should not appear")
	Info().Msg("also filtered")
	Warn().Msg("visible")

	out := buf.String()
	if strings.Contains(out, "should not appear") || strings.Contains(out, "also filtered") {
		t.Errorf("level filter not applied, got %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn message missing, got %q", out)
	}
}

func TestSlogLoggerWritesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: 20, Output: &buf})
	defer Init(Config{Level: 20})

	slogger := NewSlogLogger()
	slogger.Info("supervisor event", "service", "scheduler")

	out := buf.String()
	if !strings.Contains(out, "supervisor event") {
		t.Errorf("slog message missing, got %q", out)
	}
	if !strings.Contains(out, `"service":"scheduler"`) {
		t.Errorf("slog attr missing, got %q", out)
	}
}
