// TMDB Mirror - local PostgreSQL mirror of The Movie Database catalog
// Copyright 2026 jessielw
// SPDX-License-Identifier: MIT
// https://github.com/jessielw/tmdb-mirror

// Package api is the optional REST control surface: job enqueue endpoints,
// health, and Prometheus metrics. Everything write-shaped goes through the
// scheduler, so REST callers observe single-flight rejections synchronously.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jessielw/tmdb-mirror/internal/config"
	"github.com/jessielw/tmdb-mirror/internal/logging"
	"github.com/jessielw/tmdb-mirror/internal/metrics"
	"github.com/jessielw/tmdb-mirror/internal/scheduler"
)

// jobRoutes maps the hyphenated URL segment to the internal job kind.
// add_movie/add_series have their own /movies/{id} and /series/{id} routes.
var jobRoutes = map[string]scheduler.Kind{
	"full-sweep":    scheduler.KindFullSweep,
	"changes-sync":  scheduler.KindChangesSync,
	"missing-ids":   scheduler.KindMissingIDs,
	"prune-deleted": scheduler.KindPruneDeleted,
	"create-tables": scheduler.KindCreateTables,
	"test-webhook":  scheduler.KindTestWebhook,
}

// submitter is the scheduler surface the API needs.
type submitter interface {
	Submit(scheduler.Job) error
}

// Server hosts the REST surface as a suture service.
type Server struct {
	router chi.Router
	sched  submitter
	apiKey string
	addr   string
}

func NewServer(cfg *config.APIConfig, sched submitter) *Server {
	s := &Server{
		sched:  sched,
		apiKey: cfg.Key,
		addr:   fmt.Sprintf(":%d", cfg.Port),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(60, time.Minute))
	r.Use(s.instrument)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/jobs/{job}", s.handleEnqueueJob)
		r.Post("/movies/{id}", s.handleAddTitle(scheduler.KindAddMovie))
		r.Post("/series/{id}", s.handleAddTitle(scheduler.KindAddSeries))
	})
	return r
}

// Serve runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logging.Info().Str("addr", s.addr).Msg("REST API listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// requireAPIKey enforces the X-API-Key header when a key is configured.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			got := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing API key"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// instrument records request counts and latency per route.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.RecordAPIRequest(r.Method, pattern, ww.Status(), time.Since(start))
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "tmdb-mirror",
		"status":  "ok",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	kind, ok := jobRoutes[chi.URLParam(r, "job")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown job"})
		return
	}

	payload := ""
	if kind == scheduler.KindTestWebhook {
		payload = readMessage(r)
	}
	if kind == scheduler.KindFullSweep && r.URL.Query().Get("force") == "true" {
		payload = "force"
	}

	job, err := scheduler.NewJob(string(kind), payload)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.submit(w, job)
}

func (s *Server) handleAddTitle(kind scheduler.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id must be a positive integer"})
			return
		}
		job, err := scheduler.NewJob(string(kind), strconv.FormatInt(id, 10))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.submit(w, job)
	}
}

func (s *Server) submit(w http.ResponseWriter, job scheduler.Job) {
	err := s.sched.Submit(job)
	switch {
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "already running",
			"job":   string(job.Kind),
		})
	case errors.Is(err, scheduler.ErrQueueFull):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "job queue full"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "queued",
			"job":    string(job.Kind),
			"job_id": job.ID.String(),
		})
	}
}

// readMessage pulls an optional {"message": "..."} body for test-webhook.
func readMessage(r *http.Request) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return ""
	}
	return body.Message
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode API response")
	}
}
