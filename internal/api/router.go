// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

// Package api exposes the recommendation engine over HTTP. All endpoints
// return the APIResponse envelope; errors carry machine-readable codes.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/resona-fm/resona/internal/metrics"
)

// RouterConfig tunes the HTTP middleware stack.
type RouterConfig struct {
	// RateLimit is requests per minute per client IP. 0 disables limiting.
	RateLimit int

	// CORSOrigins lists allowed origins. Empty allows none.
	CORSOrigins []string
}

// NewRouter assembles the full HTTP handler: middleware, API routes,
// health and metrics endpoints.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouter(handler *Handler, cfg RouterConfig, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}
	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	}

	r.Get("/health", handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recommendations", handler.Recommend)
		r.Post("/feedback", handler.Feedback)
		r.Get("/users/{userID}/insights", handler.Insights)
		r.Get("/engine/stats", handler.Stats)
	})

	return r
}

// requestLogger logs each request with latency and status, and feeds the
// API request metrics.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			metrics.RecordAPIRequest(r.Method, r.URL.Path, ww.Status(), elapsed)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", elapsed).
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
