// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package preferences

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/resona-fm/resona/internal/metrics"
)

// Worker periodically flushes dirty preference state and sweeps time
// decay across idle users. It implements suture.Service.
type Worker struct {
	learner       *Learner
	flushInterval time.Duration
	decayInterval time.Duration
	logger        zerolog.Logger
}

// NewWorker creates a maintenance worker for the learner.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewWorker(learner *Learner, flushInterval, decayInterval time.Duration, logger zerolog.Logger) *Worker {
	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}
	if decayInterval <= 0 {
		decayInterval = time.Hour
	}
	return &Worker{
		learner:       learner,
		flushInterval: flushInterval,
		decayInterval: decayInterval,
		logger:        logger.With().Str("service", "preference-worker").Logger(),
	}
}

// Serve runs the flush and decay loops until the context is canceled.
// A final flush runs on shutdown so queued state is not lost.
func (w *Worker) Serve(ctx context.Context) error {
	w.logger.Info().
		Dur("flush_interval", w.flushInterval).
		Dur("decay_interval", w.decayInterval).
		Msg("preference worker started")

	flush := time.NewTicker(w.flushInterval)
	defer flush.Stop()
	decay := time.NewTicker(w.decayInterval)
	defer decay.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := w.learner.Flush(flushCtx); err != nil {
				w.logger.Warn().Err(err).Msg("final flush incomplete")
			}
			w.logger.Info().Msg("preference worker stopped")
			return ctx.Err()
		case <-flush.C:
			err := w.learner.Flush(ctx)
			metrics.RecordFlush(err)
			if err != nil {
				w.logger.Debug().Err(err).Msg("flush pass had failures")
			}
		case <-decay.C:
			w.learner.DecayAll()
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (w *Worker) String() string {
	return "preference-worker"
}
