// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package recommend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/resona-fm/resona/internal/metrics"
)

// Engine blends independent scoring strategies into a single diverse
// recommendation list. Strategies run in parallel with individual timeouts
// and circuit breakers; a failed or slow strategy is absorbed, never fatal.
type Engine struct {
	mu sync.RWMutex

	cfg      Config
	logger   zerolog.Logger
	sources  []Source
	breakers map[Strategy]*gobreaker.CircuitBreaker[[]ScoredCandidate]
	selector Selector
	prefs    Preferences
	fallback FallbackGenerator

	requestCount  atomic.Int64
	fallbackCount atomic.Int64
	feedbackCount atomic.Int64

	failMu   sync.Mutex
	failures map[Strategy]int64
}

// NewEngine creates an engine with no sources registered.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg Config, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return &Engine{
		cfg:      cfg,
		logger:   logger.With().Str("component", "recommend").Logger(),
		breakers: make(map[Strategy]*gobreaker.CircuitBreaker[[]ScoredCandidate]),
		failures: make(map[Strategy]int64),
	}, nil
}

// RegisterSource adds a candidate source. Each source gets its own circuit
// breaker so a persistently failing collaborator stops being called.
func (e *Engine) RegisterSource(src Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources = append(e.sources, src)
	e.breakers[src.Strategy()] = e.newBreaker(src.Strategy())
	e.logger.Info().
		Str("strategy", src.Strategy().String()).
		Msg("source registered")
}

// SetSelector installs the diversity selector.
func (e *Engine) SetSelector(sel Selector) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selector = sel
	e.logger.Info().Str("selector", sel.Name()).Msg("selector registered")
}

// SetPreferences installs the adaptive preference model.
func (e *Engine) SetPreferences(p Preferences) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prefs = p
}

// SetFallback installs the degraded-path generator.
func (e *Engine) SetFallback(fb FallbackGenerator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fallback = fb
}

func (e *Engine) newBreaker(s Strategy) *gobreaker.CircuitBreaker[[]ScoredCandidate] {
	maxFailures := e.cfg.Breaker.MaxFailures
	return gobreaker.NewCircuitBreaker[[]ScoredCandidate](gobreaker.Settings{
		Name:    "source-" + s.String(),
		Timeout: e.cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
}

// Recommend generates up to req.K recommendations for the user.
// The only error conditions are an invalid profile and context cancellation;
// strategy failures degrade the result instead of failing the call.
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	req = e.prepareRequest(req)
	logger := e.requestLogger(req)
	e.requestCount.Add(1)

	if err := req.Profile.Validate(); err != nil {
		logger.Debug().Err(err).Msg("rejecting request")
		return nil, err
	}

	weights := e.requestWeights(req)
	results := e.runSources(ctx, req, weights)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates, used := e.mergeResults(results, weights)
	fallbackUsed := false
	if len(candidates) == 0 {
		candidates, fallbackUsed = e.runFallback(ctx, req, logger)
		used = nil
		if len(candidates) > 0 {
			used = []string{StrategyFallback.String()}
		}
	}

	e.applyAdaptiveBoost(req, candidates)
	items := e.selectAndOrder(ctx, candidates, req.K)

	logger.Debug().
		Int("total_candidates", len(candidates)).
		Int("returned", len(items)).
		Bool("fallback", fallbackUsed).
		Dur("elapsed", time.Since(start)).
		Msg("request complete")

	return &Response{
		Items:           items,
		TotalCandidates: len(candidates),
		Metadata: ResponseMetadata{
			RequestID:      req.RequestID,
			UserID:         req.UserID,
			StrategiesUsed: used,
			FallbackUsed:   fallbackUsed,
			LatencyMS:      time.Since(start).Milliseconds(),
			Timestamp:      time.Now().UTC(),
		},
	}, nil
}

// RecordFeedback routes a feedback event into the preference model.
func (e *Engine) RecordFeedback(ctx context.Context, fb Feedback) {
	e.mu.RLock()
	prefs := e.prefs
	e.mu.RUnlock()
	if prefs == nil {
		return
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now().UTC()
	}
	e.feedbackCount.Add(1)
	prefs.ApplyFeedback(ctx, fb)
}

// UserInsights returns the learned view of a user, or a zero view when no
// preference model is installed.
func (e *Engine) UserInsights(userID int64) UserInsights {
	e.mu.RLock()
	prefs := e.prefs
	e.mu.RUnlock()
	if prefs == nil {
		return UserInsights{UserID: userID}
	}
	return prefs.Insights(userID)
}

// Stats returns a snapshot of engine counters and configuration.
func (e *Engine) Stats() EngineStats {
	e.mu.RLock()
	weights := e.cfg.Weights.ToMap()
	diversity := e.cfg.Diversity.ToMap()
	users := 0
	for _, src := range e.sources {
		if counter, ok := src.(UserCounter); ok {
			users = counter.KnownUsers()
			break
		}
	}
	e.mu.RUnlock()

	e.failMu.Lock()
	failures := make(map[string]int64, len(e.failures))
	for s, n := range e.failures {
		failures[s.String()] = n
	}
	e.failMu.Unlock()

	return EngineStats{
		CollaborativeUsers: users,
		StrategyWeights:    weights,
		DiversityWeights:   diversity,
		RequestCount:       e.requestCount.Load(),
		FallbackCount:      e.fallbackCount.Load(),
		FeedbackCount:      e.feedbackCount.Load(),
		StrategyFailures:   failures,
	}
}

// GetConfig returns a copy of the engine configuration.
func (e *Engine) GetConfig() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Clone()
}

func (e *Engine) prepareRequest(req Request) Request {
	limits := e.cfg.Limits
	if req.K <= 0 {
		req.K = limits.DefaultK
	}
	if req.K > limits.MaxK {
		req.K = limits.MaxK
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	return req
}

func (e *Engine) requestLogger(req Request) zerolog.Logger {
	return e.logger.With().
		Str("request_id", req.RequestID).
		Int64("user_id", req.UserID).
		Logger()
}

func (e *Engine) requestWeights(req Request) StrategyWeights {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Weights.ApplyOverrides(req.WeightOverrides)
}

// sourceResult is the outcome of one source invocation.
type sourceResult struct {
	strategy   Strategy
	candidates []ScoredCandidate
	err        error
}

// runSources fans out to every registered source with positive weight.
// Each source runs under its own timeout and circuit breaker.
func (e *Engine) runSources(ctx context.Context, req Request, weights StrategyWeights) []sourceResult {
	e.mu.RLock()
	sources := make([]Source, len(e.sources))
	copy(sources, e.sources)
	e.mu.RUnlock()

	results := make([]sourceResult, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		if weights.Weight(src.Strategy()) <= 0 {
			results[i] = sourceResult{strategy: src.Strategy()}
			continue
		}
		wg.Add(1)
		go func(idx int, src Source) {
			defer wg.Done()
			results[idx] = e.runSource(ctx, req, src)
		}(i, src)
	}
	wg.Wait()
	return results
}

func (e *Engine) runSource(ctx context.Context, req Request, src Source) sourceResult {
	strategy := src.Strategy()
	e.mu.RLock()
	breaker := e.breakers[strategy]
	timeout := e.cfg.Limits.SourceTimeout
	limit := e.cfg.Limits.CandidatesPerSource
	e.mu.RUnlock()

	srcCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	candidates, err := breaker.Execute(func() ([]ScoredCandidate, error) {
		return src.Generate(srcCtx, req.UserID, req.Profile, limit)
	})
	if err != nil {
		e.recordFailure(strategy)
		e.logger.Warn().
			Err(err).
			Str("strategy", strategy.String()).
			Str("request_id", req.RequestID).
			Msg("source failed, continuing without it")
		return sourceResult{strategy: strategy, err: err}
	}
	return sourceResult{strategy: strategy, candidates: candidates}
}

func (e *Engine) recordFailure(s Strategy) {
	e.failMu.Lock()
	e.failures[s]++
	e.failMu.Unlock()
	metrics.StrategyFailures.WithLabelValues(s.String()).Inc()
}

// mergeResults deduplicates candidates by track ID across sources, keeping
// the highest weighted score per track, and applies strategy weights.
func (e *Engine) mergeResults(results []sourceResult, weights StrategyWeights) ([]ScoredCandidate, []string) {
	byTrack := make(map[string]ScoredCandidate)
	var used []string
	for _, res := range results {
		if res.err != nil || len(res.candidates) == 0 {
			continue
		}
		used = append(used, res.strategy.String())
		weight := weights.Weight(res.strategy)
		for _, cand := range res.candidates {
			cand.Score *= weight
			if cand.Metadata == nil {
				cand.Metadata = make(map[string]float64, 2)
			}
			cand.Metadata["strategy_weight"] = weight
			prev, seen := byTrack[cand.Track.ID]
			if !seen || cand.Score > prev.Score {
				byTrack[cand.Track.ID] = cand
			}
		}
	}
	merged := make([]ScoredCandidate, 0, len(byTrack))
	for _, cand := range byTrack {
		merged = append(merged, cand)
	}
	sort.Strings(used)
	return merged, used
}

// runFallback produces degraded candidates when every strategy yielded
// nothing. A failing fallback produces an empty result, never an error.
// The second return reports whether the generator ran at all; when no
// generator is installed or the path is disabled, nothing is counted.
func (e *Engine) runFallback(ctx context.Context, req Request, logger zerolog.Logger) ([]ScoredCandidate, bool) {
	e.mu.RLock()
	fb := e.fallback
	cfg := e.cfg.Fallback
	e.mu.RUnlock()

	if fb == nil || !cfg.Enabled {
		return nil, false
	}
	e.fallbackCount.Add(1)
	candidates, err := fb.Generate(ctx, req.Profile)
	if err != nil {
		logger.Warn().Err(err).Msg("fallback failed, returning empty result")
		return nil, true
	}
	if len(candidates) > req.K {
		candidates = candidates[:req.K]
	}
	for i := range candidates {
		candidates[i].Strategy = StrategyFallback
		candidates[i].Confidence *= cfg.ConfidenceScale
	}
	logger.Debug().Int("count", len(candidates)).Msg("fallback path used")
	return candidates, true
}

// applyAdaptiveBoost multiplies each candidate's score by the learned
// preference boost, capped so personalization never exceeds MaxBoost.
func (e *Engine) applyAdaptiveBoost(req Request, candidates []ScoredCandidate) {
	e.mu.RLock()
	prefs := e.prefs
	maxBoost := e.cfg.Learning.MaxBoost
	e.mu.RUnlock()
	if prefs == nil {
		return
	}
	for i := range candidates {
		boost := prefs.Boost(req.UserID, candidates[i].Track, req.Profile.Mood, req.Profile.Activity)
		if boost < 0 {
			boost = 0
		}
		if boost > 1 {
			boost = 1
		}
		multiplier := 1 + boost*maxBoost
		candidates[i].Score *= multiplier
		if candidates[i].Metadata == nil {
			candidates[i].Metadata = make(map[string]float64, 1)
		}
		candidates[i].Metadata["adaptive_boost"] = multiplier
	}
}

// selectAndOrder applies the diversity selector then sorts the chosen set
// by score. Diversity decides membership; score decides final order.
func (e *Engine) selectAndOrder(ctx context.Context, candidates []ScoredCandidate, k int) []ScoredCandidate {
	e.mu.RLock()
	sel := e.selector
	e.mu.RUnlock()

	var items []ScoredCandidate
	if sel != nil {
		items = sel.Select(ctx, candidates, k)
	} else {
		items = make([]ScoredCandidate, len(candidates))
		copy(items, candidates)
		if len(items) > k {
			sort.Slice(items, func(i, j int) bool { return items[i].Score > items[j].Score })
			items = items[:k]
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Track.ID < items[j].Track.ID
	})
	if items == nil {
		items = []ScoredCandidate{}
	}
	return items
}
