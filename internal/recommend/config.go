// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package recommend

import (
	"fmt"
	"time"
)

// StrategyWeights controls the relative influence of each scoring strategy.
// The diversity entry is a reserve consumed by the selector rather than a
// candidate source.
type StrategyWeights struct {
	Collaborative float64 `json:"collaborative" koanf:"collaborative"`
	ContentBased  float64 `json:"content_based" koanf:"content_based"`
	Popularity    float64 `json:"popularity" koanf:"popularity"`
	Recency       float64 `json:"recency" koanf:"recency"`
	Diversity     float64 `json:"diversity" koanf:"diversity"`
}

// DefaultStrategyWeights returns the standard strategy weighting.
func DefaultStrategyWeights() StrategyWeights {
	return StrategyWeights{
		Collaborative: 0.30,
		ContentBased:  0.25,
		Popularity:    0.20,
		Recency:       0.15,
		Diversity:     0.10,
	}
}

// Weight returns the weight of a single strategy, 0 for strategies that
// carry no blend weight.
func (w StrategyWeights) Weight(s Strategy) float64 {
	switch s {
	case StrategyCollaborative:
		return w.Collaborative
	case StrategyContentBased:
		return w.ContentBased
	case StrategyPopularity:
		return w.Popularity
	case StrategyRecency:
		return w.Recency
	case StrategyDiversity:
		return w.Diversity
	default:
		return 0
	}
}

// ApplyOverrides returns a copy with per-request overrides applied.
// Unknown strategies are ignored.
func (w StrategyWeights) ApplyOverrides(overrides map[Strategy]float64) StrategyWeights {
	out := w
	for s, v := range overrides {
		switch s {
		case StrategyCollaborative:
			out.Collaborative = v
		case StrategyContentBased:
			out.ContentBased = v
		case StrategyPopularity:
			out.Popularity = v
		case StrategyRecency:
			out.Recency = v
		case StrategyDiversity:
			out.Diversity = v
		}
	}
	return out
}

// ToMap returns the weights keyed by strategy wire name.
func (w StrategyWeights) ToMap() map[string]float64 {
	return map[string]float64{
		StrategyCollaborative.String(): w.Collaborative,
		StrategyContentBased.String():  w.ContentBased,
		StrategyPopularity.String():    w.Popularity,
		StrategyRecency.String():       w.Recency,
		StrategyDiversity.String():     w.Diversity,
	}
}

// Validate checks that all weights are non-negative and at least one
// candidate-generating strategy has positive weight.
func (w StrategyWeights) Validate() error {
	for name, v := range w.ToMap() {
		if v < 0 {
			return fmt.Errorf("strategy weight %s must be non-negative, got %f", name, v)
		}
	}
	if w.Collaborative <= 0 && w.ContentBased <= 0 && w.Popularity <= 0 && w.Recency <= 0 {
		return fmt.Errorf("at least one candidate strategy must have positive weight")
	}
	return nil
}

// DiversityWeights controls the feature contributions to set diversity.
type DiversityWeights struct {
	Artist float64 `json:"artist" koanf:"artist"`
	Genre  float64 `json:"genre" koanf:"genre"`
	Year   float64 `json:"year" koanf:"year"`
	Album  float64 `json:"album" koanf:"album"`
}

// DefaultDiversityWeights returns the standard diversity weighting.
func DefaultDiversityWeights() DiversityWeights {
	return DiversityWeights{
		Artist: 0.4,
		Genre:  0.3,
		Year:   0.2,
		Album:  0.1,
	}
}

// ToMap returns the weights keyed by feature name.
func (w DiversityWeights) ToMap() map[string]float64 {
	return map[string]float64{
		"artist": w.Artist,
		"genre":  w.Genre,
		"year":   w.Year,
		"album":  w.Album,
	}
}

// Validate checks that all diversity weights are non-negative.
func (w DiversityWeights) Validate() error {
	for name, v := range w.ToMap() {
		if v < 0 {
			return fmt.Errorf("diversity weight %s must be non-negative, got %f", name, v)
		}
	}
	return nil
}

// LearningConfig controls the adaptive preference learner.
type LearningConfig struct {
	// LikeWeightDelta is the weight adjustment for a like.
	LikeWeightDelta float64 `json:"like_weight_delta" koanf:"like_weight_delta"`

	// DislikeWeightDelta is the weight adjustment for a dislike (negative).
	DislikeWeightDelta float64 `json:"dislike_weight_delta" koanf:"dislike_weight_delta"`

	// SkipWeightDelta is the weight adjustment for a skip (negative).
	SkipWeightDelta float64 `json:"skip_weight_delta" koanf:"skip_weight_delta"`

	// LikeConfidenceDelta is the confidence gain for likes and dislikes.
	LikeConfidenceDelta float64 `json:"like_confidence_delta" koanf:"like_confidence_delta"`

	// SkipConfidenceDelta is the confidence gain for skips.
	SkipConfidenceDelta float64 `json:"skip_confidence_delta" koanf:"skip_confidence_delta"`

	// DecayRate scales time decay of idle preferences.
	DecayRate float64 `json:"decay_rate" koanf:"decay_rate"`

	// DecayIdle is how long a preference must be idle before decay applies.
	DecayIdle time.Duration `json:"decay_idle" koanf:"decay_idle"`

	// HistoryLimit caps the retained per-user feedback history.
	HistoryLimit int `json:"history_limit" koanf:"history_limit"`

	// MaxBoost caps the adaptive multiplier applied to final scores.
	// A value of 0.3 means scores are boosted by at most 30%.
	MaxBoost float64 `json:"max_boost" koanf:"max_boost"`
}

// DefaultLearningConfig returns the standard learner tuning.
func DefaultLearningConfig() LearningConfig {
	return LearningConfig{
		LikeWeightDelta:     0.1,
		DislikeWeightDelta:  -0.1,
		SkipWeightDelta:     -0.05,
		LikeConfidenceDelta: 0.05,
		SkipConfidenceDelta: 0.02,
		DecayRate:           0.01,
		DecayIdle:           7 * 24 * time.Hour,
		HistoryLimit:        1000,
		MaxBoost:            0.3,
	}
}

// Validate checks learner tuning bounds.
func (c LearningConfig) Validate() error {
	if c.DecayRate < 0 {
		return fmt.Errorf("decay_rate must be non-negative, got %f", c.DecayRate)
	}
	if c.DecayIdle < 0 {
		return fmt.Errorf("decay_idle must be non-negative, got %s", c.DecayIdle)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be at least 1, got %d", c.HistoryLimit)
	}
	if c.MaxBoost < 0 {
		return fmt.Errorf("max_boost must be non-negative, got %f", c.MaxBoost)
	}
	return nil
}

// SimilarityConfig controls user-user similarity search.
type SimilarityConfig struct {
	// ArtistWeight, GenreWeight and TrackWeight blend the per-dimension
	// Jaccard overlaps into a single similarity score.
	ArtistWeight float64 `json:"artist_weight" koanf:"artist_weight"`
	GenreWeight  float64 `json:"genre_weight" koanf:"genre_weight"`
	TrackWeight  float64 `json:"track_weight" koanf:"track_weight"`

	// MinSimilarity is the inclusion threshold for neighbor search.
	MinSimilarity float64 `json:"min_similarity" koanf:"min_similarity"`

	// MaxNeighbors caps the neighbor list length.
	MaxNeighbors int `json:"max_neighbors" koanf:"max_neighbors"`
}

// DefaultSimilarityConfig returns the standard similarity tuning.
func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		ArtistWeight:  0.5,
		GenreWeight:   0.3,
		TrackWeight:   0.2,
		MinSimilarity: 0.3,
		MaxNeighbors:  10,
	}
}

// Validate checks similarity tuning bounds.
func (c SimilarityConfig) Validate() error {
	if c.ArtistWeight < 0 || c.GenreWeight < 0 || c.TrackWeight < 0 {
		return fmt.Errorf("similarity dimension weights must be non-negative")
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("min_similarity must be in [0,1], got %f", c.MinSimilarity)
	}
	if c.MaxNeighbors < 1 {
		return fmt.Errorf("max_neighbors must be at least 1, got %d", c.MaxNeighbors)
	}
	return nil
}

// LimitsConfig bounds request shape and per-source execution.
type LimitsConfig struct {
	// DefaultK is the result count when the request leaves K zero.
	DefaultK int `json:"default_k" koanf:"default_k"`

	// MaxK caps the requested result count.
	MaxK int `json:"max_k" koanf:"max_k"`

	// CandidatesPerSource is how many candidates each source may return.
	CandidatesPerSource int `json:"candidates_per_source" koanf:"candidates_per_source"`

	// SourceTimeout bounds each source's execution.
	SourceTimeout time.Duration `json:"source_timeout" koanf:"source_timeout"`
}

// DefaultLimitsConfig returns the standard request limits.
func DefaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		DefaultK:            20,
		MaxK:                100,
		CandidatesPerSource: 50,
		SourceTimeout:       2 * time.Second,
	}
}

// Validate checks request limit bounds.
func (c LimitsConfig) Validate() error {
	if c.DefaultK < 1 {
		return fmt.Errorf("default_k must be at least 1, got %d", c.DefaultK)
	}
	if c.MaxK < c.DefaultK {
		return fmt.Errorf("max_k must be >= default_k, got %d < %d", c.MaxK, c.DefaultK)
	}
	if c.CandidatesPerSource < 1 {
		return fmt.Errorf("candidates_per_source must be at least 1, got %d", c.CandidatesPerSource)
	}
	if c.SourceTimeout <= 0 {
		return fmt.Errorf("source_timeout must be positive, got %s", c.SourceTimeout)
	}
	return nil
}

// FallbackConfig controls the degraded path used when all strategies
// produce nothing.
type FallbackConfig struct {
	// Enabled toggles the fallback path.
	Enabled bool `json:"enabled" koanf:"enabled"`

	// ConfidenceScale reduces fallback candidate confidence.
	ConfidenceScale float64 `json:"confidence_scale" koanf:"confidence_scale"`
}

// DefaultFallbackConfig returns the standard fallback tuning.
func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		Enabled:         true,
		ConfidenceScale: 0.8,
	}
}

// Validate checks fallback tuning bounds.
func (c FallbackConfig) Validate() error {
	if c.ConfidenceScale < 0 || c.ConfidenceScale > 1 {
		return fmt.Errorf("confidence_scale must be in [0,1], got %f", c.ConfidenceScale)
	}
	return nil
}

// BreakerConfig tunes the per-source circuit breakers.
type BreakerConfig struct {
	// MaxFailures opens the breaker after this many consecutive failures.
	MaxFailures uint32 `json:"max_failures" koanf:"max_failures"`

	// OpenTimeout is how long an open breaker rejects calls before
	// transitioning to half-open.
	OpenTimeout time.Duration `json:"open_timeout" koanf:"open_timeout"`
}

// DefaultBreakerConfig returns the standard breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}
}

// Validate checks breaker tuning bounds.
func (c BreakerConfig) Validate() error {
	if c.MaxFailures < 1 {
		return fmt.Errorf("max_failures must be at least 1, got %d", c.MaxFailures)
	}
	if c.OpenTimeout <= 0 {
		return fmt.Errorf("open_timeout must be positive, got %s", c.OpenTimeout)
	}
	return nil
}

// Config is the full engine configuration.
type Config struct {
	Weights    StrategyWeights  `json:"weights" koanf:"weights"`
	Diversity  DiversityWeights `json:"diversity" koanf:"diversity"`
	Learning   LearningConfig   `json:"learning" koanf:"learning"`
	Similarity SimilarityConfig `json:"similarity" koanf:"similarity"`
	Limits     LimitsConfig     `json:"limits" koanf:"limits"`
	Fallback   FallbackConfig   `json:"fallback" koanf:"fallback"`
	Breaker    BreakerConfig    `json:"breaker" koanf:"breaker"`
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		Weights:    DefaultStrategyWeights(),
		Diversity:  DefaultDiversityWeights(),
		Learning:   DefaultLearningConfig(),
		Similarity: DefaultSimilarityConfig(),
		Limits:     DefaultLimitsConfig(),
		Fallback:   DefaultFallbackConfig(),
		Breaker:    DefaultBreakerConfig(),
	}
}

// Validate checks the full configuration.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("weights: %w", err)
	}
	if err := c.Diversity.Validate(); err != nil {
		return fmt.Errorf("diversity: %w", err)
	}
	if err := c.Learning.Validate(); err != nil {
		return fmt.Errorf("learning: %w", err)
	}
	if err := c.Similarity.Validate(); err != nil {
		return fmt.Errorf("similarity: %w", err)
	}
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	if err := c.Fallback.Validate(); err != nil {
		return fmt.Errorf("fallback: %w", err)
	}
	if err := c.Breaker.Validate(); err != nil {
		return fmt.Errorf("breaker: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c Config) Clone() Config {
	// All fields are value types; a shallow copy is a deep copy.
	return c
}
