// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Strategy identifies one independent candidate-scoring method.
type Strategy int

const (
	// StrategyCollaborative scores candidates via similar listeners.
	StrategyCollaborative Strategy = iota
	// StrategyContentBased scores candidates via track metadata similarity.
	StrategyContentBased
	// StrategyPopularity scores candidates via global play statistics.
	StrategyPopularity
	// StrategyRecency scores candidates via release freshness.
	StrategyRecency
	// StrategyDiversity is the weight reserve consumed by the diversity
	// selector; no source generates candidates under this tag.
	StrategyDiversity
	// StrategyFallback tags candidates produced by the fallback generator.
	StrategyFallback
)

// String returns the wire name for the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyCollaborative:
		return "collaborative"
	case StrategyContentBased:
		return "content_based"
	case StrategyPopularity:
		return "popularity"
	case StrategyRecency:
		return "recency"
	case StrategyDiversity:
		return "diversity"
	case StrategyFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a wire name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "collaborative":
		return StrategyCollaborative, nil
	case "content_based", "content":
		return StrategyContentBased, nil
	case "popularity":
		return StrategyPopularity, nil
	case "recency":
		return StrategyRecency, nil
	case "diversity":
		return StrategyDiversity, nil
	case "fallback":
		return StrategyFallback, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(data []byte) error {
	parsed, err := ParseStrategy(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// FeedbackType classifies user feedback on a recommended track.
type FeedbackType int

const (
	// FeedbackNeutral carries no preference signal.
	FeedbackNeutral FeedbackType = iota
	// FeedbackLike is a positive signal.
	FeedbackLike
	// FeedbackDislike is a negative signal.
	FeedbackDislike
	// FeedbackSkip is a weak negative signal.
	FeedbackSkip
)

// String returns the wire name for the feedback type.
func (t FeedbackType) String() string {
	switch t {
	case FeedbackLike:
		return "like"
	case FeedbackDislike:
		return "dislike"
	case FeedbackSkip:
		return "skip"
	case FeedbackNeutral:
		return "neutral"
	default:
		return "unknown"
	}
}

// ParseFeedbackType converts a wire name to a FeedbackType.
func ParseFeedbackType(name string) (FeedbackType, error) {
	switch strings.ToLower(name) {
	case "like":
		return FeedbackLike, nil
	case "dislike":
		return FeedbackDislike, nil
	case "skip":
		return FeedbackSkip, nil
	case "neutral":
		return FeedbackNeutral, nil
	default:
		return 0, fmt.Errorf("unknown feedback type %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t FeedbackType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FeedbackType) UnmarshalText(data []byte) error {
	parsed, err := ParseFeedbackType(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Track is an immutable candidate identity. Tracks are created by upstream
// library and feed collaborators and are read-only within the engine.
type Track struct {
	// ID is the unique track identifier in the music library.
	ID string `json:"id"`

	// Artist is the performing artist name.
	Artist string `json:"artist"`

	// Title is the track title.
	Title string `json:"title"`

	// Album is the album name, if known.
	Album string `json:"album,omitempty"`

	// Genre is the primary genre, if known.
	Genre string `json:"genre,omitempty"`

	// Year is the release year (0 if unknown).
	Year int `json:"year,omitempty"`

	// DurationSeconds is the track length in seconds (0 if unknown).
	DurationSeconds int `json:"duration_seconds,omitempty"`
}

// ScoredCandidate is a per-request scored recommendation. It is ephemeral
// and never persisted.
type ScoredCandidate struct {
	// Track is the candidate identity.
	Track Track `json:"track"`

	// Score is the current score. It starts as the raw strategy score and
	// is updated in place by blending and adaptive boosting.
	Score float64 `json:"score"`

	// Strategy tags the source that produced the candidate.
	Strategy Strategy `json:"strategy"`

	// Confidence is the source's confidence in the score (0-1).
	Confidence float64 `json:"confidence"`

	// Reason is an interpretable explanation for the recommendation.
	Reason string `json:"reason,omitempty"`

	// Metadata carries numeric diagnostics (strategy weight, adaptive
	// boost, reference similarity, ...).
	Metadata map[string]float64 `json:"metadata,omitempty"`
}

// UserProfile describes the listening context a recommendation request
// carries. It is read-only within the engine.
type UserProfile struct {
	// RecentTracks are the user's most recently played tracks.
	RecentTracks []Track `json:"recent_tracks"`

	// TopArtists are the user's most played artist names.
	TopArtists []string `json:"top_artists"`

	// Genres are the user's preferred genres.
	Genres []string `json:"genres"`

	// Mood is the current mood context, if any.
	Mood string `json:"mood,omitempty"`

	// Activity is the current activity context, if any.
	Activity string `json:"activity,omitempty"`
}

// ErrInvalidProfile indicates a malformed or empty user profile. The engine
// fails fast with this error before invoking any strategy.
var ErrInvalidProfile = errors.New("invalid user profile")

// Validate checks that the profile carries enough signal to recommend from.
func (p *UserProfile) Validate() error {
	if len(p.RecentTracks) == 0 && len(p.TopArtists) == 0 && len(p.Genres) == 0 {
		return fmt.Errorf("%w: profile has no recent tracks, artists, or genres", ErrInvalidProfile)
	}
	for i := range p.RecentTracks {
		if p.RecentTracks[i].ID == "" {
			return fmt.Errorf("%w: recent track %d has no id", ErrInvalidProfile, i)
		}
	}
	return nil
}

// Request is a recommendation request.
type Request struct {
	// UserID is the user to generate recommendations for.
	UserID int64 `json:"user_id"`

	// Profile is the user's listening context.
	Profile UserProfile `json:"profile"`

	// K is the number of recommendations to return.
	// Defaults to Config.Limits.DefaultK if zero.
	K int `json:"k,omitempty"`

	// WeightOverrides replaces individual strategy weights for this call.
	WeightOverrides map[Strategy]float64 `json:"weight_overrides,omitempty"`

	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// Response is a recommendation response.
type Response struct {
	// Items is the final score-ordered candidate list.
	Items []ScoredCandidate `json:"items"`

	// TotalCandidates is the number of distinct candidates considered.
	TotalCandidates int `json:"total_candidates"`

	// Metadata contains timing and diagnostic information.
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata contains timing and diagnostic information.
type ResponseMetadata struct {
	RequestID      string    `json:"request_id"`
	UserID         int64     `json:"user_id"`
	StrategiesUsed []string  `json:"strategies_used"`
	FallbackUsed   bool      `json:"fallback_used"`
	LatencyMS      int64     `json:"latency_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// Feedback is a user reaction to a recommendation, with the track context
// the adaptive learner extracts preference signals from.
type Feedback struct {
	// UserID is the user giving feedback.
	UserID int64 `json:"user_id"`

	// RecommendationID identifies the recommendation being rated.
	RecommendationID string `json:"recommendation_id"`

	// Type is the feedback signal.
	Type FeedbackType `json:"type"`

	// Context carries the track features the feedback applies to.
	Context FeedbackContext `json:"context"`

	// Timestamp is when the feedback occurred.
	Timestamp time.Time `json:"timestamp"`
}

// FeedbackContext carries the feature dimensions of the rated track.
type FeedbackContext struct {
	Artist   string   `json:"artist,omitempty"`
	Genres   []string `json:"genres,omitempty"`
	Mood     string   `json:"mood,omitempty"`
	Activity string   `json:"activity,omitempty"`
}

// Source is one independent candidate generator. Implementations may call
// external collaborators and must honor the context deadline.
type Source interface {
	// Strategy returns the tag the source's candidates carry.
	Strategy() Strategy

	// Generate returns up to limit scored candidates for the user.
	Generate(ctx context.Context, userID int64, profile UserProfile, limit int) ([]ScoredCandidate, error)
}

// FallbackGenerator produces candidates when every strategy yields none.
type FallbackGenerator interface {
	Generate(ctx context.Context, profile UserProfile) ([]ScoredCandidate, error)
}

// Selector picks a bounded, diverse subset of blended candidates.
// Diversity determines membership, not final rank order.
type Selector interface {
	// Name returns the selector identifier.
	Name() string

	// Select returns up to k candidates chosen for diversity.
	Select(ctx context.Context, items []ScoredCandidate, k int) []ScoredCandidate
}

// Preferences is the per-user adaptive learning model consumed by the
// engine. Implementations must be safe for concurrent use.
type Preferences interface {
	// ApplyFeedback routes a feedback event into preference updates.
	ApplyFeedback(ctx context.Context, fb Feedback)

	// Boost returns the summed preference score for a track across the
	// artist/genre/mood/activity dimensions, each contributing at most once.
	Boost(userID int64, track Track, mood, activity string) float64

	// Insights returns the learned view of a user.
	Insights(userID int64) UserInsights
}

// Cache memoizes expensive computations behind a key. Hits and misses are
// identical in terms of correctness.
type Cache interface {
	GetOrCompute(key string, ttl time.Duration, compute func() (any, error)) (any, error)
}

// PreferenceValue is one learned (value, weight) pair within a feature.
type PreferenceValue struct {
	Value  string  `json:"value"`
	Weight float64 `json:"weight"`
}

// PatternInsight is a detected listening pattern.
type PatternInsight struct {
	Type       string             `json:"type"`
	Data       map[string]float64 `json:"data"`
	Confidence float64            `json:"confidence"`
	Frequency  int                `json:"frequency"`
}

// UserInsights is the read-only introspection view of a user's learned model.
type UserInsights struct {
	UserID               int64                        `json:"user_id"`
	Preferences          map[string][]PreferenceValue `json:"preferences"`
	Patterns             []PatternInsight             `json:"patterns"`
	PersonalizationScore float64                      `json:"personalization_score"`
	Suggestions          []string                     `json:"suggestions"`
	TotalFeedback        int                          `json:"total_feedback"`
	LastUpdated          time.Time                    `json:"last_updated"`
}

// EngineStats is the read-only introspection view of the engine.
type EngineStats struct {
	CollaborativeUsers int                `json:"collaborative_users"`
	StrategyWeights    map[string]float64 `json:"strategy_weights"`
	DiversityWeights   map[string]float64 `json:"diversity_weights"`
	RequestCount       int64              `json:"request_count"`
	FallbackCount      int64              `json:"fallback_count"`
	FeedbackCount      int64              `json:"feedback_count"`
	StrategyFailures   map[string]int64   `json:"strategy_failures"`
}

// UserCounter is optionally implemented by sources that track known user
// profiles (the collaborative source). Used for engine stats.
type UserCounter interface {
	KnownUsers() int
}
