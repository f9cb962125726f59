// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package preferences

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/resona-fm/resona/internal/recommend"
)

// UserState is the durable form of one user's learned model.
type UserState struct {
	Entries  []Entry              `json:"entries"`
	Patterns []Pattern            `json:"patterns"`
	History  []recommend.Feedback `json:"history"`
}

// Persister stores learned user state durably. Implementations must be
// safe for concurrent use.
type Persister interface {
	SaveUser(ctx context.Context, userID int64, state UserState) error
	LoadUsers(ctx context.Context) (map[int64]UserState, error)
}

// Learner is the adaptive preference model. It routes feedback into
// weight updates and pattern detection, answers score boosts, and tracks
// which users need a durable flush.
//
// Persistence is best effort: an in-memory update always applies even
// when the flush fails, and failed users stay queued for retry.
type Learner struct {
	store    *Store
	detector *Detector
	cfg      recommend.LearningConfig
	logger   zerolog.Logger

	persister Persister

	histMu  sync.Mutex
	history map[int64][]recommend.Feedback

	dirtyMu sync.Mutex
	dirty   map[int64]struct{}
}

// NewLearner creates a learner. persister may be nil for ephemeral use.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewLearner(cfg recommend.LearningConfig, persister Persister, logger zerolog.Logger) *Learner {
	return &Learner{
		store:     NewStore(cfg),
		detector:  NewDetector(),
		cfg:       cfg,
		logger:    logger.With().Str("component", "preferences").Logger(),
		persister: persister,
		history:   make(map[int64][]recommend.Feedback),
		dirty:     make(map[int64]struct{}),
	}
}

// Store exposes the underlying preference store.
func (l *Learner) Store() *Store {
	return l.store
}

// Load restores all persisted user state. Call once at startup.
func (l *Learner) Load(ctx context.Context) error {
	if l.persister == nil {
		return nil
	}
	states, err := l.persister.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("loading preference state: %w", err)
	}
	l.histMu.Lock()
	defer l.histMu.Unlock()
	for userID, state := range states {
		l.store.Restore(userID, state.Entries)
		l.detector.Restore(userID, state.Patterns)
		l.history[userID] = state.History
	}
	l.logger.Info().Int("users", len(states)).Msg("preference state loaded")
	return nil
}

// ApplyFeedback implements recommend.Preferences. The feedback context is
// routed into per-dimension weight updates, the user's history is
// re-scanned for patterns, and the user is queued for a durable flush.
func (l *Learner) ApplyFeedback(ctx context.Context, fb recommend.Feedback) {
	history := l.appendHistory(fb)

	l.store.Update(fb.UserID, FeatureArtist, fb.Context.Artist, fb.Type)
	for _, genre := range fb.Context.Genres {
		l.store.Update(fb.UserID, FeatureGenre, genre, fb.Type)
	}
	l.store.Update(fb.UserID, FeatureMood, fb.Context.Mood, fb.Type)
	l.store.Update(fb.UserID, FeatureActivity, fb.Context.Activity, fb.Type)

	l.detector.Detect(fb.UserID, history)
	l.markDirty(fb.UserID)

	l.logger.Debug().
		Int64("user_id", fb.UserID).
		Str("type", fb.Type.String()).
		Int("history_len", len(history)).
		Msg("feedback applied")
}

func (l *Learner) appendHistory(fb recommend.Feedback) []recommend.Feedback {
	l.histMu.Lock()
	defer l.histMu.Unlock()
	h := append(l.history[fb.UserID], fb)
	if over := len(h) - l.cfg.HistoryLimit; over > 0 {
		h = h[over:]
	}
	l.history[fb.UserID] = h
	out := make([]recommend.Feedback, len(h))
	copy(out, h)
	return out
}

// Boost implements recommend.Preferences. Each feature dimension
// contributes at most once; a track genre scores via its single value.
func (l *Learner) Boost(userID int64, track recommend.Track, mood, activity string) float64 {
	boost := l.store.Score(userID, FeatureArtist, track.Artist)
	boost += l.store.Score(userID, FeatureGenre, track.Genre)
	boost += l.store.Score(userID, FeatureMood, mood)
	boost += l.store.Score(userID, FeatureActivity, activity)
	return boost
}

// Insights implements recommend.Preferences.
func (l *Learner) Insights(userID int64) recommend.UserInsights {
	grouped := l.store.Grouped(userID)
	patterns := l.detector.Patterns(userID)

	insightPatterns := make([]recommend.PatternInsight, 0, len(patterns))
	for _, p := range patterns {
		insightPatterns = append(insightPatterns, recommend.PatternInsight{
			Type:       p.Type,
			Data:       p.Data,
			Confidence: p.Confidence,
			Frequency:  p.Frequency,
		})
	}

	l.histMu.Lock()
	total := len(l.history[userID])
	var last time.Time
	if total > 0 {
		last = l.history[userID][total-1].Timestamp
	}
	l.histMu.Unlock()

	return recommend.UserInsights{
		UserID:               userID,
		Preferences:          grouped,
		Patterns:             insightPatterns,
		PersonalizationScore: personalizationScore(grouped, len(patterns)),
		Suggestions:          suggestions(grouped, len(patterns)),
		TotalFeedback:        total,
		LastUpdated:          last,
	}
}

// personalizationScore blends preference coverage, pattern coverage and
// average preference weight into a 0-1 score.
func personalizationScore(grouped map[string][]recommend.PreferenceValue, patternCount int) float64 {
	prefCount := 0
	weightSum := 0.0
	for _, vals := range grouped {
		for _, v := range vals {
			prefCount++
			weightSum += v.Weight
		}
	}
	prefScore := capRatio(prefCount, 10)
	patternScore := capRatio(patternCount, 5)
	avgWeight := 0.0
	if prefCount > 0 {
		avgWeight = weightSum / float64(prefCount)
	}
	return prefScore*0.4 + patternScore*0.3 + avgWeight*0.3
}

func suggestions(grouped map[string][]recommend.PreferenceValue, patternCount int) []string {
	var out []string
	switch {
	case len(grouped) == 0:
		out = append(out, "Interact with more recommendations to improve personalization")
	case len(grouped) < 3:
		out = append(out, "Explore different genres to diversify your preferences")
	}
	if patternCount == 0 {
		out = append(out, "Listen regularly so listening patterns can be detected")
	}
	if genres := grouped[string(FeatureGenre)]; len(genres) == 1 {
		out = append(out, "Consider exploring genres similar to "+genres[0].Value)
	}
	return out
}

// DecayAll applies time decay across every known user. Used by the
// periodic maintenance sweep so idle users' preferences fade even
// without new feedback.
func (l *Learner) DecayAll() {
	for _, userID := range l.store.UserIDs() {
		l.store.Decay(userID)
		l.markDirty(userID)
	}
}

func (l *Learner) markDirty(userID int64) {
	l.dirtyMu.Lock()
	l.dirty[userID] = struct{}{}
	l.dirtyMu.Unlock()
}

func (l *Learner) takeDirty() []int64 {
	l.dirtyMu.Lock()
	defer l.dirtyMu.Unlock()
	ids := make([]int64, 0, len(l.dirty))
	for id := range l.dirty {
		ids = append(ids, id)
	}
	l.dirty = make(map[int64]struct{})
	return ids
}

func (l *Learner) userState(userID int64) UserState {
	l.histMu.Lock()
	h := l.history[userID]
	history := make([]recommend.Feedback, len(h))
	copy(history, h)
	l.histMu.Unlock()
	return UserState{
		Entries:  l.store.Snapshot(userID),
		Patterns: l.detector.Patterns(userID),
		History:  history,
	}
}

// Flush persists every queued user. Users whose save fails are re-queued
// so the next flush retries them.
func (l *Learner) Flush(ctx context.Context) error {
	if l.persister == nil {
		return nil
	}
	var firstErr error
	for _, userID := range l.takeDirty() {
		if err := l.persister.SaveUser(ctx, userID, l.userState(userID)); err != nil {
			l.markDirty(userID)
			if firstErr == nil {
				firstErr = err
			}
			l.logger.Warn().
				Err(err).
				Int64("user_id", userID).
				Msg("preference flush failed, will retry")
		}
	}
	return firstErr
}
