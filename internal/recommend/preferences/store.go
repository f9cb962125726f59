// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

// Package preferences implements adaptive per-user preference learning.
// Feedback events adjust per-feature weights and confidences, idle
// preferences decay over time, and detected listening patterns feed the
// user insight view.
package preferences

import (
	"sort"
	"sync"
	"time"

	"github.com/resona-fm/resona/internal/recommend"
)

// Feature is a preference dimension.
type Feature string

const (
	FeatureGenre    Feature = "genre"
	FeatureArtist   Feature = "artist"
	FeatureMood     Feature = "mood"
	FeatureActivity Feature = "activity"
)

// Entry is one learned (feature, value) preference.
type Entry struct {
	Feature          Feature   `json:"feature"`
	Value            string    `json:"value"`
	Weight           float64   `json:"weight"`
	Confidence       float64   `json:"confidence"`
	LastUpdated      time.Time `json:"last_updated"`
	InteractionCount int       `json:"interaction_count"`
}

const (
	initialWeight     = 0.5
	initialConfidence = 0.3

	// significantWeight is the inclusion threshold for grouped views.
	significantWeight = 0.1
)

// Store holds per-user preference entries. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	users map[int64]*userEntries

	cfg recommend.LearningConfig
	now func() time.Time
}

type userEntries struct {
	mu      sync.Mutex
	entries map[entryKey]*Entry
}

type entryKey struct {
	feature Feature
	value   string
}

// NewStore creates an empty preference store.
func NewStore(cfg recommend.LearningConfig) *Store {
	return &Store{
		users: make(map[int64]*userEntries),
		cfg:   cfg,
		now:   time.Now,
	}
}

// SetNow overrides the clock. Intended for tests.
func (s *Store) SetNow(now func() time.Time) {
	s.now = now
}

func (s *Store) user(userID int64, create bool) *userEntries {
	s.mu.RLock()
	u := s.users[userID]
	s.mu.RUnlock()
	if u != nil || !create {
		return u
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u = s.users[userID]; u == nil {
		u = &userEntries{entries: make(map[entryKey]*Entry)}
		s.users[userID] = u
	}
	return u
}

// deltas returns the weight and confidence adjustment for a feedback type.
func (s *Store) deltas(t recommend.FeedbackType) (weight, confidence float64) {
	switch t {
	case recommend.FeedbackLike:
		return s.cfg.LikeWeightDelta, s.cfg.LikeConfidenceDelta
	case recommend.FeedbackDislike:
		return s.cfg.DislikeWeightDelta, s.cfg.LikeConfidenceDelta
	case recommend.FeedbackSkip:
		return s.cfg.SkipWeightDelta, s.cfg.SkipConfidenceDelta
	default:
		return 0, 0
	}
}

// Update adjusts the (feature, value) entry for the feedback type, then
// applies time decay across all of the user's idle entries. Unknown
// entries start from the neutral weight and low confidence.
func (s *Store) Update(userID int64, feature Feature, value string, t recommend.FeedbackType) {
	if value == "" {
		return
	}
	dw, dc := s.deltas(t)
	now := s.now()

	u := s.user(userID, true)
	u.mu.Lock()
	defer u.mu.Unlock()

	key := entryKey{feature: feature, value: value}
	e := u.entries[key]
	if e == nil {
		e = &Entry{
			Feature:    feature,
			Value:      value,
			Weight:     clamp01(initialWeight + dw),
			Confidence: clamp01(initialConfidence + dc),
		}
		u.entries[key] = e
	} else {
		e.Weight = clamp01(e.Weight + dw)
		e.Confidence = clamp01(e.Confidence + dc)
	}
	e.InteractionCount++
	e.LastUpdated = now

	s.decayLocked(u, now)
}

// decayLocked reduces weight and confidence of entries idle longer than
// the configured window. Decay only ever lowers values.
func (s *Store) decayLocked(u *userEntries, now time.Time) {
	for _, e := range u.entries {
		idle := now.Sub(e.LastUpdated)
		if idle <= s.cfg.DecayIdle {
			continue
		}
		idleDays := idle.Hours() / 24
		factor := 1 - s.cfg.DecayRate*idleDays/30
		if factor < 0 {
			factor = 0
		}
		e.Weight *= factor
		e.Confidence *= factor
	}
}

// Decay applies time decay to all of a user's entries. Used by the
// periodic maintenance sweep for users without recent feedback.
func (s *Store) Decay(userID int64) {
	u := s.user(userID, false)
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	s.decayLocked(u, s.now())
}

// Score returns weight x confidence for the (feature, value) pair, or 0
// when the user has no such preference.
func (s *Store) Score(userID int64, feature Feature, value string) float64 {
	u := s.user(userID, false)
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	e := u.entries[entryKey{feature: feature, value: value}]
	if e == nil {
		return 0
	}
	return e.Weight * e.Confidence
}

// MaxScore returns the highest score across the candidate values of a
// multi-valued feature.
func (s *Store) MaxScore(userID int64, feature Feature, values []string) float64 {
	best := 0.0
	for _, v := range values {
		if sc := s.Score(userID, feature, v); sc > best {
			best = sc
		}
	}
	return best
}

// Grouped returns the user's significant preferences grouped by feature,
// each group sorted by weight descending.
func (s *Store) Grouped(userID int64) map[string][]recommend.PreferenceValue {
	u := s.user(userID, false)
	if u == nil {
		return map[string][]recommend.PreferenceValue{}
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	grouped := make(map[string][]recommend.PreferenceValue)
	for _, e := range u.entries {
		if e.Weight <= significantWeight {
			continue
		}
		feature := string(e.Feature)
		grouped[feature] = append(grouped[feature], recommend.PreferenceValue{
			Value:  e.Value,
			Weight: e.Weight,
		})
	}
	for feature := range grouped {
		vals := grouped[feature]
		sort.Slice(vals, func(i, j int) bool {
			if vals[i].Weight != vals[j].Weight {
				return vals[i].Weight > vals[j].Weight
			}
			return vals[i].Value < vals[j].Value
		})
	}
	return grouped
}

// Snapshot returns a copy of a user's entries for persistence.
func (s *Store) Snapshot(userID int64) []Entry {
	u := s.user(userID, false)
	if u == nil {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]Entry, 0, len(u.entries))
	for _, e := range u.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Feature != out[j].Feature {
			return out[i].Feature < out[j].Feature
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Restore replaces a user's entries from persisted state.
func (s *Store) Restore(userID int64, entries []Entry) {
	u := s.user(userID, true)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.entries = make(map[entryKey]*Entry, len(entries))
	for i := range entries {
		e := entries[i]
		u.entries[entryKey{feature: e.Feature, value: e.Value}] = &e
	}
}

// UserIDs returns all users with stored preferences.
func (s *Store) UserIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
