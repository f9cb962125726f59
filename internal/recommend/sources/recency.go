// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/resona-fm/resona/internal/recommend"
)

const (
	recencyBaseScore  = 0.8
	recencyConfidence = 0.7

	// freshnessWindow is how long a release counts as fresh. Older
	// releases decay linearly to zero at the window edge.
	freshnessWindow = 90 * 24 * time.Hour
)

// Recency recommends fresh releases, newer scoring higher.
type Recency struct {
	feed ReleaseFeed
	now  func() time.Time
}

// NewRecency creates the recency source.
func NewRecency(feed ReleaseFeed) *Recency {
	return &Recency{feed: feed, now: time.Now}
}

// SetNow overrides the clock. Intended for tests.
func (r *Recency) SetNow(now func() time.Time) {
	r.now = now
}

// Strategy implements recommend.Source.
func (r *Recency) Strategy() recommend.Strategy {
	return recommend.StrategyRecency
}

// Generate implements recommend.Source.
func (r *Recency) Generate(ctx context.Context, userID int64, profile recommend.UserProfile, limit int) ([]recommend.ScoredCandidate, error) {
	releases, err := r.feed.RecentReleases(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching recent releases: %w", err)
	}

	now := r.now()
	exclude := recentTrackIDs(profile)
	candidates := make([]recommend.ScoredCandidate, 0, len(releases))
	for _, rel := range releases {
		if _, skip := exclude[rel.Track.ID]; skip {
			continue
		}
		age := now.Sub(rel.ReleasedAt)
		if age < 0 {
			age = 0
		}
		freshness := 1 - float64(age)/float64(freshnessWindow)
		if freshness <= 0 {
			continue
		}
		candidates = append(candidates, recommend.ScoredCandidate{
			Track:      rel.Track,
			Score:      recencyBaseScore * freshness,
			Strategy:   recommend.StrategyRecency,
			Confidence: recencyConfidence,
			Reason:     "Recent release",
			Metadata:   map[string]float64{"age_days": age.Hours() / 24},
		})
	}
	return candidates, nil
}
