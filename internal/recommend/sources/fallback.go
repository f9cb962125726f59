// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package sources

import (
	"context"
	"fmt"

	"github.com/resona-fm/resona/internal/recommend"
)

const (
	fallbackLimit      = 20
	fallbackScore      = 0.5
	fallbackConfidence = 0.5
)

// PopularityFallback serves globally popular tracks when every strategy
// produced nothing. Flat scoring: once everything else has failed there
// is no signal left to rank on.
type PopularityFallback struct {
	feed PopularityFeed
}

// NewPopularityFallback creates the fallback generator.
func NewPopularityFallback(feed PopularityFeed) *PopularityFallback {
	return &PopularityFallback{feed: feed}
}

// Generate implements recommend.FallbackGenerator.
func (f *PopularityFallback) Generate(ctx context.Context, profile recommend.UserProfile) ([]recommend.ScoredCandidate, error) {
	ranked, err := f.feed.TopTracks(ctx, fallbackLimit)
	if err != nil {
		return nil, fmt.Errorf("fallback feed: %w", err)
	}
	candidates := make([]recommend.ScoredCandidate, 0, len(ranked))
	for _, rt := range ranked {
		candidates = append(candidates, recommend.ScoredCandidate{
			Track:      rt.Track,
			Score:      fallbackScore,
			Strategy:   recommend.StrategyFallback,
			Confidence: fallbackConfidence,
			Reason:     "Fallback recommendation",
			Metadata:   map[string]float64{"fallback": 1},
		})
	}
	return candidates, nil
}
