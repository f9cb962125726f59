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
	popularityBaseScore  = 0.7
	popularityConfidence = 0.6
)

// Popularity recommends globally popular tracks, with score decaying
// down the ranking so the chart leader beats the chart tail.
type Popularity struct {
	feed PopularityFeed
}

// NewPopularity creates the popularity source.
func NewPopularity(feed PopularityFeed) *Popularity {
	return &Popularity{feed: feed}
}

// Strategy implements recommend.Source.
func (p *Popularity) Strategy() recommend.Strategy {
	return recommend.StrategyPopularity
}

// Generate implements recommend.Source.
func (p *Popularity) Generate(ctx context.Context, userID int64, profile recommend.UserProfile, limit int) ([]recommend.ScoredCandidate, error) {
	ranked, err := p.feed.TopTracks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching top tracks: %w", err)
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	exclude := recentTrackIDs(profile)
	candidates := make([]recommend.ScoredCandidate, 0, len(ranked))
	for i, rt := range ranked {
		if _, skip := exclude[rt.Track.ID]; skip {
			continue
		}
		// Linear decay down the chart keeps relative order meaningful.
		score := popularityBaseScore * (1 - float64(i)/float64(len(ranked)))
		candidates = append(candidates, recommend.ScoredCandidate{
			Track:      rt.Track,
			Score:      score,
			Strategy:   recommend.StrategyPopularity,
			Confidence: popularityConfidence,
			Reason:     "Popular across the community",
			Metadata: map[string]float64{
				"popularity_rank": float64(rt.Rank),
				"play_count":      float64(rt.PlayCount),
			},
		})
	}
	return candidates, nil
}
