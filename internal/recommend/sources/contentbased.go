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
	"github.com/resona-fm/resona/internal/recommend/content"
)

const (
	// referenceTracks caps how many recent plays seed similarity search.
	referenceTracks = 5

	// similarPerReference caps matches kept per reference track.
	similarPerReference = 5

	// catalogSample bounds the candidate pool pulled from the library.
	catalogSample = 500
)

// ContentBased recommends tracks whose metadata resembles the user's
// recent plays.
type ContentBased struct {
	scorer   *content.Scorer
	library  Library
	cache    recommend.Cache
	cacheTTL time.Duration
}

// NewContentBased creates the content source. cache may be nil.
func NewContentBased(scorer *content.Scorer, library Library, cache recommend.Cache) *ContentBased {
	return &ContentBased{
		scorer:   scorer,
		library:  library,
		cache:    cache,
		cacheTTL: 5 * time.Minute,
	}
}

// Strategy implements recommend.Source.
func (c *ContentBased) Strategy() recommend.Strategy {
	return recommend.StrategyContentBased
}

// Generate implements recommend.Source.
func (c *ContentBased) Generate(ctx context.Context, userID int64, profile recommend.UserProfile, limit int) ([]recommend.ScoredCandidate, error) {
	references := profile.RecentTracks
	if len(references) > referenceTracks {
		references = references[:referenceTracks]
	}
	if len(references) == 0 {
		return nil, nil
	}

	catalog, err := c.loadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	exclude := recentTrackIDs(profile)
	best := make(map[string]recommend.ScoredCandidate)
	for _, ref := range references {
		for _, similar := range c.scorer.FindSimilar(ref, catalog, similarPerReference) {
			if _, skip := exclude[similar.Track.ID]; skip {
				continue
			}
			if prev, seen := best[similar.Track.ID]; seen && prev.Score >= similar.Similarity {
				continue
			}
			best[similar.Track.ID] = recommend.ScoredCandidate{
				Track:      similar.Track,
				Score:      similar.Similarity,
				Strategy:   recommend.StrategyContentBased,
				Confidence: similar.Similarity,
				Reason:     fmt.Sprintf("Similar to %q", ref.Title),
				Metadata:   map[string]float64{"reference_similarity": similar.Similarity},
			}
		}
	}

	return rankCandidates(best, limit), nil
}

func (c *ContentBased) loadCatalog(ctx context.Context) ([]recommend.Track, error) {
	if c.cache == nil {
		return c.library.Candidates(ctx, catalogSample)
	}
	v, err := c.cache.GetOrCompute("content:catalog", c.cacheTTL, func() (any, error) {
		return c.library.Candidates(ctx, catalogSample)
	})
	if err != nil {
		return nil, err
	}
	catalog, ok := v.([]recommend.Track)
	if !ok {
		return c.library.Candidates(ctx, catalogSample)
	}
	return catalog, nil
}
