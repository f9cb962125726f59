// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package sources

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/resona-fm/resona/internal/recommend"
	"github.com/resona-fm/resona/internal/recommend/similarity"
)

// neighborFanout caps how many similar listeners contribute candidates.
const neighborFanout = 3

// Collaborative recommends tracks played by similar listeners. Each
// request refreshes the caller's taste profile in the similarity index,
// so the index learns the user base as it serves it.
type Collaborative struct {
	index    *similarity.Index
	provider TrackProvider
	cache    recommend.Cache
	cacheTTL time.Duration
}

// NewCollaborative creates the collaborative source. cache may be nil.
func NewCollaborative(index *similarity.Index, provider TrackProvider, cache recommend.Cache) *Collaborative {
	return &Collaborative{
		index:    index,
		provider: provider,
		cache:    cache,
		cacheTTL: time.Minute,
	}
}

// Strategy implements recommend.Source.
func (c *Collaborative) Strategy() recommend.Strategy {
	return recommend.StrategyCollaborative
}

// KnownUsers reports the similarity index population.
func (c *Collaborative) KnownUsers() int {
	return c.index.Len()
}

// Generate implements recommend.Source.
func (c *Collaborative) Generate(ctx context.Context, userID int64, profile recommend.UserProfile, limit int) ([]recommend.ScoredCandidate, error) {
	c.index.Upsert(userID, profile)

	neighbors := c.index.FindSimilar(userID)
	if len(neighbors) == 0 {
		return nil, nil
	}
	if len(neighbors) > neighborFanout {
		neighbors = neighbors[:neighborFanout]
	}

	neighborIDs := make([]int64, len(neighbors))
	simByUser := make(map[int64]float64, len(neighbors))
	for i, n := range neighbors {
		neighborIDs[i] = n.UserID
		simByUser[n.UserID] = n.Similarity
	}

	tracksByUser, err := c.fetchTracks(ctx, userID, neighborIDs)
	if err != nil {
		return nil, fmt.Errorf("fetching neighbor tracks: %w", err)
	}

	exclude := recentTrackIDs(profile)
	best := make(map[string]recommend.ScoredCandidate)
	for _, neighborID := range neighborIDs {
		sim := simByUser[neighborID]
		for _, track := range tracksByUser[neighborID] {
			if _, skip := exclude[track.ID]; skip {
				continue
			}
			if prev, seen := best[track.ID]; seen && prev.Score >= sim {
				continue
			}
			best[track.ID] = recommend.ScoredCandidate{
				Track:      track,
				Score:      sim,
				Strategy:   recommend.StrategyCollaborative,
				Confidence: sim,
				Reason:     "Played by listeners with similar taste",
				Metadata:   map[string]float64{"neighbor_similarity": sim},
			}
		}
	}

	return rankCandidates(best, limit), nil
}

// fetchTracks loads neighbor listening histories, memoized briefly so
// bursts of requests from the same user do not refetch.
func (c *Collaborative) fetchTracks(ctx context.Context, userID int64, neighborIDs []int64) (map[int64][]recommend.Track, error) {
	if c.cache == nil {
		return c.provider.TracksForUsers(ctx, neighborIDs)
	}
	v, err := c.cache.GetOrCompute(neighborCacheKey(userID, neighborIDs), c.cacheTTL, func() (any, error) {
		return c.provider.TracksForUsers(ctx, neighborIDs)
	})
	if err != nil {
		return nil, err
	}
	tracks, ok := v.(map[int64][]recommend.Track)
	if !ok {
		return c.provider.TracksForUsers(ctx, neighborIDs)
	}
	return tracks, nil
}

// neighborCacheKey identifies a fetch by the exact neighbor set, so a
// changed neighborhood within the TTL never replays the old fetch.
func neighborCacheKey(userID int64, neighborIDs []int64) string {
	ids := make([]int64, len(neighborIDs))
	copy(ids, neighborIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var sb strings.Builder
	sb.WriteString("collab:neighbors:")
	sb.WriteString(strconv.FormatInt(userID, 10))
	for _, id := range ids {
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatInt(id, 10))
	}
	return sb.String()
}
