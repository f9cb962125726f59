// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

// Package sources implements the candidate-generating strategies behind
// the hybrid engine: collaborative filtering over similar listeners,
// content-based metadata similarity, global popularity, fresh releases,
// and the popularity fallback used when everything else comes up empty.
package sources

import (
	"context"
	"sort"
	"time"

	"github.com/resona-fm/resona/internal/recommend"
)

// TrackProvider returns the listening history of users. The collaborative
// source uses it to fetch candidate tracks from similar listeners.
type TrackProvider interface {
	TracksForUsers(ctx context.Context, userIDs []int64) (map[int64][]recommend.Track, error)
}

// Library exposes the track catalog for content-based candidate search.
type Library interface {
	Candidates(ctx context.Context, limit int) ([]recommend.Track, error)
}

// RankedTrack is a track with its global popularity position.
type RankedTrack struct {
	Track     recommend.Track `json:"track"`
	PlayCount int64           `json:"play_count"`
	Rank      int             `json:"rank"`
}

// PopularityFeed returns globally popular tracks, best first.
type PopularityFeed interface {
	TopTracks(ctx context.Context, limit int) ([]RankedTrack, error)
}

// Release is a track with its release date.
type Release struct {
	Track      recommend.Track `json:"track"`
	ReleasedAt time.Time       `json:"released_at"`
}

// ReleaseFeed returns recently released tracks, newest first.
type ReleaseFeed interface {
	RecentReleases(ctx context.Context, limit int) ([]Release, error)
}

// recentTrackIDs builds the exclusion set of a user's recent plays.
// Tracks a user just heard are never recommended back.
func recentTrackIDs(profile recommend.UserProfile) map[string]struct{} {
	seen := make(map[string]struct{}, len(profile.RecentTracks))
	for _, track := range profile.RecentTracks {
		seen[track.ID] = struct{}{}
	}
	return seen
}

// rankCandidates flattens a deduplicated candidate map in score order,
// best first, then applies the per-source limit. Ordering before the cut
// keeps the strongest candidates; ties break on track ID so the result
// is deterministic.
func rankCandidates(best map[string]recommend.ScoredCandidate, limit int) []recommend.ScoredCandidate {
	candidates := make([]recommend.ScoredCandidate, 0, len(best))
	for _, cand := range best {
		candidates = append(candidates, cand)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Track.ID < candidates[j].Track.ID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
