// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package sources

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/resona-fm/resona/internal/recommend"
)

// MemoryCatalog is an in-memory track catalog implementing the provider
// and feed contracts. It backs single-node deployments and tests; larger
// installations swap in media-server backed implementations.
type MemoryCatalog struct {
	mu       sync.RWMutex
	tracks   map[string]recommend.Track
	order    []string
	plays    map[string]int64
	released map[string]time.Time
	listens  map[int64][]string
}

// NewMemoryCatalog creates an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		tracks:   make(map[string]recommend.Track),
		plays:    make(map[string]int64),
		released: make(map[string]time.Time),
		listens:  make(map[int64][]string),
	}
}

// AddTrack registers a track with its release date.
func (m *MemoryCatalog) AddTrack(track recommend.Track, releasedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tracks[track.ID]; !exists {
		m.order = append(m.order, track.ID)
	}
	m.tracks[track.ID] = track
	if !releasedAt.IsZero() {
		m.released[track.ID] = releasedAt
	}
}

// RecordPlay attributes a play of a track to a user and bumps the
// track's global play count.
func (m *MemoryCatalog) RecordPlay(userID int64, trackID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, known := m.tracks[trackID]; !known {
		return
	}
	m.plays[trackID]++
	m.listens[userID] = append(m.listens[userID], trackID)
}

// Candidates implements Library.
func (m *MemoryCatalog) Candidates(ctx context.Context, limit int) ([]recommend.Track, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]recommend.Track, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tracks[id])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// TracksForUsers implements TrackProvider.
func (m *MemoryCatalog) TracksForUsers(ctx context.Context, userIDs []int64) (map[int64][]recommend.Track, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64][]recommend.Track, len(userIDs))
	for _, userID := range userIDs {
		seen := make(map[string]struct{})
		for _, trackID := range m.listens[userID] {
			if _, dup := seen[trackID]; dup {
				continue
			}
			seen[trackID] = struct{}{}
			out[userID] = append(out[userID], m.tracks[trackID])
		}
	}
	return out, nil
}

// TopTracks implements PopularityFeed.
func (m *MemoryCatalog) TopTracks(ctx context.Context, limit int) ([]RankedTrack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ranked := make([]RankedTrack, 0, len(m.plays))
	for trackID, count := range m.plays {
		ranked = append(ranked, RankedTrack{Track: m.tracks[trackID], PlayCount: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].PlayCount != ranked[j].PlayCount {
			return ranked[i].PlayCount > ranked[j].PlayCount
		}
		return ranked[i].Track.ID < ranked[j].Track.ID
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}

// RecentReleases implements ReleaseFeed.
func (m *MemoryCatalog) RecentReleases(ctx context.Context, limit int) ([]Release, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	releases := make([]Release, 0, len(m.released))
	for trackID, releasedAt := range m.released {
		releases = append(releases, Release{Track: m.tracks[trackID], ReleasedAt: releasedAt})
	}
	sort.Slice(releases, func(i, j int) bool {
		if !releases[i].ReleasedAt.Equal(releases[j].ReleasedAt) {
			return releases[i].ReleasedAt.After(releases[j].ReleasedAt)
		}
		return releases[i].Track.ID < releases[j].Track.ID
	})
	if limit > 0 && len(releases) > limit {
		releases = releases[:limit]
	}
	return releases, nil
}
