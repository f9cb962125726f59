// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

// Package similarity maintains a user-user taste similarity index built
// from listening profiles. Similarity is a weighted blend of Jaccard
// overlaps over artists, genres and tracks.
package similarity

import (
	"sort"
	"strings"
	"sync"

	"github.com/resona-fm/resona/internal/recommend"
)

// Neighbor is a similar user with its similarity score.
type Neighbor struct {
	UserID     int64   `json:"user_id"`
	Similarity float64 `json:"similarity"`
}

// Index holds per-user taste sets. Safe for concurrent use.
type Index struct {
	mu    sync.RWMutex
	users map[int64]*taste
	cfg   recommend.SimilarityConfig
}

type taste struct {
	artists map[string]struct{}
	genres  map[string]struct{}
	tracks  map[string]struct{}
}

// NewIndex creates an empty similarity index.
func NewIndex(cfg recommend.SimilarityConfig) *Index {
	return &Index{
		users: make(map[int64]*taste),
		cfg:   cfg,
	}
}

// Upsert replaces a user's taste sets from their listening profile.
// Artist and genre names are matched case-insensitively.
func (idx *Index) Upsert(userID int64, profile recommend.UserProfile) {
	t := &taste{
		artists: make(map[string]struct{}),
		genres:  make(map[string]struct{}),
		tracks:  make(map[string]struct{}),
	}
	for _, artist := range profile.TopArtists {
		addNormalized(t.artists, artist)
	}
	for _, genre := range profile.Genres {
		addNormalized(t.genres, genre)
	}
	for _, track := range profile.RecentTracks {
		if track.ID != "" {
			t.tracks[track.ID] = struct{}{}
		}
		addNormalized(t.artists, track.Artist)
		addNormalized(t.genres, track.Genre)
	}

	idx.mu.Lock()
	idx.users[userID] = t
	idx.mu.Unlock()
}

// Remove drops a user from the index.
func (idx *Index) Remove(userID int64) {
	idx.mu.Lock()
	delete(idx.users, userID)
	idx.mu.Unlock()
}

// Len returns the number of indexed users.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.users)
}

// Similarity returns the taste similarity between two users in [0,1].
// Unknown users score 0.
func (idx *Index) Similarity(a, b int64) float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ta, tb := idx.users[a], idx.users[b]
	if ta == nil || tb == nil {
		return 0
	}
	return idx.similarity(ta, tb)
}

func (idx *Index) similarity(a, b *taste) float64 {
	return idx.cfg.ArtistWeight*jaccard(a.artists, b.artists) +
		idx.cfg.GenreWeight*jaccard(a.genres, b.genres) +
		idx.cfg.TrackWeight*jaccard(a.tracks, b.tracks)
}

// FindSimilar returns up to the configured number of neighbors above the
// minimum similarity, best first. The user itself is never included.
// The scan runs over a snapshot taken at start, so a long scan never
// blocks upserts; taste sets are replaced wholesale on Upsert, never
// mutated in place, so sharing the pointers is safe.
func (idx *Index) FindSimilar(userID int64) []Neighbor {
	idx.mu.RLock()
	self := idx.users[userID]
	snapshot := make(map[int64]*taste, len(idx.users))
	for id, t := range idx.users {
		snapshot[id] = t
	}
	idx.mu.RUnlock()

	if self == nil {
		return nil
	}
	var neighbors []Neighbor
	for otherID, other := range snapshot {
		if otherID == userID {
			continue
		}
		sim := idx.similarity(self, other)
		if sim >= idx.cfg.MinSimilarity {
			neighbors = append(neighbors, Neighbor{UserID: otherID, Similarity: sim})
		}
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		return neighbors[i].UserID < neighbors[j].UserID
	})
	if len(neighbors) > idx.cfg.MaxNeighbors {
		neighbors = neighbors[:idx.cfg.MaxNeighbors]
	}
	return neighbors
}

// jaccard computes |A∩B| / |A∪B|. Two empty sets have no overlap signal
// and score 0.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func addNormalized(set map[string]struct{}, v string) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v != "" {
		set[v] = struct{}{}
	}
}
