// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

// Package diversity selects a bounded recommendation subset that
// maximizes set-level variety across artists, genres, release years and
// albums. Selection decides membership only; callers re-sort by score.
package diversity

import (
	"context"
	"sort"
	"strings"

	"github.com/resona-fm/resona/internal/recommend"
)

// yearSpreadNorm normalizes the year range; a 50-year spread counts as
// fully diverse.
const yearSpreadNorm = 50

// Selector implements greedy set-diversity maximization. The
// highest-scored candidate seeds the set; each following pick is the
// remaining candidate whose addition yields the most diverse set.
type Selector struct {
	weights recommend.DiversityWeights
}

// NewSelector creates a selector with the given feature weights.
func NewSelector(weights recommend.DiversityWeights) *Selector {
	return &Selector{weights: weights}
}

// Name implements recommend.Selector.
func (s *Selector) Name() string {
	return "greedy-diversity"
}

// Select implements recommend.Selector. When k or fewer candidates exist
// they are all returned; diversity never shrinks an already small set.
func (s *Selector) Select(ctx context.Context, items []recommend.ScoredCandidate, k int) []recommend.ScoredCandidate {
	out := make([]recommend.ScoredCandidate, len(items))
	copy(out, items)
	if len(out) <= k {
		return out
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Track.ID < out[j].Track.ID
	})

	selected := out[:1:1]
	remaining := out[1:]

	for len(selected) < k && len(remaining) > 0 {
		if ctx.Err() != nil {
			break
		}
		bestIdx := -1
		bestDiversity := -1.0
		for i := range remaining {
			d := s.SetScore(append(selected[:len(selected):len(selected)], remaining[i]))
			if d > bestDiversity {
				bestDiversity = d
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// SetScore returns the diversity of a candidate set in [0,1]. Sets of one
// or zero items are trivially diverse.
func (s *Selector) SetScore(items []recommend.ScoredCandidate) float64 {
	if len(items) <= 1 {
		return 1.0
	}

	var artists, genres, albums []string
	var years []int
	for _, item := range items {
		if v := normalize(item.Track.Artist); v != "" {
			artists = append(artists, v)
		}
		if v := normalize(item.Track.Genre); v != "" {
			genres = append(genres, v)
		}
		if v := normalize(item.Track.Album); v != "" {
			albums = append(albums, v)
		}
		if item.Track.Year > 0 {
			years = append(years, item.Track.Year)
		}
	}

	return s.weights.Artist*uniqueRatio(artists) +
		s.weights.Genre*uniqueRatio(genres) +
		s.weights.Year*yearSpread(years) +
		s.weights.Album*uniqueRatio(albums)
}

// uniqueRatio is distinct values over total values, 0 when no values.
func uniqueRatio(values []string) float64 {
	if len(values) == 0 {
		return 0
	}
	distinct := make(map[string]struct{}, len(values))
	for _, v := range values {
		distinct[v] = struct{}{}
	}
	return float64(len(distinct)) / float64(len(values))
}

// yearSpread is the year range normalized to yearSpreadNorm, capped at 1.
func yearSpread(years []int) float64 {
	if len(years) == 0 {
		return 0
	}
	minYear, maxYear := years[0], years[0]
	for _, y := range years[1:] {
		if y < minYear {
			minYear = y
		}
		if y > maxYear {
			maxYear = y
		}
	}
	spread := float64(maxYear-minYear) / yearSpreadNorm
	if spread > 1 {
		return 1
	}
	return spread
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
