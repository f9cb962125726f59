// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

// Package content scores track-to-track similarity from metadata. The
// score is an additive blend over artist, genre, release year and
// duration, capped at 1.
package content

import (
	"sort"
	"strings"

	"github.com/resona-fm/resona/internal/recommend"
)

const (
	artistExactScore    = 0.4
	artistPartialScore  = 0.2
	genreExactScore     = 0.3
	genrePartialScore   = 0.15
	yearCloseScore      = 0.2
	yearNearScore       = 0.1
	durationScoreWeight = 0.1

	// minSimilarity filters out near-unrelated candidates.
	minSimilarity = 0.1
)

// SimilarTrack is a candidate with its similarity to a reference track.
type SimilarTrack struct {
	Track      recommend.Track `json:"track"`
	Similarity float64         `json:"similarity"`
}

// Scorer computes metadata similarity between tracks. Stateless and safe
// for concurrent use.
type Scorer struct{}

// NewScorer creates a content scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Similarity returns the metadata similarity of two tracks in [0,1].
// Dimensions with missing data on either side contribute nothing.
func (s *Scorer) Similarity(a, b recommend.Track) float64 {
	score := 0.0

	artistA, artistB := normalize(a.Artist), normalize(b.Artist)
	if artistA != "" && artistB != "" {
		switch {
		case artistA == artistB:
			score += artistExactScore
		case strings.Contains(artistA, artistB) || strings.Contains(artistB, artistA):
			score += artistPartialScore
		}
	}

	genreA, genreB := normalize(a.Genre), normalize(b.Genre)
	if genreA != "" && genreB != "" {
		switch {
		case genreA == genreB:
			score += genreExactScore
		case strings.Contains(genreA, genreB) || strings.Contains(genreB, genreA):
			score += genrePartialScore
		}
	}

	if a.Year != 0 && b.Year != 0 {
		diff := a.Year - b.Year
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff <= 2:
			score += yearCloseScore
		case diff <= 5:
			score += yearNearScore
		}
	}

	if a.DurationSeconds > 0 && b.DurationSeconds > 0 {
		diff := a.DurationSeconds - b.DurationSeconds
		if diff < 0 {
			diff = -diff
		}
		longer := a.DurationSeconds
		if b.DurationSeconds > longer {
			longer = b.DurationSeconds
		}
		score += (1 - float64(diff)/float64(longer)) * durationScoreWeight
	}

	if score > 1 {
		score = 1
	}
	return score
}

// FindSimilar returns up to topK candidates similar to the reference
// track, best first. Candidates at or below the minimum similarity are
// dropped.
func (s *Scorer) FindSimilar(reference recommend.Track, candidates []recommend.Track, topK int) []SimilarTrack {
	var similar []SimilarTrack
	for _, cand := range candidates {
		sim := s.Similarity(reference, cand)
		if sim > minSimilarity {
			similar = append(similar, SimilarTrack{Track: cand, Similarity: sim})
		}
	}
	sort.Slice(similar, func(i, j int) bool {
		if similar[i].Similarity != similar[j].Similarity {
			return similar[i].Similarity > similar[j].Similarity
		}
		return similar[i].Track.ID < similar[j].Track.ID
	})
	if topK > 0 && len(similar) > topK {
		similar = similar[:topK]
	}
	return similar
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
