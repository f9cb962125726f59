// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package preferences

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/resona-fm/resona/internal/recommend"
)

// Pattern is a detected listening behavior.
type Pattern struct {
	Type       string             `json:"type"`
	Data       map[string]float64 `json:"data"`
	Confidence float64            `json:"confidence"`
	Frequency  int                `json:"frequency"`
	LastSeen   time.Time          `json:"last_seen"`
}

const (
	PatternGenre = "genre_preference"
	PatternTime  = "time_preference"
	PatternMood  = "mood_preference"
)

// Detector finds genre, time-of-day and mood patterns in feedback history.
// Re-detecting a pattern type merges data and bumps its frequency.
type Detector struct {
	mu       sync.Mutex
	patterns map[int64][]*Pattern
	now      func() time.Time
}

// NewDetector creates an empty pattern detector.
func NewDetector() *Detector {
	return &Detector{
		patterns: make(map[int64][]*Pattern),
		now:      time.Now,
	}
}

// Detect scans the user's feedback history and records any detected
// patterns. Returns the patterns found in this pass.
func (d *Detector) Detect(userID int64, history []recommend.Feedback) []Pattern {
	var found []Pattern
	if p := detectGenrePattern(history); p != nil {
		found = append(found, *p)
	}
	if p := detectTimePattern(history); p != nil {
		found = append(found, *p)
	}
	if p := detectMoodPattern(history); p != nil {
		found = append(found, *p)
	}
	if len(found) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for i := range found {
		found[i].LastSeen = now
		d.mergeLocked(userID, found[i])
	}
	return found
}

// mergeLocked folds a newly detected pattern into the user's existing set.
// Data keys merge, confidence keeps the maximum, frequency increments.
func (d *Detector) mergeLocked(userID int64, p Pattern) {
	for _, existing := range d.patterns[userID] {
		if existing.Type != p.Type {
			continue
		}
		for k, v := range p.Data {
			existing.Data[k] = v
		}
		if p.Confidence > existing.Confidence {
			existing.Confidence = p.Confidence
		}
		existing.LastSeen = p.LastSeen
		existing.Frequency++
		return
	}
	p.Frequency = 1
	copied := p
	d.patterns[userID] = append(d.patterns[userID], &copied)
}

// Patterns returns a copy of the user's detected patterns.
func (d *Detector) Patterns(userID int64) []Pattern {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Pattern, 0, len(d.patterns[userID]))
	for _, p := range d.patterns[userID] {
		data := make(map[string]float64, len(p.Data))
		for k, v := range p.Data {
			data[k] = v
		}
		cp := *p
		cp.Data = data
		out = append(out, cp)
	}
	return out
}

// Restore replaces a user's patterns from persisted state.
func (d *Detector) Restore(userID int64, patterns []Pattern) {
	d.mu.Lock()
	defer d.mu.Unlock()
	restored := make([]*Pattern, 0, len(patterns))
	for i := range patterns {
		p := patterns[i]
		if p.Data == nil {
			p.Data = make(map[string]float64)
		}
		restored = append(restored, &p)
	}
	d.patterns[userID] = restored
}

type voteCount struct {
	likes int
	total int
}

// detectGenrePattern reports genres with at least 3 like/dislike votes and
// a strongly skewed positive ratio, in either direction.
func detectGenrePattern(history []recommend.Feedback) *Pattern {
	votes := make(map[string]*voteCount)
	for _, fb := range history {
		if fb.Type != recommend.FeedbackLike && fb.Type != recommend.FeedbackDislike {
			continue
		}
		for _, genre := range fb.Context.Genres {
			v := votes[genre]
			if v == nil {
				v = &voteCount{}
				votes[genre] = v
			}
			v.total++
			if fb.Type == recommend.FeedbackLike {
				v.likes++
			}
		}
	}

	data := make(map[string]float64)
	for genre, v := range votes {
		if v.total < 3 {
			continue
		}
		ratio := float64(v.likes) / float64(v.total)
		if ratio > 0.7 || ratio < 0.3 {
			data[genre] = ratio
		}
	}
	if len(data) == 0 {
		return nil
	}
	return &Pattern{
		Type:       PatternGenre,
		Data:       data,
		Confidence: capRatio(len(data), 5),
	}
}

// detectTimePattern reports hours of day with at least 2 votes and a
// mostly positive ratio. Requires at least 2 such hours.
func detectTimePattern(history []recommend.Feedback) *Pattern {
	votes := make(map[int]*voteCount)
	for _, fb := range history {
		if fb.Type != recommend.FeedbackLike && fb.Type != recommend.FeedbackDislike {
			continue
		}
		hour := fb.Timestamp.Hour()
		v := votes[hour]
		if v == nil {
			v = &voteCount{}
			votes[hour] = v
		}
		v.total++
		if fb.Type == recommend.FeedbackLike {
			v.likes++
		}
	}

	var activeHours []int
	for hour, v := range votes {
		if v.total < 2 {
			continue
		}
		if float64(v.likes)/float64(v.total) > 0.6 {
			activeHours = append(activeHours, hour)
		}
	}
	if len(activeHours) < 2 {
		return nil
	}
	sort.Ints(activeHours)
	data := make(map[string]float64, len(activeHours))
	for _, hour := range activeHours {
		data["hour_"+strconv.Itoa(hour)] = 1
	}
	return &Pattern{
		Type:       PatternTime,
		Data:       data,
		Confidence: capRatio(len(activeHours), 8),
	}
}

// detectMoodPattern reports moods with at least 2 votes and a strongly
// skewed positive ratio.
func detectMoodPattern(history []recommend.Feedback) *Pattern {
	votes := make(map[string]*voteCount)
	for _, fb := range history {
		if fb.Context.Mood == "" {
			continue
		}
		if fb.Type != recommend.FeedbackLike && fb.Type != recommend.FeedbackDislike {
			continue
		}
		v := votes[fb.Context.Mood]
		if v == nil {
			v = &voteCount{}
			votes[fb.Context.Mood] = v
		}
		v.total++
		if fb.Type == recommend.FeedbackLike {
			v.likes++
		}
	}

	data := make(map[string]float64)
	for mood, v := range votes {
		if v.total < 2 {
			continue
		}
		ratio := float64(v.likes) / float64(v.total)
		if ratio > 0.7 || ratio < 0.3 {
			data[mood] = ratio
		}
	}
	if len(data) == 0 {
		return nil
	}
	return &Pattern{
		Type:       PatternMood,
		Data:       data,
		Confidence: capRatio(len(data), 3),
	}
}

func capRatio(n, denom int) float64 {
	r := float64(n) / float64(denom)
	if r > 1 {
		return 1
	}
	return r
}
