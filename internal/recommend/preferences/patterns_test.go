// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package preferences

import (
	"math"
	"testing"
	"time"

	"github.com/resona-fm/resona/internal/recommend"
)

func fb(t recommend.FeedbackType, ctx recommend.FeedbackContext, ts time.Time) recommend.Feedback {
	return recommend.Feedback{UserID: 1, Type: t, Context: ctx, Timestamp: ts}
}

func genreFeedback(t recommend.FeedbackType, genre string) recommend.Feedback {
	return fb(t, recommend.FeedbackContext{Genres: []string{genre}}, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
}

func TestDetectGenrePattern(t *testing.T) {
	tests := []struct {
		name      string
		history   []recommend.Feedback
		wantData  map[string]float64
		wantConf  float64
		wantFound bool
	}{
		{
			name: "strongly liked genre",
			history: []recommend.Feedback{
				genreFeedback(recommend.FeedbackLike, "rock"),
				genreFeedback(recommend.FeedbackLike, "rock"),
				genreFeedback(recommend.FeedbackLike, "rock"),
			},
			wantData:  map[string]float64{"rock": 1},
			wantConf:  1.0 / 5.0,
			wantFound: true,
		},
		{
			name: "strongly disliked genre",
			history: []recommend.Feedback{
				genreFeedback(recommend.FeedbackDislike, "polka"),
				genreFeedback(recommend.FeedbackDislike, "polka"),
				genreFeedback(recommend.FeedbackDislike, "polka"),
				genreFeedback(recommend.FeedbackLike, "polka"),
			},
			wantData:  map[string]float64{"polka": 0.25},
			wantConf:  1.0 / 5.0,
			wantFound: true,
		},
		{
			name: "too few votes",
			history: []recommend.Feedback{
				genreFeedback(recommend.FeedbackLike, "rock"),
				genreFeedback(recommend.FeedbackLike, "rock"),
			},
			wantFound: false,
		},
		{
			name: "mixed ratio below skew threshold",
			history: []recommend.Feedback{
				genreFeedback(recommend.FeedbackLike, "rock"),
				genreFeedback(recommend.FeedbackLike, "rock"),
				genreFeedback(recommend.FeedbackDislike, "rock"),
			},
			wantFound: false,
		},
		{
			name: "skips ignored",
			history: []recommend.Feedback{
				genreFeedback(recommend.FeedbackSkip, "rock"),
				genreFeedback(recommend.FeedbackSkip, "rock"),
				genreFeedback(recommend.FeedbackSkip, "rock"),
			},
			wantFound: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := detectGenrePattern(tt.history)
			if (p != nil) != tt.wantFound {
				t.Fatalf("found = %v, want %v", p != nil, tt.wantFound)
			}
			if p == nil {
				return
			}
			if len(p.Data) != len(tt.wantData) {
				t.Fatalf("data = %v, want %v", p.Data, tt.wantData)
			}
			for k, want := range tt.wantData {
				if math.Abs(p.Data[k]-want) > 1e-9 {
					t.Errorf("data[%s] = %f, want %f", k, p.Data[k], want)
				}
			}
			if math.Abs(p.Confidence-tt.wantConf) > 1e-9 {
				t.Errorf("confidence = %f, want %f", p.Confidence, tt.wantConf)
			}
		})
	}
}

func TestDetectTimePattern(t *testing.T) {
	at := func(hour int, typ recommend.FeedbackType) recommend.Feedback {
		return fb(typ, recommend.FeedbackContext{}, time.Date(2026, 8, 1, hour, 0, 0, 0, time.UTC))
	}

	t.Run("two positive hours", func(t *testing.T) {
		p := detectTimePattern([]recommend.Feedback{
			at(8, recommend.FeedbackLike), at(8, recommend.FeedbackLike),
			at(21, recommend.FeedbackLike), at(21, recommend.FeedbackLike),
		})
		if p == nil {
			t.Fatal("expected a time pattern")
		}
		if p.Data["hour_8"] != 1 || p.Data["hour_21"] != 1 {
			t.Errorf("data = %v", p.Data)
		}
		if math.Abs(p.Confidence-2.0/8.0) > 1e-9 {
			t.Errorf("confidence = %f, want 0.25", p.Confidence)
		}
	})

	t.Run("single active hour is not a pattern", func(t *testing.T) {
		p := detectTimePattern([]recommend.Feedback{
			at(8, recommend.FeedbackLike), at(8, recommend.FeedbackLike),
		})
		if p != nil {
			t.Errorf("unexpected pattern: %+v", p)
		}
	})

	t.Run("negative hours excluded", func(t *testing.T) {
		p := detectTimePattern([]recommend.Feedback{
			at(8, recommend.FeedbackLike), at(8, recommend.FeedbackLike),
			at(21, recommend.FeedbackDislike), at(21, recommend.FeedbackDislike),
		})
		if p != nil {
			t.Errorf("unexpected pattern: %+v", p)
		}
	})
}

func TestDetectMoodPattern(t *testing.T) {
	mood := func(typ recommend.FeedbackType, m string) recommend.Feedback {
		return fb(typ, recommend.FeedbackContext{Mood: m}, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	}

	p := detectMoodPattern([]recommend.Feedback{
		mood(recommend.FeedbackLike, "energetic"),
		mood(recommend.FeedbackLike, "energetic"),
		mood(recommend.FeedbackLike, ""),
	})
	if p == nil {
		t.Fatal("expected a mood pattern")
	}
	if p.Data["energetic"] != 1 {
		t.Errorf("data = %v", p.Data)
	}
	if math.Abs(p.Confidence-1.0/3.0) > 1e-9 {
		t.Errorf("confidence = %f, want 1/3", p.Confidence)
	}

	if p := detectMoodPattern([]recommend.Feedback{mood(recommend.FeedbackLike, "calm")}); p != nil {
		t.Errorf("single vote produced a pattern: %+v", p)
	}
}

func TestDetectorMergesRepeatedPatterns(t *testing.T) {
	d := NewDetector()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	history := []recommend.Feedback{
		genreFeedback(recommend.FeedbackLike, "rock"),
		genreFeedback(recommend.FeedbackLike, "rock"),
		genreFeedback(recommend.FeedbackLike, "rock"),
	}
	d.Detect(1, history)

	history = append(history,
		genreFeedback(recommend.FeedbackLike, "jazz"),
		genreFeedback(recommend.FeedbackLike, "jazz"),
		genreFeedback(recommend.FeedbackLike, "jazz"),
	)
	now = now.Add(time.Hour)
	d.Detect(1, history)

	patterns := d.Patterns(1)
	if len(patterns) != 1 {
		t.Fatalf("got %d patterns, want 1 merged genre pattern", len(patterns))
	}
	p := patterns[0]
	if p.Type != PatternGenre {
		t.Errorf("type = %s", p.Type)
	}
	if p.Frequency != 2 {
		t.Errorf("frequency = %d, want 2", p.Frequency)
	}
	if _, ok := p.Data["rock"]; !ok {
		t.Error("merged data lost rock")
	}
	if _, ok := p.Data["jazz"]; !ok {
		t.Error("merged data lost jazz")
	}
	// Second detection saw 2 skewed genres: confidence 2/5 beats 1/5.
	if math.Abs(p.Confidence-2.0/5.0) > 1e-9 {
		t.Errorf("confidence = %f, want 0.4", p.Confidence)
	}
	if !p.LastSeen.Equal(now) {
		t.Errorf("last seen = %s, want %s", p.LastSeen, now)
	}
}

func TestDetectorRestore(t *testing.T) {
	d := NewDetector()
	d.Restore(1, []Pattern{{Type: PatternMood, Confidence: 0.5, Frequency: 3}})
	patterns := d.Patterns(1)
	if len(patterns) != 1 || patterns[0].Frequency != 3 {
		t.Fatalf("restored patterns = %+v", patterns)
	}
	if patterns[0].Data == nil {
		t.Error("restore must initialize nil data maps")
	}
}
