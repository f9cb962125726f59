// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/resona-fm/resona/internal/recommend"
)

func TestPopularityFallbackGenerate(t *testing.T) {
	gen := NewPopularityFallback(&stubPopularityFeed{ranked: rankedTracks("t1", "t2", "t3")})

	got, err := gen.Generate(context.Background(), recommend.UserProfile{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candidates, want 3", len(got))
	}
	for _, c := range got {
		if c.Score != 0.5 || c.Confidence != 0.5 {
			t.Errorf("flat scoring violated: %+v", c)
		}
		if c.Strategy != recommend.StrategyFallback {
			t.Errorf("strategy = %s, want fallback", c.Strategy)
		}
		if c.Metadata["fallback"] != 1 {
			t.Errorf("metadata = %v", c.Metadata)
		}
	}
}

func TestPopularityFallbackGenerateFeedError(t *testing.T) {
	gen := NewPopularityFallback(&stubPopularityFeed{err: errors.New("chart service down")})
	if _, err := gen.Generate(context.Background(), recommend.UserProfile{}); err == nil {
		t.Fatal("expected error from feed")
	}
}
