// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package recommend

import (
	"context"
	"errors"
	"io"
	"math"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

type stubSource struct {
	strategy   Strategy
	candidates []ScoredCandidate
	err        error
	calls      atomic.Int32
}

func (s *stubSource) Strategy() Strategy { return s.strategy }

func (s *stubSource) Generate(ctx context.Context, userID int64, profile UserProfile, limit int) ([]ScoredCandidate, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]ScoredCandidate, len(s.candidates))
	copy(out, s.candidates)
	return out, nil
}

type stubFallback struct {
	candidates []ScoredCandidate
	err        error
	calls      atomic.Int32
}

func (f *stubFallback) Generate(ctx context.Context, profile UserProfile) ([]ScoredCandidate, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]ScoredCandidate, len(f.candidates))
	copy(out, f.candidates)
	return out, nil
}

type stubPrefs struct {
	boost float64
}

func (p *stubPrefs) ApplyFeedback(ctx context.Context, fb Feedback) {}

func (p *stubPrefs) Boost(userID int64, track Track, mood, activity string) float64 {
	return p.boost
}

func (p *stubPrefs) Insights(userID int64) UserInsights {
	return UserInsights{UserID: userID}
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func cands(strategy Strategy, pairs ...any) []ScoredCandidate {
	var out []ScoredCandidate
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, ScoredCandidate{
			Track:      Track{ID: pairs[i].(string), Artist: "a-" + pairs[i].(string), Title: pairs[i].(string)},
			Score:      pairs[i+1].(float64),
			Strategy:   strategy,
			Confidence: 0.8,
		})
	}
	return out
}

func validProfile() UserProfile {
	return UserProfile{
		RecentTracks: []Track{{ID: "r1", Artist: "Radiohead", Title: "Airbag", Genre: "rock"}},
		TopArtists:   []string{"Radiohead"},
		Genres:       []string{"rock"},
	}
}

func TestRecommendBlendsAndOrders(t *testing.T) {
	engine, err := NewEngine(DefaultConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	engine.RegisterSource(&stubSource{
		strategy:   StrategyCollaborative,
		candidates: cands(StrategyCollaborative, "t1", 0.9, "t2", 0.5),
	})
	engine.RegisterSource(&stubSource{
		strategy:   StrategyPopularity,
		candidates: cands(StrategyPopularity, "t3", 0.7),
	})

	resp, err := engine.Recommend(context.Background(), Request{UserID: 1, Profile: validProfile(), K: 10})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.TotalCandidates != 3 {
		t.Errorf("TotalCandidates = %d, want 3", resp.TotalCandidates)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(resp.Items))
	}
	// collaborative weight 0.30: t1 = 0.27, t2 = 0.15; popularity 0.20: t3 = 0.14
	want := map[string]float64{"t1": 0.27, "t2": 0.15, "t3": 0.14}
	for _, item := range resp.Items {
		if math.Abs(item.Score-want[item.Track.ID]) > 1e-9 {
			t.Errorf("score for %s = %f, want %f", item.Track.ID, item.Score, want[item.Track.ID])
		}
		if w := item.Metadata["strategy_weight"]; w == 0 {
			t.Errorf("missing strategy_weight metadata on %s", item.Track.ID)
		}
	}
	for i := 1; i < len(resp.Items); i++ {
		if resp.Items[i].Score > resp.Items[i-1].Score {
			t.Errorf("items not sorted by score desc at %d", i)
		}
	}
	if resp.Metadata.FallbackUsed {
		t.Error("fallback should not be used")
	}
	if len(resp.Metadata.StrategiesUsed) != 2 {
		t.Errorf("StrategiesUsed = %v, want 2 entries", resp.Metadata.StrategiesUsed)
	}
	if resp.Metadata.RequestID == "" {
		t.Error("request id not generated")
	}
}

func TestRecommendDeduplicatesAcrossSources(t *testing.T) {
	engine, _ := NewEngine(DefaultConfig(), testLogger())
	engine.RegisterSource(&stubSource{
		strategy:   StrategyCollaborative,
		candidates: cands(StrategyCollaborative, "dup", 0.5),
	})
	engine.RegisterSource(&stubSource{
		strategy:   StrategyContentBased,
		candidates: cands(StrategyContentBased, "dup", 0.9),
	})

	resp, err := engine.Recommend(context.Background(), Request{UserID: 1, Profile: validProfile(), K: 5})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(resp.Items))
	}
	// collaborative: 0.5*0.30 = 0.15; content: 0.9*0.25 = 0.225. Higher wins.
	if math.Abs(resp.Items[0].Score-0.225) > 1e-9 {
		t.Errorf("dedup kept score %f, want 0.225", resp.Items[0].Score)
	}
	if resp.Items[0].Strategy != StrategyContentBased {
		t.Errorf("dedup kept strategy %v, want content_based", resp.Items[0].Strategy)
	}
}

func TestRecommendInvalidProfileFailsFast(t *testing.T) {
	engine, _ := NewEngine(DefaultConfig(), testLogger())
	src := &stubSource{strategy: StrategyPopularity, candidates: cands(StrategyPopularity, "t1", 0.7)}
	engine.RegisterSource(src)

	_, err := engine.Recommend(context.Background(), Request{UserID: 1, Profile: UserProfile{}})
	if !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("want ErrInvalidProfile, got %v", err)
	}
	if src.calls.Load() != 0 {
		t.Error("source invoked despite invalid profile")
	}
}

func TestRecommendAbsorbsSourceFailure(t *testing.T) {
	engine, _ := NewEngine(DefaultConfig(), testLogger())
	engine.RegisterSource(&stubSource{strategy: StrategyCollaborative, err: errors.New("backend down")})
	engine.RegisterSource(&stubSource{
		strategy:   StrategyPopularity,
		candidates: cands(StrategyPopularity, "t1", 0.7),
	})

	resp, err := engine.Recommend(context.Background(), Request{UserID: 1, Profile: validProfile(), K: 5})
	if err != nil {
		t.Fatalf("Recommend returned error on partial failure: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(resp.Items))
	}
	if resp.Metadata.FallbackUsed {
		t.Error("fallback used despite a healthy source")
	}
	if len(resp.Metadata.StrategiesUsed) != 1 || resp.Metadata.StrategiesUsed[0] != "popularity" {
		t.Errorf("StrategiesUsed = %v", resp.Metadata.StrategiesUsed)
	}
	stats := engine.Stats()
	if stats.StrategyFailures["collaborative"] != 1 {
		t.Errorf("failure not recorded: %v", stats.StrategyFailures)
	}
}

func TestRecommendFallbackWhenAllStrategiesEmpty(t *testing.T) {
	engine, _ := NewEngine(DefaultConfig(), testLogger())
	engine.RegisterSource(&stubSource{strategy: StrategyCollaborative, err: errors.New("down")})
	engine.RegisterSource(&stubSource{strategy: StrategyPopularity, err: errors.New("down")})
	fb := &stubFallback{candidates: []ScoredCandidate{
		{Track: Track{ID: "f1"}, Score: 0.5, Confidence: 0.5},
		{Track: Track{ID: "f2"}, Score: 0.5, Confidence: 0.5},
	}}
	engine.SetFallback(fb)

	resp, err := engine.Recommend(context.Background(), Request{UserID: 1, Profile: validProfile(), K: 5})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if !resp.Metadata.FallbackUsed {
		t.Fatal("fallback not flagged")
	}
	if len(resp.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(resp.Items))
	}
	for _, item := range resp.Items {
		if item.Strategy != StrategyFallback {
			t.Errorf("item %s strategy = %v, want fallback", item.Track.ID, item.Strategy)
		}
		// DefaultConfig scales fallback confidence by 0.8.
		if math.Abs(item.Confidence-0.4) > 1e-9 {
			t.Errorf("item %s confidence = %f, want 0.4", item.Track.ID, item.Confidence)
		}
	}
	if got := resp.Metadata.StrategiesUsed; len(got) != 1 || got[0] != "fallback" {
		t.Errorf("StrategiesUsed = %v, want [fallback]", got)
	}
}

func TestRecommendFallbackFailureYieldsEmptyResult(t *testing.T) {
	engine, _ := NewEngine(DefaultConfig(), testLogger())
	engine.RegisterSource(&stubSource{strategy: StrategyPopularity, err: errors.New("down")})
	engine.SetFallback(&stubFallback{err: errors.New("also down")})

	resp, err := engine.Recommend(context.Background(), Request{UserID: 1, Profile: validProfile(), K: 5})
	if err != nil {
		t.Fatalf("total failure must not error: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Errorf("got %d items, want 0", len(resp.Items))
	}
	if !resp.Metadata.FallbackUsed {
		t.Error("fallback attempt not flagged")
	}
}

func TestRecommendNoFallbackGeneratorNotFlagged(t *testing.T) {
	engine, _ := NewEngine(DefaultConfig(), testLogger())
	engine.RegisterSource(&stubSource{strategy: StrategyPopularity, err: errors.New("down")})

	resp, err := engine.Recommend(context.Background(), Request{UserID: 1, Profile: validProfile(), K: 5})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Errorf("got %d items, want 0", len(resp.Items))
	}
	if resp.Metadata.FallbackUsed {
		t.Error("fallback flagged with no generator installed")
	}
	if n := engine.Stats().FallbackCount; n != 0 {
		t.Errorf("FallbackCount = %d, want 0", n)
	}
}

func TestRecommendDisabledFallbackNotFlagged(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fallback.Enabled = false
	engine, err := NewEngine(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	engine.RegisterSource(&stubSource{strategy: StrategyPopularity, err: errors.New("down")})
	fb := &stubFallback{candidates: []ScoredCandidate{{Track: Track{ID: "f1"}, Score: 0.5, Confidence: 0.5}}}
	engine.SetFallback(fb)

	resp, err := engine.Recommend(context.Background(), Request{UserID: 1, Profile: validProfile(), K: 5})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if fb.calls.Load() != 0 {
		t.Error("disabled fallback generator invoked")
	}
	if resp.Metadata.FallbackUsed {
		t.Error("fallback flagged while disabled")
	}
	if n := engine.Stats().FallbackCount; n != 0 {
		t.Errorf("FallbackCount = %d, want 0", n)
	}
}

func TestRecommendZeroWeightSkipsSource(t *testing.T) {
	engine, _ := NewEngine(DefaultConfig(), testLogger())
	skipped := &stubSource{strategy: StrategyCollaborative, candidates: cands(StrategyCollaborative, "t1", 0.9)}
	engine.RegisterSource(skipped)
	engine.RegisterSource(&stubSource{
		strategy:   StrategyPopularity,
		candidates: cands(StrategyPopularity, "t2", 0.7),
	})

	resp, err := engine.Recommend(context.Background(), Request{
		UserID:          1,
		Profile:         validProfile(),
		K:               5,
		WeightOverrides: map[Strategy]float64{StrategyCollaborative: 0},
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if skipped.calls.Load() != 0 {
		t.Error("zero-weight source was invoked")
	}
	if len(resp.Items) != 1 || resp.Items[0].Track.ID != "t2" {
		t.Errorf("unexpected items: %+v", resp.Items)
	}
}

func TestRecommendAdaptiveBoostCapped(t *testing.T) {
	engine, _ := NewEngine(DefaultConfig(), testLogger())
	engine.RegisterSource(&stubSource{
		strategy:   StrategyPopularity,
		candidates: cands(StrategyPopularity, "t1", 1.0),
	})
	// Raw boost far above 1 must clamp to the 30% ceiling.
	engine.SetPreferences(&stubPrefs{boost: 5})

	resp, err := engine.Recommend(context.Background(), Request{UserID: 1, Profile: validProfile(), K: 5})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	// 1.0 * 0.20 (popularity weight) * 1.3 (max boost)
	if math.Abs(resp.Items[0].Score-0.26) > 1e-9 {
		t.Errorf("boosted score = %f, want 0.26", resp.Items[0].Score)
	}
	if math.Abs(resp.Items[0].Metadata["adaptive_boost"]-1.3) > 1e-9 {
		t.Errorf("adaptive_boost = %f, want 1.3", resp.Items[0].Metadata["adaptive_boost"])
	}
}

func TestRecommendKDefaultsAndCap(t *testing.T) {
	cfg := DefaultConfig()
	engine, _ := NewEngine(cfg, testLogger())

	req := engine.prepareRequest(Request{})
	if req.K != cfg.Limits.DefaultK {
		t.Errorf("default K = %d, want %d", req.K, cfg.Limits.DefaultK)
	}
	req = engine.prepareRequest(Request{K: 10000})
	if req.K != cfg.Limits.MaxK {
		t.Errorf("capped K = %d, want %d", req.K, cfg.Limits.MaxK)
	}
}

func TestRecommendSelectorDecidesMembershipNotOrder(t *testing.T) {
	engine, _ := NewEngine(DefaultConfig(), testLogger())
	engine.RegisterSource(&stubSource{
		strategy:   StrategyPopularity,
		candidates: cands(StrategyPopularity, "t1", 0.9, "t2", 0.5, "t3", 0.7),
	})
	engine.SetSelector(reverseSelector{})

	resp, err := engine.Recommend(context.Background(), Request{UserID: 1, Profile: validProfile(), K: 2})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(resp.Items))
	}
	// Selector picked the two lowest, but output must still be score desc.
	if resp.Items[0].Score < resp.Items[1].Score {
		t.Error("selected items not re-sorted by score")
	}
}

// reverseSelector keeps the k lowest-scored items, exercising the rule
// that selection decides membership while score decides order.
type reverseSelector struct{}

func (reverseSelector) Name() string { return "reverse" }

func (reverseSelector) Select(ctx context.Context, items []ScoredCandidate, k int) []ScoredCandidate {
	out := make([]ScoredCandidate, len(items))
	copy(out, items)
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Score < out[i].Score {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func TestEngineStats(t *testing.T) {
	engine, _ := NewEngine(DefaultConfig(), testLogger())
	engine.RegisterSource(&stubSource{
		strategy:   StrategyPopularity,
		candidates: cands(StrategyPopularity, "t1", 0.7),
	})
	engine.SetPreferences(&stubPrefs{})

	_, _ = engine.Recommend(context.Background(), Request{UserID: 1, Profile: validProfile(), K: 5})
	engine.RecordFeedback(context.Background(), Feedback{UserID: 1, Type: FeedbackLike})

	stats := engine.Stats()
	if stats.RequestCount != 1 {
		t.Errorf("RequestCount = %d, want 1", stats.RequestCount)
	}
	if stats.FeedbackCount != 1 {
		t.Errorf("FeedbackCount = %d, want 1", stats.FeedbackCount)
	}
	if stats.StrategyWeights["popularity"] != 0.20 {
		t.Errorf("StrategyWeights = %v", stats.StrategyWeights)
	}
	if stats.DiversityWeights["artist"] != 0.4 {
		t.Errorf("DiversityWeights = %v", stats.DiversityWeights)
	}
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limits.DefaultK = 0
	if _, err := NewEngine(cfg, testLogger()); err == nil {
		t.Error("expected error for invalid config")
	}
}
