// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package cache

import (
	"errors"
	"testing"
	"time"
)

func testCache(t *testing.T, size int) (*LRU, *time.Time) {
	t.Helper()
	c, err := New(size)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.SetNow(func() time.Time { return now })
	return c, &now
}

func TestGetOrComputeMemoizes(t *testing.T) {
	c, _ := testCache(t, 8)
	calls := 0
	compute := func() (any, error) {
		calls++
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrCompute("k", time.Minute, compute)
		if err != nil {
			t.Fatalf("get or compute: %v", err)
		}
		if v != "value" {
			t.Errorf("value = %v", v)
		}
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
}

func TestGetOrComputeExpiry(t *testing.T) {
	c, now := testCache(t, 8)
	calls := 0
	compute := func() (any, error) {
		calls++
		return calls, nil
	}

	if _, err := c.GetOrCompute("k", time.Minute, compute); err != nil {
		t.Fatalf("get or compute: %v", err)
	}
	*now = now.Add(30 * time.Second)
	if v, _ := c.GetOrCompute("k", time.Minute, compute); v != 1 {
		t.Errorf("value before expiry = %v, want cached 1", v)
	}

	*now = now.Add(31 * time.Second)
	v, err := c.GetOrCompute("k", time.Minute, compute)
	if err != nil {
		t.Fatalf("get or compute: %v", err)
	}
	if v != 2 {
		t.Errorf("value after expiry = %v, want recomputed 2", v)
	}
}

func TestGetOrComputeErrorsNotCached(t *testing.T) {
	c, _ := testCache(t, 8)
	calls := 0
	boom := errors.New("upstream down")
	compute := func() (any, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return "ok", nil
	}

	if _, err := c.GetOrCompute("k", time.Minute, compute); !errors.Is(err, boom) {
		t.Fatalf("first call error = %v, want %v", err, boom)
	}
	v, err := c.GetOrCompute("k", time.Minute, compute)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if v != "ok" {
		t.Errorf("value = %v, want recovery after error", v)
	}
	if calls != 2 {
		t.Errorf("compute called %d times, want 2", calls)
	}
}

func TestInvalidate(t *testing.T) {
	c, _ := testCache(t, 8)
	calls := 0
	compute := func() (any, error) {
		calls++
		return calls, nil
	}

	c.GetOrCompute("k", time.Minute, compute)
	c.Invalidate("k")
	if v, _ := c.GetOrCompute("k", time.Minute, compute); v != 2 {
		t.Errorf("value after invalidate = %v, want recomputed 2", v)
	}
}

func TestPurgeAndLen(t *testing.T) {
	c, _ := testCache(t, 8)
	c.GetOrCompute("a", time.Minute, func() (any, error) { return 1, nil })
	c.GetOrCompute("b", time.Minute, func() (any, error) { return 2, nil })
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("len after purge = %d, want 0", c.Len())
	}
}

func TestEvictionRecomputes(t *testing.T) {
	c, _ := testCache(t, 2)
	calls := 0
	compute := func() (any, error) {
		calls++
		return calls, nil
	}

	c.GetOrCompute("a", time.Minute, compute)
	c.GetOrCompute("b", time.Minute, compute)
	c.GetOrCompute("c", time.Minute, compute) // evicts a
	if v, _ := c.GetOrCompute("a", time.Minute, compute); v != 4 {
		t.Errorf("evicted key = %v, want recomputed 4", v)
	}
}
