// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

// Package cache provides a small LRU memoization layer with per-entry
// TTLs. Correctness never depends on a hit: expired or evicted entries
// are simply recomputed.
package cache

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// LRU is a bounded memoization cache. Safe for concurrent use. Two
// concurrent misses on the same key may both compute; the later result
// wins, which is acceptable for pure computations.
type LRU struct {
	inner *lru.Cache[string, entry]
	now   func() time.Time
}

// New creates a cache holding up to size entries.
func New(size int) (*LRU, error) {
	inner, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	return &LRU{inner: inner, now: time.Now}, nil
}

// SetNow overrides the clock. Intended for tests.
func (c *LRU) SetNow(now func() time.Time) {
	c.now = now
}

// GetOrCompute returns the cached value for key, computing and storing
// it on miss or expiry. Compute errors are returned and never cached.
func (c *LRU) GetOrCompute(key string, ttl time.Duration, compute func() (any, error)) (any, error) {
	if e, ok := c.inner.Get(key); ok && c.now().Before(e.expiresAt) {
		return e.value, nil
	}
	value, err := compute()
	if err != nil {
		return nil, err
	}
	c.inner.Add(key, entry{value: value, expiresAt: c.now().Add(ttl)})
	return value, nil
}

// Invalidate drops a key.
func (c *LRU) Invalidate(key string) {
	c.inner.Remove(key)
}

// Purge drops every entry.
func (c *LRU) Purge() {
	c.inner.Purge()
}

// Len returns the number of resident entries, expired included.
func (c *LRU) Len() int {
	return c.inner.Len()
}
