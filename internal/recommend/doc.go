// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

// Package recommend implements a hybrid music recommendation engine.
//
// # Architecture
//
// The engine blends several independent scoring strategies into a single
// ranked, diversity-aware list:
//
//   - Collaborative Filtering: tracks liked by similar listeners
//   - Content-Based Filtering: metadata similarity to recent plays
//   - Popularity: global play statistics
//   - Recency: fresh releases matching the user's taste
//   - Diversity Selection: greedy set-diversity maximization
//
// # Design Principles
//
//   - Degradable: a failed or slow strategy is absorbed, never fatal;
//     when every strategy fails a fallback path still answers
//   - Adaptive: per-user preference weights learned from feedback boost
//     final scores, capped to bound personalization
//   - Auditable: operations are logged with structured fields and
//     candidates carry interpretable reasons
//   - Traceable: request IDs propagate through context
//
// # Strategy Blending
//
// Raw strategy scores are multiplied by configured strategy weights,
// deduplicated per track keeping the highest value, boosted by learned
// preferences, then passed to the diversity selector. Diversity decides
// which tracks are kept; final ordering is by blended score.
//
// Subpackages provide the concrete collaborators: preferences (adaptive
// learning), similarity (user-user overlap), content (track metadata
// similarity), diversity (greedy selection), sources (strategy
// implementations) and storage (durable preference state).
package recommend
