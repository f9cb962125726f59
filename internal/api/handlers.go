// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/resona-fm/resona/internal/metrics"
	"github.com/resona-fm/resona/internal/recommend"
)

// requestTimeout bounds handler work beyond the engine's own per-source
// timeouts.
const requestTimeout = 10 * time.Second

var validate = validator.New()

// Handler serves the recommendation API.
type Handler struct {
	engine *recommend.Engine
}

// NewHandler creates an API handler over the engine.
func NewHandler(engine *recommend.Engine) *Handler {
	return &Handler{engine: engine}
}

// recommendRequest is the POST /recommendations payload.
type recommendRequest struct {
	UserID          int64              `json:"user_id" validate:"required,gt=0"`
	K               int                `json:"k" validate:"gte=0,lte=100"`
	Profile         profilePayload     `json:"profile"`
	WeightOverrides map[string]float64 `json:"weight_overrides" validate:"omitempty,dive,gte=0"`
}

type profilePayload struct {
	RecentTracks []recommend.Track `json:"recent_tracks" validate:"omitempty,dive"`
	TopArtists   []string          `json:"top_artists"`
	Genres       []string          `json:"genres"`
	Mood         string            `json:"mood"`
	Activity     string            `json:"activity"`
}

// Recommend handles POST /api/v1/recommendations.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Malformed request body", err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", err)
		return
	}

	overrides, err := parseOverrides(req.WeightOverrides)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown strategy in weight overrides", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	resp, err := h.engine.Recommend(ctx, recommend.Request{
		UserID: req.UserID,
		K:      req.K,
		Profile: recommend.UserProfile{
			RecentTracks: req.Profile.RecentTracks,
			TopArtists:   req.Profile.TopArtists,
			Genres:       req.Profile.Genres,
			Mood:         req.Profile.Mood,
			Activity:     req.Profile.Activity,
		},
		WeightOverrides: overrides,
		RequestID:       r.Header.Get("X-Request-ID"),
	})
	if err != nil {
		if errors.Is(err, recommend.ErrInvalidProfile) {
			metrics.RecordRecommendation("invalid", time.Since(start))
			respondError(w, http.StatusBadRequest, "INVALID_PROFILE", "User profile has no usable signal", err)
			return
		}
		metrics.RecordRecommendation("error", time.Since(start))
		respondError(w, http.StatusInternalServerError, "RECOMMENDATION_ERROR", "Failed to generate recommendations", err)
		return
	}

	outcome := "ok"
	switch {
	case resp.Metadata.FallbackUsed && len(resp.Items) > 0:
		outcome = "fallback"
	case len(resp.Items) == 0:
		outcome = "empty"
	}
	metrics.RecordRecommendation(outcome, time.Since(start))
	for _, strategy := range resp.Metadata.StrategiesUsed {
		metrics.StrategyCandidates.WithLabelValues(strategy).Add(float64(len(resp.Items)))
	}

	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data:   resp,
		Metadata: Metadata{
			Timestamp: time.Now().UTC(),
			LatencyMS: resp.Metadata.LatencyMS,
		},
	})
}

func parseOverrides(raw map[string]float64) (map[recommend.Strategy]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	overrides := make(map[recommend.Strategy]float64, len(raw))
	for name, weight := range raw {
		strategy, err := recommend.ParseStrategy(name)
		if err != nil {
			return nil, err
		}
		overrides[strategy] = weight
	}
	return overrides, nil
}

// feedbackRequest is the POST /feedback payload.
type feedbackRequest struct {
	UserID           int64           `json:"user_id" validate:"required,gt=0"`
	RecommendationID string          `json:"recommendation_id" validate:"required"`
	Type             string          `json:"type" validate:"required,oneof=like dislike skip neutral"`
	Context          feedbackContext `json:"context"`
	Timestamp        time.Time       `json:"timestamp"`
}

type feedbackContext struct {
	Artist   string   `json:"artist"`
	Genres   []string `json:"genres"`
	Mood     string   `json:"mood"`
	Activity string   `json:"activity"`
}

// Feedback handles POST /api/v1/feedback.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Malformed request body", err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", err)
		return
	}
	fbType, err := recommend.ParseFeedbackType(req.Type)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown feedback type", err)
		return
	}

	h.engine.RecordFeedback(r.Context(), recommend.Feedback{
		UserID:           req.UserID,
		RecommendationID: req.RecommendationID,
		Type:             fbType,
		Context: recommend.FeedbackContext{
			Artist:   req.Context.Artist,
			Genres:   req.Context.Genres,
			Mood:     req.Context.Mood,
			Activity: req.Context.Activity,
		},
		Timestamp: req.Timestamp,
	})
	metrics.FeedbackReceived.WithLabelValues(fbType.String()).Inc()

	respondJSON(w, http.StatusAccepted, &APIResponse{
		Status:   "success",
		Data:     map[string]string{"result": "accepted"},
		Metadata: Metadata{Timestamp: time.Now().UTC()},
	})
}

// Insights handles GET /api/v1/users/{userID}/insights.
func (h *Handler) Insights(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_USER_ID", "Invalid user ID", err)
		return
	}
	respondJSON(w, http.StatusOK, &APIResponse{
		Status:   "success",
		Data:     h.engine.UserInsights(userID),
		Metadata: Metadata{Timestamp: time.Now().UTC()},
	})
}

// Stats handles GET /api/v1/engine/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Status:   "success",
		Data:     h.engine.Stats(),
		Metadata: Metadata{Timestamp: time.Now().UTC()},
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Status:   "success",
		Data:     map[string]string{"status": "healthy"},
		Metadata: Metadata{Timestamp: time.Now().UTC()},
	})
}
