// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package models

// DefaultLocale is used when a deck request omits locale.
const DefaultLocale = "zh-CN"

// FeatureScore pairs a feature id with the client's learned preference.
type FeatureScore struct {
	ID    string  `json:"id" validate:"required,max=64"`
	Score float64 `json:"score"`
}

// DeckRequest asks for count dishes shaped by the client's taste profile.
// The scores are prompt hints only; nothing is ranked server side.
type DeckRequest struct {
	Count         int                `json:"count"`
	FeatureScores map[string]float64 `json:"feature_scores"`
	TopPositive   []FeatureScore     `json:"top_positive" validate:"max=64,dive"`
	TopNegative   []FeatureScore     `json:"top_negative" validate:"max=64,dive"`
	RecentLikes   []string           `json:"recent_likes" validate:"max=200"`
	AvoidNames    []string           `json:"avoid_names" validate:"max=2000"`
	Locale        string             `json:"locale" validate:"max=16"`
}

// TasteProfile is the subset of a request the prompt builder reads.
type TasteProfile struct {
	TopPositive []FeatureScore
	TopNegative []FeatureScore
	RecentLikes []string
	AvoidNames  []string
}

// Profile extracts the prompt hints from a deck request.
func (r *DeckRequest) Profile() TasteProfile {
	return TasteProfile{
		TopPositive: r.TopPositive,
		TopNegative: r.TopNegative,
		RecentLikes: r.RecentLikes,
		AvoidNames:  r.AvoidNames,
	}
}

// DeckDish is one served card. Signals values are in [0.2, 1.0].
type DeckDish struct {
	Name         string             `json:"name"`
	Subtitle     string             `json:"subtitle"`
	Signals      map[string]float64 `json:"signals"`
	ImageDataURL *string            `json:"image_data_url"`
}

// DeckResponse is the body of POST /v1/taste/deck.
// Source is "cache", "gemini_fill" or "cache+gemini_fill".
type DeckResponse struct {
	Dishes []DeckDish `json:"dishes"`
	Source string     `json:"source"`
}

// RecentEvent is one swipe the analyzer summarizes.
type RecentEvent struct {
	DishName string   `json:"dish_name" validate:"required"`
	Action   string   `json:"action" validate:"required"`
	Features []string `json:"features"`
}

// AnalyzeRequest is the body of POST /v1/taste/analyze.
type AnalyzeRequest struct {
	TotalSwipes  int            `json:"total_swipes" validate:"gte=0"`
	TopPositive  []FeatureScore `json:"top_positive" validate:"max=64,dive"`
	TopNegative  []FeatureScore `json:"top_negative" validate:"max=64,dive"`
	RecentEvents []RecentEvent  `json:"recent_events" validate:"max=500,dive"`
}

// AnalyzeResponse is the body returned by the analyzer.
type AnalyzeResponse struct {
	Summary  string `json:"summary"`
	Avoid    string `json:"avoid"`
	Strategy string `json:"strategy"`
	Source   string `json:"source"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK               bool   `json:"ok"`
	Model            string `json:"model"`
	ImageModel       string `json:"image_model"`
	GeminiConfigured bool   `json:"gemini_configured"`
	ReadyDishes      int    `json:"ready_dishes"`
}

// JobsResponse is the body of GET /v1/taste/jobs.
type JobsResponse struct {
	Jobs []GenerationJob `json:"jobs"`
}

// ErrorDetail is the error body shape the client expects.
type ErrorDetail struct {
	Detail any `json:"detail"`
}
