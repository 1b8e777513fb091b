// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package models

import "time"

// Dish status values. Only ready rows are served.
const (
	DishStatusReady = "ready"
)

// SourceGemini marks rows and responses produced by the Gemini provider.
const SourceGemini = "gemini"

// Generation job kinds.
const (
	JobKindDeckRefill      = "deck_refill"
	JobKindBootstrapRefill = "bootstrap_refill"
)

// Generation job statuses. A job moves from running to exactly one of
// done or failed.
const (
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// Dish is one row of the dishes table. Name is the dedup key.
type Dish struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`     // UNIQUE, at most 80 characters
	Subtitle     string             `json:"subtitle"` // At most 160 characters
	Signals      map[string]float64 `json:"signals"`  // Feature id to strength
	Status       string             `json:"status"`
	Source       string             `json:"source"`
	ImageID      *string            `json:"image_id,omitempty"`
	CategoryTags []string           `json:"category_tags,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// DishImage is an inline image owned by at most one dish.
type DishImage struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	MimeType  string    `json:"mime_type"`
	DataURL   string    `json:"data_url"` // data:{mime};base64,{payload}
	CreatedAt time.Time `json:"created_at"`
}

// GenerationJob records one refill cycle.
type GenerationJob struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	Status        string     `json:"status"`
	TargetCount   int        `json:"target_count"`
	ProducedCount int        `json:"produced_count"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// GeneratedDish is a sanitized candidate plus the image attached to it
// during enrichment. Image is nil when no picture was produced.
type GeneratedDish struct {
	DeckDish
	Image *DishImage
}
