// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tastedeck/internal/config"
	"github.com/tomtom215/tastedeck/internal/logging"
	"github.com/tomtom215/tastedeck/internal/models"
)

// DeckService serves decks and taste analyses. Implemented by *deck.Service.
type DeckService interface {
	Serve(ctx context.Context, req *models.DeckRequest) (*models.DeckResponse, error)
	Analyze(ctx context.Context, req *models.AnalyzeRequest) (*models.AnalyzeResponse, error)
}

// InventoryStore is the read-only inventory view the handlers need.
// Implemented by *database.DB.
type InventoryStore interface {
	CountReady(ctx context.Context) (int, error)
	ListJobs(ctx context.Context, limit int) ([]models.GenerationJob, error)
}

// ProviderInfo describes the configured generation provider.
// Implemented by *gemini.Client.
type ProviderInfo interface {
	Configured() bool
	Model() string
	ImageModel() string
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_health.go: GET /health
//   - handlers_taste.go: POST /v1/taste/deck and /v1/taste/analyze
//   - handlers_jobs.go: GET /v1/taste/jobs
type Handler struct {
	deck      DeckService
	store     InventoryStore
	provider  ProviderInfo
	deckCfg   config.DeckConfig
	startTime time.Time
	logger    zerolog.Logger
}

// NewHandler creates the API handler. Deck bounds and the default count come
// from cfg.Deck.
func NewHandler(cfg *config.Config, deck DeckService, store InventoryStore, provider ProviderInfo) *Handler {
	h := &Handler{
		deck:      deck,
		store:     store,
		provider:  provider,
		startTime: time.Now(),
		logger:    logging.WithComponent("api"),
	}
	if cfg != nil {
		h.deckCfg = cfg.Deck
	}
	if h.deckCfg.DefaultCount <= 0 {
		h.deckCfg.DefaultCount = 20
	}
	if h.deckCfg.MinCount <= 0 {
		h.deckCfg.MinCount = 6
	}
	if h.deckCfg.MaxCount < h.deckCfg.MinCount {
		h.deckCfg.MaxCount = 40
	}
	return h
}
