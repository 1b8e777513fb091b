// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

// Package deck serves dish decks from the stored inventory and summarizes
// a user's taste.
//
// Serve is cache-first: it answers from ready dishes, tops up a shortfall
// synchronously through the refill engine, and always leaves a watermark
// check running in the background. The source tag of the response records
// which of those paths contributed dishes.
package deck

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tastedeck/internal/cache"
	"github.com/tomtom215/tastedeck/internal/gemini"
	"github.com/tomtom215/tastedeck/internal/logging"
	"github.com/tomtom215/tastedeck/internal/metrics"
	"github.com/tomtom215/tastedeck/internal/models"
	"github.com/tomtom215/tastedeck/internal/refill"
	"github.com/tomtom215/tastedeck/internal/taste"
)

// Source parts joined into DeckResponse.Source.
const (
	SourceCache = "cache"
	SourceFill  = "gemini_fill"
)

// Store reads the ready inventory.
type Store interface {
	ReadyDishes(ctx context.Context) ([]models.Dish, error)
	ImagesByID(ctx context.Context, ids []string) (map[string]*models.DishImage, error)
}

// Refiller tops up the inventory. *refill.Engine implements it.
type Refiller interface {
	GenerateAndStore(ctx context.Context, profile *models.TasteProfile, needed int, extraAvoid []string, path string) (int, error)
	CheckWatermark(ctx context.Context, profile *models.TasteProfile) (bool, error)
}

// Generator is the JSON side of the provider client.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, temperature float64) (*gemini.Response, error)
}

// Service implements the deck and analyze operations.
type Service struct {
	store    Store
	refiller Refiller
	gen      Generator
	analyze  *cache.Cache

	watermarkTimeout time.Duration
	shuffle          func(n int, swap func(i, j int))

	bg     sync.WaitGroup
	logger zerolog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithAnalyzeCache memoizes analyze responses in c. A nil cache disables
// memoization.
func WithAnalyzeCache(c *cache.Cache) Option {
	return func(s *Service) { s.analyze = c }
}

// WithShuffle replaces the random shuffle, for deterministic tests.
func WithShuffle(fn func(n int, swap func(i, j int))) Option {
	return func(s *Service) { s.shuffle = fn }
}

// NewService creates the deck service.
func NewService(store Store, refiller Refiller, gen Generator, opts ...Option) *Service {
	s := &Service{
		store:            store,
		refiller:         refiller,
		gen:              gen,
		watermarkTimeout: 30 * time.Second,
		shuffle:          rand.Shuffle,
		logger:           logging.WithComponent("deck"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Serve returns exactly req.Count ready dishes, none of them named in
// req.AvoidNames. The count must already be validated.
func (s *Service) Serve(ctx context.Context, req *models.DeckRequest) (*models.DeckResponse, error) {
	count := req.Count
	avoid := taste.NormalizeNames(req.AvoidNames)
	profile := req.Profile()
	profile.AvoidNames = avoid

	exclude := make(map[string]struct{}, len(avoid))
	for _, n := range avoid {
		exclude[n] = struct{}{}
	}

	chosen, err := s.pick(ctx, count, exclude)
	if err != nil {
		metrics.RecordDeckError("store")
		return nil, err
	}

	var parts []string
	if len(chosen) > 0 {
		parts = append(parts, SourceCache)
	}

	if missing := count - len(chosen); missing > 0 {
		extra := make([]string, 0, len(avoid)+len(chosen))
		extra = append(extra, avoid...)
		for i := range chosen {
			extra = append(extra, chosen[i].Name)
			exclude[chosen[i].Name] = struct{}{}
		}

		created, ferr := s.refiller.GenerateAndStore(ctx, &profile, missing, extra, refill.PathSyncFill)
		switch {
		case ferr != nil && len(chosen) == 0:
			metrics.RecordDeckError("upstream")
			return nil, upstreamError("Deck sync fill failed", ferr)
		case ferr != nil:
			s.logger.Warn().Err(ferr).Int("cached", len(chosen)).Int("missing", missing).
				Msg("deck sync fill failed, serving cached dishes only")
		case created > 0:
			more, err := s.pick(ctx, missing, exclude)
			if err != nil {
				metrics.RecordDeckError("store")
				return nil, err
			}
			chosen = append(chosen, more...)
			parts = append(parts, SourceFill)
		}
	}

	s.checkWatermarkAsync(ctx, &profile)

	if len(chosen) < count {
		metrics.RecordDeckError("capacity")
		return nil, capacityError(len(chosen), count)
	}

	dishes, err := s.render(ctx, chosen)
	if err != nil {
		metrics.RecordDeckError("store")
		return nil, err
	}

	source := strings.Join(parts, "+")
	if source == "" {
		source = SourceCache
	}
	metrics.RecordDeckServed(source)
	return &models.DeckResponse{Dishes: dishes, Source: source}, nil
}

// pick returns up to n random ready dishes whose names are not excluded.
func (s *Service) pick(ctx context.Context, n int, exclude map[string]struct{}) ([]models.Dish, error) {
	rows, err := s.store.ReadyDishes(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.Dish, 0, len(rows))
	for i := range rows {
		if _, skip := exclude[rows[i].Name]; !skip {
			candidates = append(candidates, rows[i])
		}
	}
	s.shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates, nil
}

// render loads images with one query and re-clamps stored signals.
func (s *Service) render(ctx context.Context, rows []models.Dish) ([]models.DeckDish, error) {
	ids := make([]string, 0, len(rows))
	for i := range rows {
		if rows[i].ImageID != nil {
			ids = append(ids, *rows[i].ImageID)
		}
	}

	images := map[string]*models.DishImage{}
	if len(ids) > 0 {
		var err error
		if images, err = s.store.ImagesByID(ctx, ids); err != nil {
			return nil, err
		}
	}

	out := make([]models.DeckDish, len(rows))
	for i := range rows {
		row := &rows[i]
		out[i] = models.DeckDish{
			Name:     row.Name,
			Subtitle: row.Subtitle,
			Signals:  taste.NormalizeStoredSignals(row.Signals),
		}
		if row.ImageID == nil {
			continue
		}
		if img, ok := images[*row.ImageID]; ok && img.DataURL != "" {
			dataURL := img.DataURL
			out[i].ImageDataURL = &dataURL
		}
	}
	return out, nil
}

// checkWatermarkAsync runs CheckWatermark on a context detached from the
// request. Nothing waits for it except Wait.
func (s *Service) checkWatermarkAsync(ctx context.Context, profile *models.TasteProfile) {
	p := *profile
	bgCtx := context.WithoutCancel(ctx)

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(bgCtx, s.watermarkTimeout)
		defer cancel()
		if _, err := s.refiller.CheckWatermark(ctx, &p); err != nil {
			s.logger.Warn().Err(err).Msg("watermark check failed")
		}
	}()
}

// Wait blocks until background watermark checks have returned.
func (s *Service) Wait() {
	s.bg.Wait()
}
