// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

// Package refill keeps the dish inventory stocked.
//
// The Engine turns provider output into stored dishes: it runs the bounded
// generation loop, enriches each dish with an image, and persists the batch
// with a name recheck. Full refill cycles are single-flight. A second
// trigger while a cycle runs is a silent no-op, and an optional Redis lease
// extends that guarantee across replicas. Triggers (low watermark, startup
// bootstrap, periodic tick) enqueue onto a bounded queue drained by one
// supervised worker, so request handlers never wait on a cycle.
package refill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tastedeck/internal/config"
	"github.com/tomtom215/tastedeck/internal/events"
	"github.com/tomtom215/tastedeck/internal/gemini"
	"github.com/tomtom215/tastedeck/internal/logging"
	"github.com/tomtom215/tastedeck/internal/metrics"
	"github.com/tomtom215/tastedeck/internal/models"
	"github.com/tomtom215/tastedeck/internal/taste"
)

// ErrInsufficientDishes means the generation loop ran out of attempts
// before collecting the requested number of valid, unused dishes.
var ErrInsufficientDishes = errors.New("Gemini returned insufficient valid dishes") //nolint:staticcheck // provider name is a proper noun

// Persistence paths, used for metrics and events.
const (
	PathSyncFill = "sync_fill"
	PathRefill   = "refill"
)

// Store is the subset of the inventory store the engine needs.
type Store interface {
	CountReady(ctx context.Context) (int, error)
	ReadyNames(ctx context.Context) ([]string, error)
	ExistingNames(ctx context.Context, names []string) (map[string]struct{}, error)
	InsertDishWithImage(ctx context.Context, dish *models.Dish, image *models.DishImage) (bool, error)
	CreateJob(ctx context.Context, kind string, target int) (*models.GenerationJob, error)
	FinishJob(ctx context.Context, id, status string, produced int, errText string) error
}

// Generator produces dish candidates and images.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, temperature float64) (*gemini.Response, error)
	GenerateImage(ctx context.Context, dishName string) (*models.DishImage, error)
}

// Options tunes the engine.
type Options struct {
	BatchMax          int // Dishes requested per provider call
	MaxAttempts       int // Provider calls per generation loop
	LowWatermark      int
	RefillBatch       int
	BootstrapMinReady int
	QueueSize         int
	CycleTimeout      time.Duration
	ImagesEnabled     bool
}

// OptionsFromConfig maps configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BatchMax:          cfg.Deck.FillBatchMax,
		MaxAttempts:       cfg.Deck.FillMaxAttempts,
		LowWatermark:      cfg.Refill.LowWatermark,
		RefillBatch:       cfg.Refill.Batch,
		BootstrapMinReady: cfg.Refill.BootstrapMinReady,
		QueueSize:         cfg.Refill.QueueSize,
		CycleTimeout:      cfg.Refill.CycleTimeout,
		ImagesEnabled:     cfg.Gemini.ImageEnabled,
	}
}

func (o *Options) applyDefaults() {
	if o.BatchMax <= 0 {
		o.BatchMax = 8
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.RefillBatch <= 0 {
		o.RefillBatch = 16
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 4
	}
	if o.CycleTimeout <= 0 {
		o.CycleTimeout = 10 * time.Minute
	}
}

// Request asks the worker for one refill cycle.
type Request struct {
	Kind    string
	Profile models.TasteProfile
	Target  int
}

// Engine owns the single-flight guard, the generation loop and the
// refill queue. Create it once and share it.
type Engine struct {
	store  Store
	gen    Generator
	events *events.Publisher
	lease  Lease
	opts   Options

	cycleMu sync.Mutex
	queue   chan Request
	// pending is set while a scheduled request waits for or runs in the
	// worker; watermark and bootstrap checks do not schedule another.
	pending atomic.Bool
	logger  zerolog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithEvents publishes dish.stored and refill.finished through p.
func WithEvents(p *events.Publisher) Option {
	return func(e *Engine) { e.events = p }
}

// WithLease adds a cross-replica lease taken after the local guard.
func WithLease(l Lease) Option {
	return func(e *Engine) { e.lease = l }
}

// NewEngine creates an engine. store and gen are required.
func NewEngine(store Store, gen Generator, opts Options, options ...Option) *Engine {
	opts.applyDefaults()
	e := &Engine{
		store:  store,
		gen:    gen,
		opts:   opts,
		queue:  make(chan Request, opts.QueueSize),
		logger: logging.WithComponent("refill"),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// InFlight reports whether a refill cycle is running in this process.
func (e *Engine) InFlight() bool {
	if e.cycleMu.TryLock() {
		e.cycleMu.Unlock()
		return false
	}
	return true
}

// Generate asks the provider for count new dishes. Batches request at most
// BatchMax dishes and the loop makes at most MaxAttempts calls. Names in
// profile.AvoidNames and extraAvoid, and names accepted earlier in the loop,
// are never returned. Provider and parse errors abort the loop.
func (e *Engine) Generate(ctx context.Context, profile *models.TasteProfile, count int, extraAvoid []string) ([]models.DeckDish, error) {
	used := make(map[string]struct{})
	for _, n := range taste.NormalizeNames(profile.AvoidNames) {
		used[n] = struct{}{}
	}
	for _, n := range taste.NormalizeNames(extraAvoid) {
		used[n] = struct{}{}
	}

	collected := make([]models.DeckDish, 0, count)
	attempts := 0
	for len(collected) < count && attempts < e.opts.MaxAttempts {
		needed := min(count-len(collected), e.opts.BatchMax)
		prompt := taste.BuildDeckPrompt(profile, needed, setKeys(used))

		resp, err := e.gen.GenerateJSON(ctx, prompt, gemini.TemperatureDeck)
		if err != nil {
			return nil, err
		}
		text, err := gemini.ExtractFirstText(resp)
		if err != nil {
			return nil, err
		}
		data, err := gemini.ExtractJSON(text)
		if err != nil {
			return nil, err
		}

		for _, dish := range taste.SanitizeDishes(data["dishes"]) {
			if _, seen := used[dish.Name]; seen {
				continue
			}
			used[dish.Name] = struct{}{}
			collected = append(collected, dish)
			if len(collected) >= count {
				break
			}
		}
		attempts++
	}

	if len(collected) < count {
		return nil, fmt.Errorf("%w after %d attempts: %d < %d", ErrInsufficientDishes, attempts, len(collected), count)
	}
	return collected, nil
}

// GenerateAndStore generates needed dishes, attaches images and stores
// them. Names that already exist are skipped. It returns the number of rows
// created. needed <= 0 is a no-op.
func (e *Engine) GenerateAndStore(ctx context.Context, profile *models.TasteProfile, needed int, extraAvoid []string, path string) (int, error) {
	if needed <= 0 {
		return 0, nil
	}

	dishes, err := e.Generate(ctx, profile, needed, extraAvoid)
	if err != nil {
		return 0, err
	}

	prepared := e.enrich(ctx, dishes)

	names := make([]string, len(prepared))
	for i := range prepared {
		names[i] = prepared[i].Name
	}
	existing, err := e.store.ExistingNames(ctx, names)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range prepared {
		item := &prepared[i]
		if _, ok := existing[item.Name]; ok {
			metrics.DishesSkippedTotal.Inc()
			continue
		}

		dish := &models.Dish{
			Name:     item.Name,
			Subtitle: item.Subtitle,
			Signals:  item.Signals,
			Status:   models.DishStatusReady,
			Source:   models.SourceGemini,
		}
		ok, err := e.store.InsertDishWithImage(ctx, dish, item.Image)
		if err != nil {
			return created, err
		}
		if !ok {
			metrics.DishesSkippedTotal.Inc()
			continue
		}
		existing[item.Name] = struct{}{}
		created++

		if err := e.events.PublishDishStored(ctx, &events.DishStored{
			DishID:   dish.ID,
			Name:     dish.Name,
			HasImage: item.Image != nil,
			Path:     path,
		}); err != nil {
			e.logger.Warn().Err(err).Str("dish", dish.Name).Msg("dish.stored publish failed")
		}
	}

	if path == PathSyncFill && created > 0 {
		metrics.DishesCreatedTotal.WithLabelValues(PathSyncFill).Add(float64(created))
	}
	return created, nil
}

// enrich attaches an image to each dish. Failures keep the dish without one.
func (e *Engine) enrich(ctx context.Context, dishes []models.DeckDish) []models.GeneratedDish {
	out := make([]models.GeneratedDish, len(dishes))
	for i, dish := range dishes {
		out[i].DeckDish = dish
		if !e.opts.ImagesEnabled {
			metrics.DishImagesTotal.WithLabelValues("disabled").Inc()
			continue
		}

		img, err := e.gen.GenerateImage(ctx, dish.Name)
		if err != nil {
			metrics.DishImagesTotal.WithLabelValues("failed").Inc()
			e.logger.Warn().Err(err).Str("dish", dish.Name).Msg("dish image generation failed")
			continue
		}
		metrics.DishImagesTotal.WithLabelValues("stored").Inc()
		out[i].Image = img
		dataURL := img.DataURL
		out[i].ImageDataURL = &dataURL
	}
	return out
}

// RunCycle runs one refill cycle unless one is already in flight, in which
// case it returns false immediately without writing a job. The job is
// finished exactly once with done or failed. The returned error is the
// cycle failure, already recorded on the job.
func (e *Engine) RunCycle(ctx context.Context, req Request) (ran bool, err error) {
	if !e.cycleMu.TryLock() {
		metrics.RecordRefillSkipped("in_flight")
		return false, nil
	}
	defer e.cycleMu.Unlock()

	if e.lease != nil {
		release, acquired, lerr := e.lease.Acquire(ctx)
		switch {
		case lerr != nil:
			e.logger.Warn().Err(lerr).Msg("refill lease unavailable, continuing with local guard only")
		case !acquired:
			metrics.RecordRefillSkipped("lease_held")
			e.logger.Debug().Msg("refill lease held by another replica")
			return false, nil
		default:
			defer release()
		}
	}

	if req.Kind == "" {
		req.Kind = models.JobKindDeckRefill
	}
	if req.Target <= 0 {
		req.Target = e.opts.RefillBatch
	}

	job, err := e.store.CreateJob(ctx, req.Kind, req.Target)
	if err != nil {
		return true, fmt.Errorf("create refill job: %w", err)
	}

	start := time.Now()
	jobCtx := logging.ContextWithJobID(ctx, job.ID)
	log := e.logger.With().Str("job_id", job.ID).Str("kind", req.Kind).Int("target", req.Target).Logger()
	log.Info().Msg("refill cycle started")

	produced := 0
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refill cycle panic: %v", r)
		}
		e.finish(job, req, produced, err, time.Since(start), &log)
	}()

	names, err := e.store.ReadyNames(jobCtx)
	if err != nil {
		return true, fmt.Errorf("load ready names: %w", err)
	}
	produced, err = e.GenerateAndStore(jobCtx, &req.Profile, req.Target, names, PathRefill)
	return true, err
}

// finish records the job outcome. It uses a fresh context so a cancelled
// cycle still closes its job.
func (e *Engine) finish(job *models.GenerationJob, req Request, produced int, cycleErr error, dur time.Duration, log *zerolog.Logger) {
	status, errText := models.JobStatusDone, ""
	if cycleErr != nil {
		status, errText = models.JobStatusFailed, cycleErr.Error()
		log.Error().Err(cycleErr).Int("produced", produced).Msg("deck refill job failed")
	} else {
		log.Info().Int("produced", produced).Dur("duration", dur).Msg("refill cycle finished")
	}
	metrics.RecordRefillCycle(req.Kind, produced, dur, cycleErr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.FinishJob(ctx, job.ID, status, produced, errText); err != nil {
		log.Error().Err(err).Msg("failed to finish refill job")
	}

	if err := e.events.PublishRefillFinished(ctx, &events.RefillFinished{
		JobID:    job.ID,
		Kind:     req.Kind,
		Status:   status,
		Target:   req.Target,
		Produced: produced,
		Error:    errText,
	}); err != nil {
		log.Warn().Err(err).Msg("refill.finished publish failed")
	}
}

func setKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
