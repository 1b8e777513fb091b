// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package refill

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tastedeck/internal/metrics"
)

// Worker drains the engine queue one cycle at a time. It implements
// suture.Service. A failing or panicking cycle is logged and the worker
// keeps going.
type Worker struct {
	engine *Engine
	logger zerolog.Logger
	name   string
}

// NewWorker creates the queue worker.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewWorker(engine *Engine, logger zerolog.Logger) *Worker {
	return &Worker{
		engine: engine,
		logger: logger.With().Str("service", "refill-worker").Logger(),
		name:   "refill-worker",
	}
}

// Serve implements suture.Service.
func (w *Worker) Serve(ctx context.Context) error {
	w.logger.Info().Int("queue_size", cap(w.engine.queue)).Msg("refill worker running")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("refill worker shutting down")
			return ctx.Err()

		case req := <-w.engine.Queue():
			metrics.RefillQueueDepth.Set(float64(len(w.engine.queue)))
			w.runOne(ctx, req)
		}
	}
}

// runOne runs a cycle under a context detached from the request that
// triggered it, bounded by CycleTimeout and cancelled on shutdown. The
// pending mark is cleared only after the cycle, so no second request is
// scheduled between dequeue and the cycle taking its guard.
func (w *Worker) runOne(ctx context.Context, req Request) {
	defer w.engine.settle()

	cycleCtx, cancel := context.WithTimeout(ctx, w.engine.opts.CycleTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().
				Str("panic", fmt.Sprint(r)).
				Str("stack", string(debug.Stack())).
				Str("kind", req.Kind).
				Msg("refill cycle panicked")
		}
	}()

	needed, err := w.engine.StillNeeded(cycleCtx, req)
	if err != nil {
		w.logger.Warn().Err(err).Str("kind", req.Kind).Msg("ready count unavailable, running refill anyway")
	} else if !needed {
		metrics.RecordRefillSkipped("above_threshold")
		w.logger.Debug().Str("kind", req.Kind).Msg("inventory recovered since scheduling, refill skipped")
		return
	}

	ran, err := w.engine.RunCycle(cycleCtx, req)
	switch {
	case !ran:
		w.logger.Debug().Str("kind", req.Kind).Msg("refill skipped, cycle already running")
	case err != nil:
		w.logger.Warn().Err(err).Str("kind", req.Kind).Msg("refill cycle failed")
	}
}

// String returns the service name for logging.
func (w *Worker) String() string {
	return w.name
}

// Ticker checks the watermark on a fixed interval so the inventory refills
// without traffic. It implements suture.Service.
type Ticker struct {
	engine   *Engine
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewTicker creates a periodic watermark check.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewTicker(engine *Engine, interval time.Duration, logger zerolog.Logger) *Ticker {
	return &Ticker{
		engine:   engine,
		interval: interval,
		logger:   logger.With().Str("service", "refill-ticker").Logger(),
		name:     "refill-ticker",
	}
}

// Serve implements suture.Service.
func (t *Ticker) Serve(ctx context.Context) error {
	if t.interval <= 0 {
		t.interval = 5 * time.Minute
	}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info().Dur("interval", t.interval).Msg("refill ticker running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if _, err := t.engine.CheckWatermark(checkCtx, nil); err != nil {
				t.logger.Warn().Err(err).Msg("scheduled watermark check failed")
			}
			cancel()
		}
	}
}

// String returns the service name for logging.
func (t *Ticker) String() string {
	return t.name
}
