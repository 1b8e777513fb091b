// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package refill

import (
	"context"

	"github.com/tomtom215/tastedeck/internal/metrics"
	"github.com/tomtom215/tastedeck/internal/models"
)

// Enqueue hands req to the worker. It never blocks; a full queue drops the
// request and returns false.
func (e *Engine) Enqueue(req Request) bool {
	select {
	case e.queue <- req:
		metrics.RefillQueueDepth.Set(float64(len(e.queue)))
		return true
	default:
		metrics.RecordRefillSkipped("queue_full")
		e.logger.Debug().Str("kind", req.Kind).Msg("refill queue full, dropping request")
		return false
	}
}

// Queue exposes the receive side for the worker.
func (e *Engine) Queue() <-chan Request {
	return e.queue
}

// Pending reports whether a scheduled refill has not finished yet.
func (e *Engine) Pending() bool {
	return e.pending.Load()
}

// schedule enqueues req unless another scheduled request is still pending.
func (e *Engine) schedule(req Request) bool {
	if !e.pending.CompareAndSwap(false, true) {
		metrics.RecordRefillSkipped("pending")
		return false
	}
	if !e.Enqueue(req) {
		e.pending.Store(false)
		return false
	}
	return true
}

// settle clears the pending mark once the worker is done with a request.
func (e *Engine) settle() {
	e.pending.Store(false)
}

// CheckWatermark schedules a refill of RefillBatch dishes when the ready
// count is below LowWatermark. It returns at once while a cycle is in
// flight or already scheduled, and reports whether a request was queued.
func (e *Engine) CheckWatermark(ctx context.Context, profile *models.TasteProfile) (bool, error) {
	if e.InFlight() || e.Pending() {
		return false, nil
	}

	ready, err := e.store.CountReady(ctx)
	if err != nil {
		return false, err
	}
	metrics.SetReadyDishes(ready)
	if ready >= e.opts.LowWatermark {
		return false, nil
	}

	req := Request{Kind: models.JobKindDeckRefill, Target: e.opts.RefillBatch}
	if profile != nil {
		req.Profile = *profile
	}
	if !e.schedule(req) {
		return false, nil
	}

	e.logger.Info().
		Int("ready", ready).
		Int("threshold", e.opts.LowWatermark).
		Int("refill", e.opts.RefillBatch).
		Msg("inventory low, scheduling refill")
	return true, nil
}

// Bootstrap schedules one bootstrap_refill cycle of max(6, RefillBatch)
// when fewer than BootstrapMinReady dishes are ready.
func (e *Engine) Bootstrap(ctx context.Context) (bool, error) {
	if e.InFlight() || e.Pending() {
		return false, nil
	}

	ready, err := e.store.CountReady(ctx)
	if err != nil {
		return false, err
	}
	metrics.SetReadyDishes(ready)
	if ready >= e.opts.BootstrapMinReady {
		return false, nil
	}

	if !e.schedule(Request{
		Kind:   models.JobKindBootstrapRefill,
		Target: max(6, e.opts.RefillBatch),
	}) {
		return false, nil
	}
	e.logger.Info().Int("ready", ready).Int("min", e.opts.BootstrapMinReady).Msg("bootstrap refill scheduled")
	return true, nil
}

// StillNeeded re-reads the ready count for a dequeued watermark or
// bootstrap request. Inventory may have been topped up since the request was
// scheduled. Other kinds always run.
func (e *Engine) StillNeeded(ctx context.Context, req Request) (bool, error) {
	var threshold int
	switch req.Kind {
	case models.JobKindDeckRefill:
		threshold = e.opts.LowWatermark
	case models.JobKindBootstrapRefill:
		threshold = e.opts.BootstrapMinReady
	default:
		return true, nil
	}

	ready, err := e.store.CountReady(ctx)
	if err != nil {
		return true, err
	}
	metrics.SetReadyDishes(ready)
	return ready < threshold, nil
}
