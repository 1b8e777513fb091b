// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package events

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// SchemaVersion is the current event schema version.
const SchemaVersion = 1

// Topic suffixes. The configured prefix is prepended with a dot.
const (
	TopicDishStored     = "dish.stored"
	TopicRefillFinished = "refill.finished"
)

// DishStored is emitted after a generated dish is committed.
type DishStored struct {
	SchemaVersion int       `json:"schema_version"`
	EventID       string    `json:"event_id"`
	DishID        string    `json:"dish_id"`
	Name          string    `json:"name"`
	HasImage      bool      `json:"has_image"`
	Path          string    `json:"path"` // sync_fill or refill
	StoredAt      time.Time `json:"stored_at"`
}

// RefillFinished is emitted when a refill job reaches done or failed.
type RefillFinished struct {
	SchemaVersion int       `json:"schema_version"`
	EventID       string    `json:"event_id"`
	JobID         string    `json:"job_id"`
	Kind          string    `json:"kind"`
	Status        string    `json:"status"`
	Target        int       `json:"target"`
	Produced      int       `json:"produced"`
	Error         string    `json:"error,omitempty"`
	FinishedAt    time.Time `json:"finished_at"`
}

func (e *DishStored) prepare() {
	e.SchemaVersion = SchemaVersion
	if e.EventID == "" {
		e.EventID = uuid.New().String()
	}
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now().UTC()
	}
}

func (e *RefillFinished) prepare() {
	e.SchemaVersion = SchemaVersion
	if e.EventID == "" {
		e.EventID = uuid.New().String()
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now().UTC()
	}
}

// DecodeDishStored parses a dish.stored payload.
func DecodeDishStored(data []byte) (*DishStored, error) {
	var e DishStored
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// DecodeRefillFinished parses a refill.finished payload.
func DecodeRefillFinished(data []byte) (*RefillFinished, error) {
	var e RefillFinished
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
