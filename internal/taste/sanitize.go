// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package taste

import (
	"math"
	"strings"

	"github.com/tomtom215/tastedeck/internal/models"
)

// Signal bounds shared by the sanitizer and the deck read path.
const (
	MinSignal = 0.2
	MaxSignal = 1.0

	// MinSignalsPerDish is the smallest signal set a dish may keep.
	MinSignalsPerDish = 2

	// DefaultSubtitle replaces a blank subtitle.
	DefaultSubtitle = "口味特征生成"
)

// SanitizeDishes turns an untyped decoded JSON value into well-formed
// dishes. It never fails: anything malformed is skipped. Names are
// deduplicated within the call and the first occurrence wins.
func SanitizeDishes(raw any) []models.DeckDish {
	items, ok := raw.([]any)
	if !ok {
		return []models.DeckDish{}
	}

	cleaned := make([]models.DeckDish, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := strings.TrimSpace(stringField(obj, "name"))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		signalMap, ok := obj["signals"].(map[string]any)
		if !ok {
			continue
		}

		signals := make(map[string]float64, len(signalMap))
		for key, value := range signalMap {
			if !IsFeature(key) {
				continue
			}
			f, ok := value.(float64)
			if !ok || math.IsNaN(f) {
				continue
			}
			score := math.Abs(clamp(f, -1, 1))
			if score < MinSignal {
				continue
			}
			signals[key] = Round3(score)
		}
		if len(signals) < MinSignalsPerDish {
			continue
		}

		subtitle := strings.TrimSpace(stringField(obj, "subtitle"))
		if subtitle == "" {
			subtitle = DefaultSubtitle
		}

		seen[name] = struct{}{}
		cleaned = append(cleaned, models.DeckDish{
			Name:     name,
			Subtitle: subtitle,
			Signals:  signals,
		})
	}

	return cleaned
}

// NormalizeStoredSignals re-clamps persisted signals into [MinSignal,
// MaxSignal] before they are served. Unknown keys are dropped.
func NormalizeStoredSignals(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for key, value := range in {
		if !IsFeature(key) || math.IsNaN(value) {
			continue
		}
		out[key] = Round3(clamp(value, MinSignal, MaxSignal))
	}
	return out
}

// Round3 rounds to three decimal places.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
