// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package deck

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/tastedeck/internal/cache"
	"github.com/tomtom215/tastedeck/internal/gemini"
	"github.com/tomtom215/tastedeck/internal/metrics"
	"github.com/tomtom215/tastedeck/internal/models"
	"github.com/tomtom215/tastedeck/internal/taste"
)

// Field caps, in runes, and the text used when the provider leaves a field
// blank.
const (
	summaryMax  = 140
	avoidMax    = 120
	strategyMax = 120

	fallbackSummary  = "Gemini 暂未返回总结。"
	fallbackAvoid    = "Gemini 暂未返回避雷建议。"
	fallbackStrategy = "Gemini 暂未返回点菜策略。"
)

// Analyze summarizes the swipe history. Every failure, including an
// unconfigured provider, is an ErrUpstream.
func (s *Service) Analyze(ctx context.Context, req *models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	key := cache.GenerateKey("analyze", req)
	v, hit := s.analyze.Get(key)
	s.observeAnalyzeCache(hit)
	if hit {
		cached := *v.(*models.AnalyzeResponse)
		return &cached, nil
	}

	resp, err := s.gen.GenerateJSON(ctx, taste.BuildAnalyzePrompt(req), gemini.TemperatureAnalyze)
	if err != nil {
		return nil, upstreamError("Gemini analysis failed", err)
	}
	text, err := gemini.ExtractFirstText(resp)
	if err != nil {
		return nil, upstreamError("Gemini analysis failed", err)
	}
	data, err := gemini.ExtractJSON(text)
	if err != nil {
		return nil, upstreamError("Gemini analysis failed", err)
	}

	out := &models.AnalyzeResponse{
		Summary:  field(data, "summary", summaryMax, fallbackSummary),
		Avoid:    field(data, "avoid", avoidMax, fallbackAvoid),
		Strategy: field(data, "strategy", strategyMax, fallbackStrategy),
		Source:   models.SourceGemini,
	}

	stored := *out
	s.analyze.Set(key, &stored)
	if s.analyze != nil {
		metrics.AnalyzeCacheEntries.Set(float64(s.analyze.Len()))
	}
	return out, nil
}

// observeAnalyzeCache exports the lookup when caching is enabled.
func (s *Service) observeAnalyzeCache(hit bool) {
	if s.analyze == nil {
		return
	}
	metrics.RecordAnalyzeCache(hit, s.analyze.Len(), s.analyze.HitRate())
}

// field trims and caps data[key], falling back when the result is empty.
func field(data map[string]any, key string, limit int, fallback string) string {
	var s string
	switch v := data[key].(type) {
	case nil:
	case string:
		s = v
	default:
		s = fmt.Sprint(v)
	}
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > limit {
		s = string(r[:limit])
	}
	if s == "" {
		return fallback
	}
	return s
}
