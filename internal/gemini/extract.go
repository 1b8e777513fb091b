// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package gemini

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(\\{.*\\})\\s*```")

// ExtractFirstText returns the first non-empty text part of the first candidate.
func ExtractFirstText(resp *Response) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrNoCandidates
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			return part.Text, nil
		}
	}
	return "", ErrNoTextPart
}

// ExtractJSON pulls a JSON object out of model text. It tries a ```json
// fenced block, then the span from the first '{' to the last '}', then the
// raw text. The first strategy that matches decides the result.
func ExtractJSON(raw string) (map[string]any, error) {
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		return decodeObject(m[1])
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return decodeObject(raw[start : end+1])
	}

	return decodeObject(raw)
}

func decodeObject(s string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON in model output: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("model output is JSON %T, not an object", v)
	}
	return obj, nil
}

// ExtractFirstInlineImage scans every candidate and part for inline data
// and returns its mime type and base64 payload.
func ExtractFirstInlineImage(resp *Response) (mimeType, data string, err error) {
	if resp == nil {
		return "", "", ErrNoInlineImage
	}
	for _, cand := range resp.Candidates {
		for i := range cand.Content.Parts {
			inline := cand.Content.Parts[i].Inline()
			if inline == nil || inline.Data == "" {
				continue
			}
			return inline.Mime(), inline.Data, nil
		}
	}
	return "", "", ErrNoInlineImage
}
