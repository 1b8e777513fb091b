// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package gemini

// Request is a generateContent request body.
type Request struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

// GenerationConfig controls sampling and the response shape.
type GenerationConfig struct {
	Temperature        float64  `json:"temperature"`
	ResponseMimeType   string   `json:"responseMimeType,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

// Content is one conversational turn.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a text or inline-data fragment. The API has used both camelCase
// and snake_case for inline data, so both are decoded; use Inline.
type Part struct {
	Text            string      `json:"text,omitempty"`
	InlineData      *InlineData `json:"inlineData,omitempty"`
	InlineDataSnake *InlineData `json:"inline_data,omitempty"`
}

// Inline returns the part's inline data under either spelling, or nil.
func (p *Part) Inline() *InlineData {
	if p.InlineData != nil {
		return p.InlineData
	}
	return p.InlineDataSnake
}

// InlineData is a base64 payload with its mime type.
type InlineData struct {
	MimeType      string `json:"mimeType,omitempty"`
	MimeTypeSnake string `json:"mime_type,omitempty"`
	Data          string `json:"data"`
}

// Mime returns the mime type under either spelling, defaulting to image/png.
func (d *InlineData) Mime() string {
	switch {
	case d.MimeType != "":
		return d.MimeType
	case d.MimeTypeSnake != "":
		return d.MimeTypeSnake
	default:
		return "image/png"
	}
}

// Response is the subset of a generateContent response the service reads.
type Response struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is one generated answer.
type Candidate struct {
	Content Content `json:"content"`
}

func userText(prompt string) []Content {
	return []Content{{Role: "user", Parts: []Part{{Text: prompt}}}}
}
