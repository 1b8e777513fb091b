// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package refill

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/tastedeck/internal/database"
	"github.com/tomtom215/tastedeck/internal/gemini"
	"github.com/tomtom215/tastedeck/internal/models"
)

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu       sync.Mutex
	dishes   map[string]*models.Dish
	images   map[string]*models.DishImage
	jobs     []*models.GenerationJob
	countErr error
}

func newFakeStore(existing ...string) *fakeStore {
	s := &fakeStore{
		dishes: make(map[string]*models.Dish),
		images: make(map[string]*models.DishImage),
	}
	for _, name := range existing {
		s.dishes[name] = &models.Dish{ID: uuid.New().String(), Name: name, Status: models.DishStatusReady}
	}
	return s
}

func (s *fakeStore) CountReady(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	return len(s.dishes), nil
}

func (s *fakeStore) ReadyNames(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.dishes))
	for n := range s.dishes {
		names = append(names, n)
	}
	return names, nil
}

func (s *fakeStore) ExistingNames(_ context.Context, names []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{})
	for _, n := range names {
		if _, ok := s.dishes[n]; ok {
			out[n] = struct{}{}
		}
	}
	return out, nil
}

func (s *fakeStore) InsertDishWithImage(_ context.Context, dish *models.Dish, image *models.DishImage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dishes[dish.Name]; ok {
		return false, nil
	}
	dish.ID = uuid.New().String()
	if image != nil {
		image.ID = uuid.New().String()
		s.images[image.ID] = image
		id := image.ID
		dish.ImageID = &id
	}
	s.dishes[dish.Name] = dish
	return true, nil
}

func (s *fakeStore) CreateJob(_ context.Context, kind string, target int) (*models.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := &models.GenerationJob{
		ID:          uuid.New().String(),
		Kind:        kind,
		Status:      models.JobStatusRunning,
		TargetCount: target,
		CreatedAt:   time.Now(),
		StartedAt:   time.Now(),
	}
	s.jobs = append(s.jobs, job)
	return job, nil
}

func (s *fakeStore) FinishJob(_ context.Context, id, status string, produced int, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID != id {
			continue
		}
		if j.Status != models.JobStatusRunning {
			return database.ErrJobNotRunning
		}
		now := time.Now()
		j.Status, j.ProducedCount, j.Error, j.FinishedAt = status, produced, errText, &now
		return nil
	}
	return database.ErrJobNotRunning
}

func (s *fakeStore) jobSnapshot() []models.GenerationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.GenerationJob, len(s.jobs))
	for i, j := range s.jobs {
		out[i] = *j
	}
	return out
}

func (s *fakeStore) dish(name string) (*models.Dish, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dishes[name]
	return d, ok
}

// fakeGenerator answers GenerateJSON with respond(call) and images with a
// fixed result.
type fakeGenerator struct {
	mu         sync.Mutex
	calls      int
	imageCalls int
	prompts    []string

	respond  func(call int) ([]string, error)
	imageErr error

	// When set, the first GenerateJSON call signals entered and waits for
	// release.
	entered chan struct{}
	release chan struct{}
}

func (g *fakeGenerator) GenerateJSON(ctx context.Context, prompt string, _ float64) (*gemini.Response, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if call == 1 && g.entered != nil {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	names, err := g.respond(call)
	if err != nil {
		return nil, err
	}
	return dishResponse(names...), nil
}

func (g *fakeGenerator) GenerateImage(_ context.Context, dishName string) (*models.DishImage, error) {
	g.mu.Lock()
	g.imageCalls++
	g.mu.Unlock()
	if g.imageErr != nil {
		return nil, g.imageErr
	}
	return &models.DishImage{
		Provider: models.SourceGemini,
		Model:    "image-model",
		Prompt:   dishName,
		MimeType: "image/png",
		DataURL:  "data:image/png;base64,AAAA",
	}, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// fixedNames returns the same names on every call.
func fixedNames(names ...string) func(int) ([]string, error) {
	return func(int) ([]string, error) { return names, nil }
}

// freshNames returns n names unique to each call.
func freshNames(n int) func(int) ([]string, error) {
	return func(call int) ([]string, error) {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("菜%d-%d", call, i)
		}
		return out, nil
	}
}

func dishResponse(names ...string) *gemini.Response {
	items := make([]map[string]any, 0, len(names))
	for _, n := range names {
		items = append(items, map[string]any{
			"name":     n,
			"subtitle": "测试菜",
			"signals":  map[string]float64{"spicy": 0.8, "umami": 0.5, "unknownKey": 0.9},
		})
	}
	raw, _ := json.Marshal(map[string]any{"dishes": items})
	return &gemini.Response{Candidates: []gemini.Candidate{{
		Content: gemini.Content{Parts: []gemini.Part{{Text: "```json\n" + string(raw) + "\n```"}}},
	}}}
}

func testOptions() Options {
	return Options{
		BatchMax:          8,
		MaxAttempts:       5,
		LowWatermark:      50,
		RefillBatch:       16,
		BootstrapMinReady: 8,
		QueueSize:         2,
		CycleTimeout:      time.Minute,
		ImagesEnabled:     true,
	}
}

// fakeLease is a Lease with a fixed answer.
type fakeLease struct {
	mu       sync.Mutex
	acquired bool
	err      error
	releases int
}

func (l *fakeLease) Acquire(context.Context) (func(), bool, error) {
	if l.err != nil || !l.acquired {
		return nil, false, l.err
	}
	return func() {
		l.mu.Lock()
		l.releases++
		l.mu.Unlock()
	}, true, nil
}
