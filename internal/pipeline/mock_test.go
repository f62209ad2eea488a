package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/edanos/mealscan/internal/health"
	"github.com/edanos/mealscan/internal/meal"
	"github.com/edanos/mealscan/internal/progress"
	"github.com/edanos/mealscan/internal/store"
	"github.com/edanos/mealscan/pkg/anthropic"
)

// fakeClient returns canned responses in order and records requests.
type fakeClient struct {
	mu        sync.Mutex
	responses []*anthropic.MessageResponse
	errs      []error
	requests  []anthropic.MessageRequest
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	idx := len(f.requests) - 1
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return nil, eris.New("fakeClient: no response configured")
}

// memStore is an in-memory store.Store for pipeline tests.
type memStore struct {
	mu          sync.Mutex
	meals       map[string]*meal.Meal
	cycle       *progress.Cycle
	evaluations []*progress.Evaluation
	saveErr     error
}

func newMemStore() *memStore {
	return &memStore{meals: map[string]*meal.Meal{}, cycle: &progress.Cycle{}}
}

func (s *memStore) SaveMeal(_ context.Context, m *meal.Meal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.meals[m.ID] = m
	return nil
}

func (s *memStore) GetMeal(_ context.Context, id string) (*meal.Meal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meals[id]
	if !ok {
		return nil, eris.Errorf("meal not found: %s", id)
	}
	return m, nil
}

func (s *memStore) ListMeals(_ context.Context, filter store.MealFilter) ([]*meal.Meal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*meal.Meal
	for _, m := range s.meals {
		if !filter.From.IsZero() && m.LoggedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !m.LoggedAt.Before(filter.To) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoggedAt.After(out[j].LoggedAt) })

	// Mirror the backends: newest first, default limit, then offset/limit.
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) DeleteMeal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meals[id]; !ok {
		return eris.Errorf("meal not found: %s", id)
	}
	delete(s.meals, id)
	return nil
}

func (s *memStore) UpdateMealIngredients(_ context.Context, m *meal.Meal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meals[m.ID]; !ok {
		return eris.Errorf("meal not found: %s", m.ID)
	}
	s.meals[m.ID] = m
	return nil
}

func (s *memStore) GetCycle(_ context.Context, _ string) (*progress.Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle, nil
}

func (s *memStore) SaveCycle(_ context.Context, _ string, c *progress.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycle = c
	return nil
}

func (s *memStore) AppendEvaluation(_ context.Context, _ string, ev *progress.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluations = append(s.evaluations, ev)
	return nil
}

func (s *memStore) Migrate(context.Context) error { return nil }
func (s *memStore) Close() error                  { return nil }

// memBlob records puts and returns a deterministic URL.
type memBlob struct {
	mu   sync.Mutex
	keys []string
}

func (b *memBlob) Put(_ context.Context, key string, _ []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, key)
	return "blob://" + key, nil
}

// recordingSink captures health samples.
type recordingSink struct {
	mu      sync.Mutex
	samples []health.Sample
	err     error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Write(_ context.Context, sample health.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.samples = append(s.samples, sample)
	return nil
}

var _ store.Store = (*memStore)(nil)
var _ anthropic.Client = (*fakeClient)(nil)
