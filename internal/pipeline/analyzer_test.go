package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edanos/mealscan/internal/config"
	"github.com/edanos/mealscan/internal/health"
	"github.com/edanos/mealscan/internal/nutrition"
	"github.com/edanos/mealscan/internal/progress"
	"github.com/edanos/mealscan/pkg/anthropic"
)

const mealJSON = "```json\n" + `{
  "image_classification": "food",
  "dish_name": "Chicken Salad",
  "confidence": 0.92,
  "highly_processed": false,
  "ingredients": [
    {"name": "chicken breast", "quantity": 120, "unit": "g", "calories": 198, "protein": 37.2, "carbs": 0, "fat": 4.3, "saturated_fat": 1.2, "fiber": 0, "sugar": 0, "sodium": 89},
    {"name": "lettuce", "quantity": 50, "unit": "g", "calories": 8, "protein": 0.6, "carbs": 1.5, "fat": 0.1, "saturated_fat": 0, "fiber": 0.7, "sugar": 0.4, "sodium": 14}
  ]
}` + "\n```"

const rejectedJSON = "```json\n" + `{"image_classification": "no_food_no_label"}` + "\n```"

func testConfig() *config.Config {
	return &config.Config{
		Anthropic: config.AnthropicConfig{
			EssentialModel:     "claude-haiku-4-5-20251001",
			ComprehensiveModel: "claude-sonnet-4-5-20250929",
			LookupModel:        "claude-sonnet-4-5-20250929",
			RequestsPerMinute:  6000,
			MaxTokens:          4096,
			WebSearchUses:      3,
		},
		Analysis: config.AnalysisConfig{
			Tier:        "essential",
			MaxRetries:  1,
			MaxImageDim: 1568,
			JPEGQuality: 85,
		},
	}
}

func TestAnalyzeDescription_FullFlow(t *testing.T) {
	client := &fakeClient{responses: []*anthropic.MessageResponse{textResponse(mealJSON)}}
	st := newMemStore()
	a := NewAnalyzer(testConfig(), client, st, nil, nil)

	loggedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m, err := a.AnalyzeDescription(context.Background(), "grilled chicken with lettuce", loggedAt)
	require.NoError(t, err)

	assert.Equal(t, "Chicken Salad", m.Name)
	assert.Equal(t, nutrition.ClassificationFood, m.Classification)
	require.Len(t, m.Ingredients, 2)
	assert.Equal(t, "chicken breast", m.Ingredients[0].Name)

	totals := m.Totals()
	assert.InDelta(t, 206, totals[nutrition.FieldCalories], 0.001)

	// Persisted and day marked active.
	assert.Len(t, st.meals, 1)
	assert.True(t, st.cycle.ActiveDays[progress.DayKey(loggedAt)])
	assert.Equal(t, "2026-03-10", st.cycle.StartDate)
}

func TestAnalyzeDescription_Rejected(t *testing.T) {
	client := &fakeClient{responses: []*anthropic.MessageResponse{textResponse(rejectedJSON)}}
	st := newMemStore()
	a := NewAnalyzer(testConfig(), client, st, nil, nil)

	_, err := a.AnalyzeDescription(context.Background(), "a photo of my desk", time.Now())
	require.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, st.meals)
	assert.Empty(t, st.cycle.ActiveDays)

	// The rejection carries the full result with the original input.
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, nutrition.ClassificationNoFood, rej.Result.Classification)
	assert.Equal(t, []byte("a photo of my desk"), rej.Result.RejectedInput)
}

func TestAnalyzeImage_RejectedRetainsCapture(t *testing.T) {
	client := &fakeClient{responses: []*anthropic.MessageResponse{textResponse(rejectedJSON)}}
	st := newMemStore()
	a := NewAnalyzer(testConfig(), client, st, nil, nil)

	capture := tinyJPEG(t)
	_, err := a.AnalyzeImage(context.Background(), capture, time.Now())
	require.ErrorIs(t, err, ErrRejected)

	// The original capture bytes, not the model text, travel on the result.
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, capture, rej.Result.RejectedInput)
	assert.Empty(t, st.meals)
}

func TestAnalyzeDescription_RetriesTransientError(t *testing.T) {
	client := &fakeClient{
		errs:      []error{eris.New("api error 529: overloaded_error"), nil},
		responses: []*anthropic.MessageResponse{nil, textResponse(mealJSON)},
	}
	st := newMemStore()
	a := NewAnalyzer(testConfig(), client, st, nil, nil)

	m, err := a.AnalyzeDescription(context.Background(), "chicken salad", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Chicken Salad", m.Name)
	assert.Len(t, client.requests, 2)
}

func TestAnalyzeDescription_UnparsableResponse(t *testing.T) {
	client := &fakeClient{responses: []*anthropic.MessageResponse{textResponse("I couldn't analyze that, sorry!")}}
	a := NewAnalyzer(testConfig(), client, newMemStore(), nil, nil)

	_, err := a.AnalyzeDescription(context.Background(), "mystery", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "normalize response")
}

func TestAnalyzeImage_UploadsAndAttachesURL(t *testing.T) {
	client := &fakeClient{responses: []*anthropic.MessageResponse{textResponse(mealJSON)}}
	st := newMemStore()
	blob := &memBlob{}
	a := NewAnalyzer(testConfig(), client, st, blob, nil)

	m, err := a.AnalyzeImage(context.Background(), tinyJPEG(t), time.Now())
	require.NoError(t, err)

	require.Len(t, blob.keys, 1)
	assert.Equal(t, "blob://"+blob.keys[0], m.ImageURL)

	// The request carried an image part followed by the prompt.
	require.Len(t, client.requests, 1)
	parts := client.requests[0].Messages[0].Parts
	require.Len(t, parts, 2)
	assert.NotEmpty(t, parts[0].ImageData)
	assert.Equal(t, "image/jpeg", parts[0].MediaType)
	assert.NotEmpty(t, parts[1].Text)
}

func TestAnalyzeImage_BadImage(t *testing.T) {
	a := NewAnalyzer(testConfig(), &fakeClient{}, newMemStore(), nil, nil)

	_, err := a.AnalyzeImage(context.Background(), []byte("not an image"), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode image")
}

func TestLookup_EnablesWebSearch(t *testing.T) {
	client := &fakeClient{responses: []*anthropic.MessageResponse{textResponse(mealJSON)}}
	st := newMemStore()
	a := NewAnalyzer(testConfig(), client, st, nil, nil)

	_, err := a.Lookup(context.Background(), "Clif Bar chocolate chip", time.Now())
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	assert.Equal(t, int64(3), client.requests[0].WebSearchUses)
	assert.Equal(t, "claude-sonnet-4-5-20250929", client.requests[0].Model)
}

func TestAnalyze_HealthFanOut(t *testing.T) {
	client := &fakeClient{responses: []*anthropic.MessageResponse{textResponse(mealJSON)}}
	st := newMemStore()
	sink := &recordingSink{}
	a := NewAnalyzer(testConfig(), client, st, nil, []health.Sink{sink})

	m, err := a.AnalyzeDescription(context.Background(), "chicken salad", time.Now())
	require.NoError(t, err)

	// One sample per present total field.
	assert.Len(t, sink.samples, len(m.Totals()))
	for _, s := range sink.samples {
		assert.Equal(t, m.ID, s.MealID)
	}
}

func TestRecalculate(t *testing.T) {
	client := &fakeClient{responses: []*anthropic.MessageResponse{textResponse(mealJSON)}}
	st := newMemStore()
	a := NewAnalyzer(testConfig(), client, st, nil, nil)

	m, err := a.AnalyzeDescription(context.Background(), "chicken salad", time.Now())
	require.NoError(t, err)

	ing := m.Ingredients[0]
	updated, err := a.Recalculate(context.Background(), m.ID, ing.ID, 240)
	require.NoError(t, err)

	got := updated.Ingredient(ing.ID)
	assert.InDelta(t, 240, got.Amount, 0.001)
	assert.InDelta(t, 396, got.Current()[nutrition.FieldCalories], 0.001)

	_, err = a.Recalculate(context.Background(), m.ID, "missing-id", 50)
	require.Error(t, err)
}

func TestTier_Selection(t *testing.T) {
	cfg := testConfig()
	a := NewAnalyzer(cfg, &fakeClient{}, newMemStore(), nil, nil)
	assert.Equal(t, nutrition.TierEssential, a.Tier())
	assert.Equal(t, cfg.Anthropic.EssentialModel, a.tierModel())

	cfg.Analysis.Tier = "comprehensive"
	assert.Equal(t, nutrition.TierComprehensive, a.Tier())
	assert.Equal(t, cfg.Anthropic.ComprehensiveModel, a.tierModel())
}
