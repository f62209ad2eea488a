package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edanos/mealscan/internal/meal"
	"github.com/edanos/mealscan/internal/nutrition"
	"github.com/edanos/mealscan/internal/progress"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testSQLiteMeal(id string, loggedAt time.Time) *meal.Meal {
	ing := meal.NewIngredient(nutrition.ResolvedIngredient{
		Name:   "oatmeal",
		Amount: 80,
		Unit:   "g",
		Nutrients: nutrition.Vector{
			nutrition.FieldCalories: 303,
			nutrition.FieldProtein:  10.6,
			nutrition.FieldFiber:    8.5,
		},
	})
	return &meal.Meal{
		ID:             id,
		Name:           "morning oats",
		LoggedAt:       loggedAt,
		Classification: nutrition.ClassificationFood,
		Confidence:     0.85,
		Ingredients:    []*meal.Ingredient{ing},
	}
}

func TestSQLite_Meal_SaveAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	m := testSQLiteMeal("m1", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	require.NoError(t, st.SaveMeal(ctx, m))

	got, err := st.GetMeal(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "morning oats", got.Name)
	assert.Equal(t, nutrition.ClassificationFood, got.Classification)
	assert.InDelta(t, 0.85, got.Confidence, 0.001)
	require.Len(t, got.Ingredients, 1)
	assert.Equal(t, "oatmeal", got.Ingredients[0].Name)
	assert.InDelta(t, 80, got.Ingredients[0].OriginalAmount, 0.001)
	assert.InDelta(t, 303, got.Ingredients[0].Original[nutrition.FieldCalories], 0.001)
}

func TestSQLite_Meal_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetMeal(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_Meal_UpsertOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	loggedAt := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	m := testSQLiteMeal("m1", loggedAt)
	require.NoError(t, st.SaveMeal(ctx, m))

	m.Name = "evening oats"
	m.LoggedAt = loggedAt.Add(11 * time.Hour)
	m.Classification = nutrition.ClassificationNutritionLabel
	m.Confidence = 0.6
	m.Processed = true
	require.NoError(t, st.SaveMeal(ctx, m))

	got, err := st.GetMeal(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "evening oats", got.Name)
	assert.True(t, got.LoggedAt.Equal(loggedAt.Add(11*time.Hour)))
	assert.Equal(t, nutrition.ClassificationNutritionLabel, got.Classification)
	assert.InDelta(t, 0.6, got.Confidence, 0.001)
	assert.True(t, got.Processed)
}

func TestSQLite_Meal_ListByDateRange(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveMeal(ctx, testSQLiteMeal("m1", day.Add(8*time.Hour))))
	require.NoError(t, st.SaveMeal(ctx, testSQLiteMeal("m2", day.Add(13*time.Hour))))
	require.NoError(t, st.SaveMeal(ctx, testSQLiteMeal("m3", day.Add(36*time.Hour))))

	meals, err := st.ListMeals(ctx, MealFilter{From: day, To: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, meals, 2)
	// Newest first.
	assert.Equal(t, "m2", meals[0].ID)
	assert.Equal(t, "m1", meals[1].ID)
}

func TestSQLite_Meal_Delete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveMeal(ctx, testSQLiteMeal("m1", time.Now().UTC())))
	require.NoError(t, st.DeleteMeal(ctx, "m1"))

	_, err := st.GetMeal(ctx, "m1")
	require.Error(t, err)

	err = st.DeleteMeal(ctx, "m1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_Meal_UpdateIngredientsPersistsScaling(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	m := testSQLiteMeal("m1", time.Now().UTC())
	require.NoError(t, st.SaveMeal(ctx, m))

	m.Ingredients[0].SetAmount(160)
	require.NoError(t, st.UpdateMealIngredients(ctx, m))

	got, err := st.GetMeal(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, got.Ingredients, 1)
	assert.InDelta(t, 160, got.Ingredients[0].Amount, 0.001)
	assert.InDelta(t, 80, got.Ingredients[0].OriginalAmount, 0.001)
	// Scaled values derive from the untouched original vector.
	cals, ok := got.Ingredients[0].Current()[nutrition.FieldCalories]
	require.True(t, ok)
	assert.InDelta(t, 606, cals, 0.001)
}

func TestSQLite_Cycle_EmptyWhenUnset(t *testing.T) {
	st := newTestSQLiteStore(t)

	c, err := st.GetCycle(context.Background(), DefaultUserID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Empty(t, c.StartDate)
	assert.Empty(t, c.ActiveDays)
}

func TestSQLite_Cycle_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := &progress.Cycle{
		StartDate:  "2026-03-01",
		ActiveDays: map[string]bool{"2026-03-01": true, "2026-03-05": true},
		LastEvaluation: &progress.Evaluation{
			Text:       "steady week",
			CycleStart: "2026-03-01",
			CreatedAt:  time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, st.SaveCycle(ctx, DefaultUserID, c))

	got, err := st.GetCycle(ctx, DefaultUserID)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", got.StartDate)
	assert.True(t, got.ActiveDays["2026-03-05"])
	require.NotNil(t, got.LastEvaluation)
	assert.Equal(t, "steady week", got.LastEvaluation.Text)
}

func TestSQLite_AppendEvaluation(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := st.AppendEvaluation(ctx, DefaultUserID, &progress.Evaluation{
			Text:       "cycle summary",
			CycleStart: "2026-03-01",
			CreatedAt:  time.Now().UTC(),
		})
		require.NoError(t, err)
	}
}
