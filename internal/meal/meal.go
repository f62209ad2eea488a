package meal

import (
	"time"

	"github.com/google/uuid"

	"github.com/edanos/mealscan/internal/nutrition"
)

// Meal is a logged dish with its ingredients and provenance metadata. The
// meal owns its ingredients exclusively. Nutrient totals are never stored;
// they are recomputed from the ingredients' current values on every read —
// a persisted total is at most an advisory cache.
type Meal struct {
	ID             string                   `json:"id"`
	Name           string                   `json:"name"`
	LoggedAt       time.Time                `json:"logged_at"`
	ImageURL       string                   `json:"image_url,omitempty"`
	Classification nutrition.Classification `json:"classification"`
	Confidence     float64                  `json:"confidence"`
	Notes          string                   `json:"notes,omitempty"`
	Evaluation     string                   `json:"evaluation,omitempty"`
	Processed      bool                     `json:"processed"`
	Ingredients    []*Ingredient            `json:"ingredients"`
}

// FromAnalysis builds a meal from a non-rejected analysis result.
func FromAnalysis(result *nutrition.AnalysisResult, loggedAt time.Time) *Meal {
	m := &Meal{
		ID:             uuid.New().String(),
		Name:           result.DishName,
		LoggedAt:       loggedAt,
		Classification: result.Classification,
		Confidence:     result.Confidence,
		Notes:          result.Notes,
		Evaluation:     result.Evaluation,
		Processed:      result.Processed,
	}
	for _, r := range result.Ingredients {
		m.Ingredients = append(m.Ingredients, NewIngredient(r))
	}
	return m
}

// AddIngredient appends an ingredient to the meal.
func (m *Meal) AddIngredient(i *Ingredient) {
	m.Ingredients = append(m.Ingredients, i)
}

// RemoveIngredient removes the ingredient with the given id and reports
// whether it was present.
func (m *Meal) RemoveIngredient(id string) bool {
	for idx, ing := range m.Ingredients {
		if ing.ID == id {
			m.Ingredients = append(m.Ingredients[:idx], m.Ingredients[idx+1:]...)
			return true
		}
	}
	return false
}

// Ingredient returns the ingredient with the given id, or nil.
func (m *Meal) Ingredient(id string) *Ingredient {
	for _, ing := range m.Ingredients {
		if ing.ID == id {
			return ing
		}
	}
	return nil
}

// Totals recomputes the meal's nutrient totals as the pointwise sum of each
// ingredient's current (scaled) vector. An optional nutrient stays absent
// from the result when no ingredient knows it; otherwise it is the sum over
// the ingredients that do — partial information is preserved, never coerced
// to zero.
func (m *Meal) Totals() nutrition.Vector {
	totals := make(nutrition.Vector)
	for _, ing := range m.Ingredients {
		for field, value := range ing.Current() {
			totals[field] += value
		}
	}
	// Required fields are present even on an empty meal.
	for _, f := range nutrition.EssentialFields {
		if _, ok := totals[f]; !ok {
			totals[f] = 0
		}
	}
	return totals
}

// Total returns the meal total for one field and whether any ingredient
// reported it.
func (m *Meal) Total(field nutrition.Field) (float64, bool) {
	v, ok := m.Totals()[field]
	return v, ok
}
