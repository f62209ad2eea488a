// Package store persists meals and the progress document. Meal totals in
// the store are advisory caches; the ingredient list is the source of truth
// and totals are recomputable from it at any time.
package store

import (
	"context"
	"time"

	"github.com/edanos/mealscan/internal/meal"
	"github.com/edanos/mealscan/internal/progress"
)

// DefaultUserID keys the progress document when no user scoping is in play
// (single-user CLI operation).
const DefaultUserID = "local"

// MealFilter specifies criteria for listing meals.
type MealFilter struct {
	From   time.Time `json:"from,omitempty"`
	To     time.Time `json:"to,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for the analysis pipeline.
type Store interface {
	// Meals
	SaveMeal(ctx context.Context, m *meal.Meal) error
	GetMeal(ctx context.Context, mealID string) (*meal.Meal, error)
	ListMeals(ctx context.Context, filter MealFilter) ([]*meal.Meal, error)
	DeleteMeal(ctx context.Context, mealID string) error
	UpdateMealIngredients(ctx context.Context, m *meal.Meal) error

	// Progress document
	GetCycle(ctx context.Context, userID string) (*progress.Cycle, error)
	SaveCycle(ctx context.Context, userID string, c *progress.Cycle) error
	AppendEvaluation(ctx context.Context, userID string, ev *progress.Evaluation) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
