// Package health fans logged meals out to external health-data consumers
// (step trackers, health dashboards, export files).
package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edanos/mealscan/internal/meal"
	"github.com/edanos/mealscan/internal/nutrition"
)

// Sample is one derived nutrition data point for a logged meal.
type Sample struct {
	MealID   string
	Field    nutrition.Field
	Value    float64
	LoggedAt time.Time
}

// Sink receives derived nutrition samples. Implementations must tolerate
// being called concurrently for different fields of the same meal.
type Sink interface {
	Write(ctx context.Context, sample Sample) error
	Name() string
}

// maxSinkConcurrency bounds the parallel writes per meal across all sinks.
const maxSinkConcurrency = 8

// WriteDerived computes the meal's nutrient totals and writes one sample per
// present field to every sink in parallel. A failing sink does not cancel the
// others; every write runs to completion and the first error is returned
// after all finish.
func WriteDerived(ctx context.Context, sinks []Sink, m *meal.Meal) error {
	if len(sinks) == 0 {
		return nil
	}

	totals := m.Totals()

	// A plain group: WithContext would cancel sibling writes on the first
	// sink error, and one broken sink must not starve the rest.
	var g errgroup.Group
	g.SetLimit(maxSinkConcurrency)

	for _, sink := range sinks {
		for field, value := range totals {
			g.Go(func() error {
				sample := Sample{
					MealID:   m.ID,
					Field:    field,
					Value:    value,
					LoggedAt: m.LoggedAt,
				}
				if err := sink.Write(ctx, sample); err != nil {
					zap.L().Warn("health: sink write failed",
						zap.String("sink", sink.Name()),
						zap.String("field", string(field)),
						zap.String("meal_id", m.ID),
						zap.Error(err),
					)
					return err
				}
				return nil
			})
		}
	}

	return g.Wait()
}

// LogSink writes samples to the application log. Useful as a default sink
// and in development.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Write(_ context.Context, s Sample) error {
	zap.L().Info("health: derived sample",
		zap.String("meal_id", s.MealID),
		zap.String("field", string(s.Field)),
		zap.Float64("value", s.Value),
		zap.Time("logged_at", s.LoggedAt),
	)
	return nil
}
