package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/edanos/mealscan/internal/config"
	"github.com/edanos/mealscan/internal/meal"
	"github.com/edanos/mealscan/internal/nutrition"
	"github.com/edanos/mealscan/internal/progress"
	"github.com/edanos/mealscan/internal/store"
	"github.com/edanos/mealscan/pkg/anthropic"
)

// ErrNotEligible is returned by Evaluate when the current cycle has not yet
// reached the active-day threshold.
var ErrNotEligible = eris.New("pipeline: cycle not yet eligible for evaluation")

// ErrAlreadyEvaluated is returned when the current cycle already has an
// evaluation stored.
var ErrAlreadyEvaluated = eris.New("pipeline: cycle already evaluated")

// Reporter computes progress snapshots and generates end-of-cycle
// evaluations.
type Reporter struct {
	cfg    *config.Config
	client anthropic.Client
	store  store.Store
}

func NewReporter(cfg *config.Config, client anthropic.Client, st store.Store) *Reporter {
	return &Reporter{cfg: cfg, client: client, store: st}
}

// historyPageSize is the page size used when scanning the meal history.
const historyPageSize = 200

// listAllMeals pages through every meal matching the filter. The store
// orders newest first, so a single limited query would drop the earliest
// meals and mis-anchor the cycle.
func (r *Reporter) listAllMeals(ctx context.Context, filter store.MealFilter) ([]*meal.Meal, error) {
	var all []*meal.Meal
	for offset := 0; ; offset += historyPageSize {
		filter.Limit = historyPageSize
		filter.Offset = offset
		page, err := r.store.ListMeals(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < historyPageSize {
			return all, nil
		}
	}
}

// Snapshot recomputes the progress cycle from stored meals and persists the
// cycle document only when it actually changed.
func (r *Reporter) Snapshot(ctx context.Context, now time.Time) (*progress.Snapshot, error) {
	cycle, err := r.store.GetCycle(ctx, store.DefaultUserID)
	if err != nil {
		return nil, err
	}

	meals, err := r.listAllMeals(ctx, store.MealFilter{})
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, len(meals))
	for i, m := range meals {
		times[i] = m.LoggedAt
	}

	snap, changed := progress.Recompute(cycle, times, now)
	if changed {
		if err := r.store.SaveCycle(ctx, store.DefaultUserID, cycle); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// Evaluate generates a coaching evaluation for the current cycle once it
// reaches the active-day threshold. The evaluation is stored on the cycle
// document and appended to the evaluation history.
func (r *Reporter) Evaluate(ctx context.Context, now time.Time) (string, error) {
	snap, err := r.Snapshot(ctx, now)
	if err != nil {
		return "", err
	}
	if snap == nil || !snap.Eligible {
		return "", ErrNotEligible
	}
	if snap.Evaluated {
		return "", ErrAlreadyEvaluated
	}

	cycle, err := r.store.GetCycle(ctx, store.DefaultUserID)
	if err != nil {
		return "", err
	}

	start := snap.StartDate
	meals, err := r.listAllMeals(ctx, store.MealFilter{
		From: start,
		To:   start.AddDate(0, 0, progress.CycleLength),
	})
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(evaluationPrompt,
		progress.CycleLength, snap.ActiveDays, progress.CycleLength, mealDigest(meals))

	resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.cfg.Anthropic.ComprehensiveModel,
		MaxTokens: r.cfg.Anthropic.MaxTokens,
		Messages:  []anthropic.Message{anthropic.TextMessage("user", prompt)},
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(r.cfg.Anthropic.ComprehensiveModel, "evaluation")

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.New("pipeline: empty evaluation response")
	}

	cycle.StoreEvaluation(text, now)
	if err := r.store.SaveCycle(ctx, store.DefaultUserID, cycle); err != nil {
		return "", err
	}
	if err := r.store.AppendEvaluation(ctx, store.DefaultUserID, cycle.LastEvaluation); err != nil {
		return "", err
	}

	zap.L().Info("pipeline: cycle evaluated",
		zap.String("cycle_start", progress.DayKey(snap.StartDate)),
		zap.Int("active_days", snap.ActiveDays),
	)
	return text, nil
}

// mealDigest renders a compact per-meal summary for the evaluation prompt.
func mealDigest(meals []*meal.Meal) string {
	if len(meals) == 0 {
		return "(no meals logged)"
	}

	var b strings.Builder
	for _, m := range meals {
		totals := m.Totals()
		fmt.Fprintf(&b, "- %s: %s (%.0f kcal, %.0fg protein, %.0fg carbs, %.0fg fat)",
			m.LoggedAt.Format("2006-01-02"), m.Name,
			totals[nutrition.FieldCalories], totals[nutrition.FieldProtein],
			totals[nutrition.FieldCarbs], totals[nutrition.FieldFat])
		if m.Processed {
			b.WriteString(" [highly processed]")
		}
		b.WriteByte('\n')
	}
	return b.String()
}
