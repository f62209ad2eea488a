package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/edanos/mealscan/internal/canonical"
	"github.com/edanos/mealscan/internal/config"
	"github.com/edanos/mealscan/internal/health"
	"github.com/edanos/mealscan/internal/meal"
	"github.com/edanos/mealscan/internal/nutrition"
	"github.com/edanos/mealscan/internal/resilience"
	"github.com/edanos/mealscan/internal/store"
	"github.com/edanos/mealscan/pkg/anthropic"
)

// ErrRejected is the sentinel matched by errors.Is when the model classified
// the input as containing no food and no nutrition label.
var ErrRejected = eris.New("pipeline: input rejected, no food detected")

// RejectionError carries the full rejected analysis result, including the
// original capture bytes retained for diagnostics. errors.Is matches it
// against ErrRejected; errors.As recovers the result.
type RejectionError struct {
	Result *nutrition.AnalysisResult
}

func (e *RejectionError) Error() string { return ErrRejected.Error() }

func (e *RejectionError) Is(target error) bool { return target == ErrRejected }

// reject logs the rejection and wraps the result. The original input stays
// on Result.RejectedInput so callers can retrieve what was rejected.
func reject(result *nutrition.AnalysisResult) error {
	zap.L().Warn("pipeline: input rejected",
		zap.String("classification", string(result.Classification)),
		zap.Int("input_bytes", len(result.RejectedInput)),
	)
	return &RejectionError{Result: result}
}

// Analyzer runs the full meal analysis flow: preprocess input, call the
// model, normalize the response, persist the meal, and advance the progress
// cycle.
type Analyzer struct {
	cfg     *config.Config
	client  anthropic.Client
	store   store.Store
	blob    BlobStore
	sinks   []health.Sink
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
}

// NewAnalyzer wires an Analyzer from its dependencies. blob and sinks may be
// nil/empty when image persistence or health fan-out is disabled.
func NewAnalyzer(cfg *config.Config, client anthropic.Client, st store.Store, blob BlobStore, sinks []health.Sink) *Analyzer {
	rpm := cfg.Anthropic.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	return &Analyzer{
		cfg:     cfg,
		client:  client,
		store:   st,
		blob:    blob,
		sinks:   sinks,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}
}

// Tier returns the configured analysis tier, defaulting to essential.
func (a *Analyzer) Tier() nutrition.Tier {
	if a.cfg.Analysis.Tier == string(nutrition.TierComprehensive) {
		return nutrition.TierComprehensive
	}
	return nutrition.TierEssential
}

// AnalyzeImage analyzes a meal photo. The image upload to blob storage runs
// concurrently with model inference; the URL is attached before the meal is
// persisted.
func (a *Analyzer) AnalyzeImage(ctx context.Context, imageData []byte, loggedAt time.Time) (*meal.Meal, error) {
	prepared, mediaType, err := PrepareImage(imageData, a.cfg.Analysis.MaxImageDim, a.cfg.Analysis.JPEGQuality)
	if err != nil {
		return nil, err
	}

	var imageURL string
	g, gctx := errgroup.WithContext(ctx)

	if a.blob != nil {
		g.Go(func() error {
			key := uuid.New().String() + ".jpg"
			url, putErr := a.blob.Put(gctx, key, prepared)
			if putErr != nil {
				return putErr
			}
			imageURL = url
			return nil
		})
	}

	var result *nutrition.AnalysisResult
	g.Go(func() error {
		encoded := base64.StdEncoding.EncodeToString(prepared)
		msg := anthropic.ImageMessage(encoded, mediaType, a.tierPrompt())
		res, inferErr := a.analyze(gctx, a.tierModel(), msg, "", 0, imageData)
		if inferErr != nil {
			return inferErr
		}
		result = res
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if result.Rejected {
		return nil, reject(result)
	}

	m := meal.FromAnalysis(result, loggedAt)
	m.ImageURL = imageURL
	return m, a.persist(ctx, m)
}

// AnalyzeDescription analyzes a free-text meal description. Voice input
// arrives here as a transcript.
func (a *Analyzer) AnalyzeDescription(ctx context.Context, description string, loggedAt time.Time) (*meal.Meal, error) {
	prompt := fmt.Sprintf(descriptionPreamble, description) + a.tierPrompt()
	msg := anthropic.TextMessage("user", prompt)

	result, err := a.analyze(ctx, a.tierModel(), msg, description, 0, []byte(description))
	if err != nil {
		return nil, err
	}
	if result.Rejected {
		return nil, reject(result)
	}

	m := meal.FromAnalysis(result, loggedAt)
	return m, a.persist(ctx, m)
}

// Lookup fetches nutrition data for a named product or dish, using web
// search so the model can consult manufacturer listings.
func (a *Analyzer) Lookup(ctx context.Context, query string, loggedAt time.Time) (*meal.Meal, error) {
	prompt := fmt.Sprintf(lookupPrompt, query) + a.tierPrompt()
	msg := anthropic.TextMessage("user", prompt)

	result, err := a.analyze(ctx, a.cfg.Anthropic.LookupModel, msg, query, a.cfg.Anthropic.WebSearchUses, []byte(query))
	if err != nil {
		return nil, err
	}
	if result.Rejected {
		return nil, reject(result)
	}

	m := meal.FromAnalysis(result, loggedAt)
	return m, a.persist(ctx, m)
}

// analyze sends one rate-limited, retried, circuit-protected model request
// and normalizes the response into an AnalysisResult. input is the original
// capture, retained on the result when the model rejects it.
func (a *Analyzer) analyze(ctx context.Context, model string, msg anthropic.Message, fallbackQuery string, webSearchUses int64, input []byte) (*nutrition.AnalysisResult, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "pipeline: rate limit wait")
	}

	req := anthropic.MessageRequest{
		Model:         model,
		MaxTokens:     a.cfg.Anthropic.MaxTokens,
		System:        anthropic.BuildCachedSystemBlocks(analysisSystemText),
		Messages:      []anthropic.Message{msg},
		WebSearchUses: webSearchUses,
	}

	retryCfg := resilience.DefaultRetryConfig()
	if a.cfg.Analysis.MaxRetries > 0 {
		retryCfg.MaxAttempts = a.cfg.Analysis.MaxRetries + 1
	}
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "create_message")

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return a.client.CreateMessage(ctx, req)
		})
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(model, "analysis")

	text := resp.Text()
	parsed, err := canonical.Extract(text)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: normalize response")
	}

	result := nutrition.Build(parsed, a.Tier(), fallbackQuery, input)
	zap.L().Info("pipeline: analysis complete",
		zap.String("model", model),
		zap.String("classification", string(result.Classification)),
		zap.Int("ingredients", len(result.Ingredients)),
		zap.Float64("confidence", result.Confidence),
	)
	return result, nil
}

// persist saves the meal, marks the day active in the progress cycle, and
// fans derived samples out to health sinks. Sink failures are logged by the
// health package and do not fail the analysis.
func (a *Analyzer) persist(ctx context.Context, m *meal.Meal) error {
	if err := a.store.SaveMeal(ctx, m); err != nil {
		return err
	}

	cycle, err := a.store.GetCycle(ctx, store.DefaultUserID)
	if err != nil {
		return err
	}
	if cycle.MarkActive(m.LoggedAt) {
		if err := a.store.SaveCycle(ctx, store.DefaultUserID, cycle); err != nil {
			return err
		}
	}

	if len(a.sinks) > 0 {
		if err := health.WriteDerived(ctx, a.sinks, m); err != nil {
			zap.L().Warn("pipeline: health fan-out incomplete", zap.String("meal_id", m.ID), zap.Error(err))
		}
	}
	return nil
}

func (a *Analyzer) tierModel() string {
	if a.Tier() == nutrition.TierComprehensive {
		return a.cfg.Anthropic.ComprehensiveModel
	}
	return a.cfg.Anthropic.EssentialModel
}

func (a *Analyzer) tierPrompt() string {
	if a.Tier() == nutrition.TierComprehensive {
		return comprehensivePrompt
	}
	return essentialPrompt
}

// Recalculate reloads a stored meal, applies an ingredient amount change,
// and persists the recomputed state. Totals are always derived from the
// ingredients' original vectors, never from stored totals.
func (a *Analyzer) Recalculate(ctx context.Context, mealID, ingredientID string, amount float64) (*meal.Meal, error) {
	m, err := a.store.GetMeal(ctx, mealID)
	if err != nil {
		return nil, err
	}

	ing := m.Ingredient(ingredientID)
	if ing == nil {
		return nil, eris.Errorf("pipeline: ingredient not found: %s", ingredientID)
	}
	ing.SetAmount(amount)

	if err := a.store.UpdateMealIngredients(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
