package nutrition

import (
	"strings"

	"github.com/edanos/mealscan/internal/canonical"
)

// Classification tags what the source capture actually contained.
type Classification string

const (
	ClassificationFood           Classification = "food"
	ClassificationNutritionLabel Classification = "nutritional_label_on_packed_product"
	ClassificationPackagedOnly   Classification = "packaged_product_only"
	ClassificationNoFood         Classification = "no_food_no_label"
)

// classificationAliases is the priority chain for the classification tag.
var classificationAliases = []string{"image_classification", "classification", "category"}

// dishNameAliases is the fallback chain for the envelope's dish name before
// the caller-supplied query text.
var dishNameAliases = []string{"dish_name", "name", "food_name", "title"}

// AnalysisResult is the canonical envelope produced from one model response.
// A Rejected result carries the classification and the original input bytes
// and has no ingredients; it is a first-class outcome, not an error.
type AnalysisResult struct {
	Classification Classification       `json:"classification"`
	Rejected       bool                 `json:"rejected"`
	RejectedInput  []byte               `json:"-"`
	DishName       string               `json:"dish_name"`
	Confidence     float64              `json:"confidence"`
	Notes          string               `json:"notes"`
	Evaluation     string               `json:"evaluation"`
	Processed      bool                 `json:"processed"`
	Ingredients    []ResolvedIngredient `json:"ingredients"`
}

// Build assembles an analysis result from a parsed value. fallbackQuery
// names the dish when the payload does not; input is the original capture,
// retained on rejection for diagnostics.
func Build(parsed *canonical.Parsed, tier Tier, fallbackQuery string, input []byte) *AnalysisResult {
	if parsed.Array {
		return buildFromArray(parsed.Bags, tier, fallbackQuery)
	}
	return buildFromObject(parsed.Bags[0], tier, fallbackQuery, input)
}

// buildFromArray treats every bag as one ingredient; this is the shape the
// search-augmented lookup tier produces. Envelope metadata falls back to
// defaults since array payloads carry none.
func buildFromArray(bags []canonical.AttrBag, tier Tier, fallbackQuery string) *AnalysisResult {
	result := &AnalysisResult{
		Classification: ClassificationFood,
		DishName:       fallbackQuery,
		Confidence:     1.0,
	}
	for _, bag := range bags {
		result.Ingredients = append(result.Ingredients, Resolve(bag, tier, fallbackQuery))
	}
	return result
}

func buildFromObject(bag canonical.AttrBag, tier Tier, fallbackQuery string, input []byte) *AnalysisResult {
	classification := resolveClassification(bag)

	// Non-food captures short-circuit before any ingredient resolution; the
	// original input travels with the rejection for diagnostic retention.
	if classification == ClassificationNoFood {
		return &AnalysisResult{
			Classification: ClassificationNoFood,
			Rejected:       true,
			RejectedInput:  input,
		}
	}

	result := &AnalysisResult{
		Classification: classification,
		DishName:       resolveString(bag, dishNameAliases, fallbackQuery),
		Confidence:     resolveConfidence(bag),
		Notes:          resolveString(bag, []string{"notes"}, ""),
		Evaluation:     resolveString(bag, []string{"evaluation", "health_evaluation"}, ""),
		Processed:      bag["highly_processed"] == true || bag["processed"] == true,
	}

	if raw, ok := bag["ingredients"].([]any); ok {
		for _, el := range raw {
			sub, ok := el.(canonical.AttrBag)
			if !ok {
				continue
			}
			result.Ingredients = append(result.Ingredients, Resolve(sub, tier, result.DishName))
		}
	}

	// No usable ingredients array: the whole object is a single ingredient.
	// This supports a nutrition-label capture where macros sit at top level.
	if len(result.Ingredients) == 0 {
		result.Ingredients = append(result.Ingredients, Resolve(bag, tier, result.DishName))
	}

	return result
}

func resolveClassification(bag canonical.AttrBag) Classification {
	for _, alias := range classificationAliases {
		s, ok := bag[alias].(string)
		if !ok {
			continue
		}
		switch Classification(strings.TrimSpace(strings.ToLower(s))) {
		case ClassificationFood:
			return ClassificationFood
		case ClassificationNutritionLabel:
			return ClassificationNutritionLabel
		case ClassificationPackagedOnly:
			return ClassificationPackagedOnly
		case ClassificationNoFood:
			return ClassificationNoFood
		}
	}
	return ClassificationFood
}

func resolveString(bag canonical.AttrBag, aliases []string, fallback string) string {
	for _, alias := range aliases {
		if s, ok := bag[alias].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return fallback
}

// resolveConfidence defaults to 1.0 when the value is absent or not
// coercible.
func resolveConfidence(bag canonical.AttrBag) float64 {
	if bag.Has("confidence") {
		if f, ok := coerceNumber(bag["confidence"]); ok {
			return f
		}
	}
	return 1.0
}
