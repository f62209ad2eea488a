package nutrition

import (
	"strconv"
	"strings"

	"github.com/edanos/mealscan/internal/canonical"
)

// fieldAliases maps each canonical field to its priority-ordered source-key
// spellings. The first alias present in a bag with a coercible non-null
// value wins; the ordering is a contract and must stay stable so resolution
// is deterministic across model phrasing variants.
var fieldAliases = map[Field][]string{
	FieldCalories:     {"calories", "kcal", "energy"},
	FieldProtein:      {"protein", "proteins"},
	FieldCarbs:        {"carbs", "carbohydrates", "total_carbohydrates", "carbohydrate"},
	FieldFat:          {"fat", "total_fat", "fats"},
	FieldSaturatedFat: {"saturated_fat", "saturated", "sat_fat"},
	FieldFiber:        {"fiber", "fibre", "dietary_fiber"},
	FieldSugar:        {"sugar", "sugars", "total_sugars"},
	FieldSodium:       {"sodium", "salt"},

	FieldMonounsaturatedFat: {"monounsaturated_fat", "monounsaturated"},
	FieldPolyunsaturatedFat: {"polyunsaturated_fat", "polyunsaturated"},
	FieldTransFat:           {"trans_fat", "trans"},
	FieldOmega3:             {"omega_3", "omega3", "omega_3_fatty_acids"},
	FieldOmega6:             {"omega_6", "omega6", "omega_6_fatty_acids"},
	FieldCholesterol:        {"cholesterol"},
	FieldPotassium:          {"potassium"},
	FieldCalcium:            {"calcium"},
	FieldIron:               {"iron"},
	FieldMagnesium:          {"magnesium"},
	FieldZinc:               {"zinc"},
	FieldPhosphorus:         {"phosphorus"},
	FieldCopper:             {"copper"},
	FieldManganese:          {"manganese"},
	FieldSelenium:           {"selenium"},
	FieldIodine:             {"iodine"},
	FieldVitaminA:           {"vitamin_a"},
	FieldVitaminC:           {"vitamin_c", "ascorbic_acid"},
	FieldVitaminD:           {"vitamin_d"},
	FieldVitaminE:           {"vitamin_e"},
	FieldVitaminK:           {"vitamin_k"},
	FieldThiamin:            {"vitamin_b1", "thiamin", "thiamine"},
	FieldRiboflavin:         {"vitamin_b2", "riboflavin"},
	FieldNiacin:             {"vitamin_b3", "niacin"},
	FieldPantothenicAcid:    {"vitamin_b5", "pantothenic_acid"},
	FieldVitaminB6:          {"vitamin_b6", "pyridoxine"},
	FieldBiotin:             {"vitamin_b7", "biotin"},
	FieldFolate:             {"vitamin_b9", "folate", "folic_acid"},
	FieldVitaminB12:         {"vitamin_b12", "cobalamin"},
	FieldCaffeine:           {"caffeine"},
	FieldAlcohol:            {"alcohol", "ethanol"},
	FieldWater:              {"water", "moisture"},
	FieldStarch:             {"starch"},
}

// nameAliases is the priority chain for an ingredient's display name.
var nameAliases = []string{"name", "ingredient", "ingredient_name", "food_name"}

// quantityAliases is the priority chain for an ingredient's quantity string.
var quantityAliases = []string{"quantity", "amount", "serving_size", "portion"}

// Default quantity when the source provides none or an unusable one. A zero
// quantity is corrected to this value as well; a zero original amount would
// poison the scale factor downstream.
const (
	defaultQuantity = 100
	defaultUnit     = "g"
)

// ResolvedIngredient is one ingredient lifted out of an attribute bag.
type ResolvedIngredient struct {
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
	Unit      string  `json:"unit"`
	Nutrients Vector  `json:"nutrients"`
}

// Resolve maps a flattened attribute bag onto the nutrition schema for the
// given tier. Unresolved required fields default to zero; unresolved
// optional fields stay absent. Missing or unusable fields never raise an
// error — partial model output is the expected common case.
func Resolve(bag canonical.AttrBag, tier Tier, fallbackName string) ResolvedIngredient {
	nutrients := make(Vector, len(EssentialFields))
	for _, field := range FieldsForTier(tier) {
		value, ok := resolveField(bag, field)
		if ok {
			nutrients[field] = value
		} else if Required(field) {
			nutrients[field] = 0
		}
	}

	name := fallbackName
	for _, alias := range nameAliases {
		if s, ok := bag[alias].(string); ok && strings.TrimSpace(s) != "" {
			name = strings.TrimSpace(s)
			break
		}
	}

	amount, unit := resolveQuantity(bag)

	return ResolvedIngredient{
		Name:      name,
		Amount:    amount,
		Unit:      unit,
		Nutrients: nutrients,
	}
}

// resolveField walks a field's alias chain and returns the first coercible
// numeric value.
func resolveField(bag canonical.AttrBag, field Field) (float64, bool) {
	for _, alias := range fieldAliases[field] {
		if !bag.Has(alias) {
			continue
		}
		if value, ok := coerceNumber(bag[alias]); ok {
			return value, true
		}
	}
	return 0, false
}

// coerceNumber turns a raw bag value into a float64. Native numbers pass
// through. Strings are trimmed; "n/a" (any case) and "" yield no value;
// otherwise the longest leading numeric prefix is parsed and trailing unit
// text discarded ("45.1mg" -> 45.1). A string with no leading numeric
// prefix gets one last chance as a full-string parse.
func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" || strings.EqualFold(s, "n/a") {
			return 0, false
		}
		if prefix := leadingNumber(s); prefix != "" {
			if f, err := strconv.ParseFloat(prefix, 64); err == nil {
				return f, true
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// leadingNumber returns the longest prefix of digits and at most one decimal
// point, e.g. "13.5g" -> "13.5". Returns "" when the string does not start
// with a digit or a point.
func leadingNumber(s string) string {
	seenDot := false
	end := 0
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			end++
			continue
		}
		break
	}
	prefix := s[:end]
	if prefix == "" || prefix == "." {
		return ""
	}
	return prefix
}

// resolveQuantity parses a leading numeric token and trailing unit token
// from the first usable quantity alias. Unparseable, absent, and zero
// quantities all fall back to the default.
func resolveQuantity(bag canonical.AttrBag) (float64, string) {
	for _, alias := range quantityAliases {
		if !bag.Has(alias) {
			continue
		}
		amount, unit, ok := parseQuantity(bag[alias])
		if !ok {
			continue
		}
		if amount == 0 {
			amount = defaultQuantity
		}
		return amount, unit
	}
	return defaultQuantity, defaultUnit
}

// parseQuantity splits a quantity value into number and unit. Numeric
// values carry the default unit; strings are split at the end of the
// leading numeric token ("150 g" -> 150, "g").
func parseQuantity(value any) (float64, string, bool) {
	switch v := value.(type) {
	case float64:
		return v, defaultUnit, true
	case int:
		return float64(v), defaultUnit, true
	case string:
		s := strings.TrimSpace(v)
		prefix := leadingNumber(s)
		if prefix == "" {
			return 0, "", false
		}
		amount, err := strconv.ParseFloat(prefix, 64)
		if err != nil {
			return 0, "", false
		}
		unit := strings.TrimSpace(s[len(prefix):])
		if unit == "" {
			unit = defaultUnit
		}
		return amount, unit, true
	default:
		return 0, "", false
	}
}
