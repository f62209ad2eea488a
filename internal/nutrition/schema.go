// Package nutrition maps flattened, alias-tolerant attribute bags onto the
// fixed nutrition schema and assembles canonical analysis results.
package nutrition

// Tier selects which schema fields the resolver attempts to fill.
type Tier string

const (
	// TierEssential covers the eight macro fields.
	TierEssential Tier = "essential"
	// TierComprehensive adds fatty-acid, mineral, vitamin, and other
	// micronutrient fields on top of the essentials.
	TierComprehensive Tier = "comprehensive"
)

// Field is a canonical nutrient field name.
type Field string

// Essential (required) macro fields. These always resolve; an unresolved
// required field defaults to zero.
const (
	FieldCalories     Field = "calories"
	FieldProtein      Field = "protein"
	FieldCarbs        Field = "carbs"
	FieldFat          Field = "fat"
	FieldSaturatedFat Field = "saturated_fat"
	FieldFiber        Field = "fiber"
	FieldSugar        Field = "sugar"
	FieldSodium       Field = "sodium"
)

// Comprehensive (optional) fields. An unresolved optional field stays
// absent: absent means unknown, zero means known to be absent.
const (
	FieldMonounsaturatedFat Field = "monounsaturated_fat"
	FieldPolyunsaturatedFat Field = "polyunsaturated_fat"
	FieldTransFat           Field = "trans_fat"
	FieldOmega3             Field = "omega_3"
	FieldOmega6             Field = "omega_6"
	FieldCholesterol        Field = "cholesterol"
	FieldPotassium          Field = "potassium"
	FieldCalcium            Field = "calcium"
	FieldIron               Field = "iron"
	FieldMagnesium          Field = "magnesium"
	FieldZinc               Field = "zinc"
	FieldPhosphorus         Field = "phosphorus"
	FieldCopper             Field = "copper"
	FieldManganese          Field = "manganese"
	FieldSelenium           Field = "selenium"
	FieldIodine             Field = "iodine"
	FieldVitaminA           Field = "vitamin_a"
	FieldVitaminC           Field = "vitamin_c"
	FieldVitaminD           Field = "vitamin_d"
	FieldVitaminE           Field = "vitamin_e"
	FieldVitaminK           Field = "vitamin_k"
	FieldThiamin            Field = "vitamin_b1"
	FieldRiboflavin         Field = "vitamin_b2"
	FieldNiacin             Field = "vitamin_b3"
	FieldPantothenicAcid    Field = "vitamin_b5"
	FieldVitaminB6          Field = "vitamin_b6"
	FieldBiotin             Field = "vitamin_b7"
	FieldFolate             Field = "vitamin_b9"
	FieldVitaminB12         Field = "vitamin_b12"
	FieldCaffeine           Field = "caffeine"
	FieldAlcohol            Field = "alcohol"
	FieldWater              Field = "water"
	FieldStarch             Field = "starch"
)

// EssentialFields lists the required macro fields in canonical order.
var EssentialFields = []Field{
	FieldCalories,
	FieldProtein,
	FieldCarbs,
	FieldFat,
	FieldSaturatedFat,
	FieldFiber,
	FieldSugar,
	FieldSodium,
}

// ComprehensiveFields lists the optional micronutrient fields in canonical
// order.
var ComprehensiveFields = []Field{
	FieldMonounsaturatedFat,
	FieldPolyunsaturatedFat,
	FieldTransFat,
	FieldOmega3,
	FieldOmega6,
	FieldCholesterol,
	FieldPotassium,
	FieldCalcium,
	FieldIron,
	FieldMagnesium,
	FieldZinc,
	FieldPhosphorus,
	FieldCopper,
	FieldManganese,
	FieldSelenium,
	FieldIodine,
	FieldVitaminA,
	FieldVitaminC,
	FieldVitaminD,
	FieldVitaminE,
	FieldVitaminK,
	FieldThiamin,
	FieldRiboflavin,
	FieldNiacin,
	FieldPantothenicAcid,
	FieldVitaminB6,
	FieldBiotin,
	FieldFolate,
	FieldVitaminB12,
	FieldCaffeine,
	FieldAlcohol,
	FieldWater,
	FieldStarch,
}

// FieldsForTier returns the schema fields the resolver fills for a tier.
func FieldsForTier(tier Tier) []Field {
	if tier == TierComprehensive {
		out := make([]Field, 0, len(EssentialFields)+len(ComprehensiveFields))
		out = append(out, EssentialFields...)
		return append(out, ComprehensiveFields...)
	}
	return EssentialFields
}

// Required reports whether a field is a required macro field.
func Required(f Field) bool {
	for _, ef := range EssentialFields {
		if f == ef {
			return true
		}
	}
	return false
}

// Vector holds resolved nutrient values keyed by canonical field. Required
// fields are always present (zero when unresolved); optional fields are
// present only when a value was resolved — a missing key means unknown.
type Vector map[Field]float64

// Clone returns a copy of the vector.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for f, val := range v {
		out[f] = val
	}
	return out
}

// Scaled returns a copy of the vector with every present value multiplied
// by factor. Absent (unknown) fields stay absent.
func (v Vector) Scaled(factor float64) Vector {
	out := make(Vector, len(v))
	for f, val := range v {
		out[f] = val * factor
	}
	return out
}

// Value returns the value for a field and whether it is known.
func (v Vector) Value(f Field) (float64, bool) {
	val, ok := v[f]
	return val, ok
}
