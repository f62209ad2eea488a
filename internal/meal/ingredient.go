// Package meal owns the scale-factor arithmetic and aggregation invariants
// for logged meals. Nutrient values for an ingredient are derived from a
// single adjustable amount against an immutable original vector; nothing
// derived is ever stored as authoritative.
package meal

import (
	"github.com/google/uuid"

	"github.com/edanos/mealscan/internal/nutrition"
)

// Amount bounds relative to the original estimate. The hard clamp caps any
// programmatic write; the adjustment range is the narrower span a UI slider
// should expose. Both are part of the contract.
const (
	maxAmountFactor   = 10
	adjustRangeFactor = 3
)

// Ingredient is one component of a meal. OriginalAmount and the original
// nutrient vector are captured at creation and never change; Amount is the
// only mutable quantity, and every current nutrient value is computed from
// it on read.
type Ingredient struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Unit           string           `json:"unit"`
	OriginalAmount float64          `json:"original_amount"`
	Amount         float64          `json:"amount"`
	Original       nutrition.Vector `json:"nutrients"`
}

// NewIngredient creates an ingredient from a resolved analysis record. The
// resolved amount becomes both the original and the current amount.
func NewIngredient(r nutrition.ResolvedIngredient) *Ingredient {
	return &Ingredient{
		ID:             uuid.New().String(),
		Name:           r.Name,
		Unit:           r.Unit,
		OriginalAmount: r.Amount,
		Amount:         r.Amount,
		Original:       r.Nutrients.Clone(),
	}
}

// ScaleFactor is the ratio of the current amount to the original estimate.
// A zero original amount pins the factor to 1 so the vector passes through
// unscaled.
func (i *Ingredient) ScaleFactor() float64 {
	if i.OriginalAmount <= 0 {
		return 1.0
	}
	return i.Amount / i.OriginalAmount
}

// Current returns the nutrient vector at the current amount. Unknown
// (absent) nutrients stay absent regardless of scaling.
func (i *Ingredient) Current() nutrition.Vector {
	return i.Original.Scaled(i.ScaleFactor())
}

// SetAmount sets the current amount, clamped into [0, 10x original]. It has
// no side effects on anything else; totals are derived, so nothing needs
// recomputing here.
func (i *Ingredient) SetAmount(amount float64) {
	max := i.OriginalAmount * maxAmountFactor
	if amount < 0 {
		amount = 0
	}
	if amount > max {
		amount = max
	}
	i.Amount = amount
}

// ResetAmount restores the original estimated amount.
func (i *Ingredient) ResetAmount() {
	i.Amount = i.OriginalAmount
}

// AdjustmentRange returns the bounds a UI control should offer, narrower
// than the hard clamp applied by SetAmount.
func (i *Ingredient) AdjustmentRange() (min, max float64) {
	return 0, i.OriginalAmount * adjustRangeFactor
}
