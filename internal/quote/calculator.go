// Package quote computes priced breakdowns from confirmed conversation fields.
// The calculator is a pure function of its inputs: identical fields and
// distance always produce an identical breakdown.
package quote

import (
	"fmt"
	"math"
	"strconv"

	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
	"github.com/isaacasamoah/piano-move-ai/platform/apperr"
)

// Breakdown is the itemized result of a quote calculation. Immutable once
// produced.
type Breakdown struct {
	Currency          string  `json:"currency"`
	BaseAmount        float64 `json:"baseAmount"`
	DistanceKm        float64 `json:"distanceKm"`
	DistanceCharge    float64 `json:"distanceCharge"`
	UnitCount         int     `json:"unitCount"`
	UnitCharge        float64 `json:"unitCharge"`
	ProtectionApplied bool    `json:"protectionApplied"`
	ProtectionCharge  float64 `json:"protectionCharge"`
	Total             float64 `json:"total"`
}

// invalidField reports a field that should have been gated by the engine's
// completeness check. Reaching this path indicates a policy bug, so callers
// must log it loudly.
func invalidField(name, reason string) *apperr.Error {
	return apperr.Internal(fmt.Sprintf("invalid field %q at quote time: %s", name, reason))
}

// round2 rounds to the nearest currency unit (2 decimal places).
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Compute prices the confirmed field values against the business rate card.
// values maps field name to canonical string value (integers and booleans in
// their strconv forms). Rounding is applied once, at the end, so repeated
// computation from the same raw inputs can never drift.
func Compute(values map[string]string, biz *bizconfig.Business, distanceKm float64) (Breakdown, error) {
	baseField, ok := biz.FieldByRole(bizconfig.RoleBaseRate)
	if !ok {
		return Breakdown{}, apperr.Internal("schema has no base_rate field")
	}

	itemValue, ok := values[baseField.Name]
	if !ok || itemValue == "" {
		return Breakdown{}, invalidField(baseField.Name, "unset")
	}
	base, priced := biz.Pricing.Base[itemValue]
	if !priced {
		// The loader guarantees coverage for schema enum values, so a miss
		// here means the value never passed schema validation.
		return Breakdown{}, invalidField(baseField.Name, "no base price for value "+itemValue)
	}

	if distanceKm < 0 {
		return Breakdown{}, apperr.Internal("negative distance")
	}
	distanceCharge := distanceKm * biz.Pricing.DistanceRatePerKm

	unitCount := 0
	unitCharge := 0.0
	if unitField, ok := biz.FieldByRole(bizconfig.RoleUnitSurcharge); ok {
		raw, set := values[unitField.Name]
		if !set {
			return Breakdown{}, invalidField(unitField.Name, "unset")
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < unitField.Min || (unitField.Max > 0 && n > unitField.Max) {
			return Breakdown{}, invalidField(unitField.Name, "out of bounds: "+raw)
		}
		unitCount = n
		unitCharge = float64(n) * biz.Pricing.UnitSurchargeRate
	}

	protection := false
	if protField, ok := biz.FieldByRole(bizconfig.RoleProtection); ok {
		raw, set := values[protField.Name]
		if !set {
			return Breakdown{}, invalidField(protField.Name, "unset")
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Breakdown{}, invalidField(protField.Name, "not a boolean: "+raw)
		}
		protection = b
	}

	subtotal := base + distanceCharge + unitCharge
	protectionCharge := 0.0
	if protection {
		protectionCharge = subtotal * biz.Pricing.ProtectionRate
	}

	return Breakdown{
		Currency:          biz.Pricing.Currency,
		BaseAmount:        base,
		DistanceKm:        round2(distanceKm),
		DistanceCharge:    round2(distanceCharge),
		UnitCount:         unitCount,
		UnitCharge:        round2(unitCharge),
		ProtectionApplied: protection,
		ProtectionCharge:  round2(protectionCharge),
		Total:             round2(subtotal + protectionCharge),
	}, nil
}
