/*
Package hydro provides the core value types for the water balance engine.

PURPOSE:
  This package contains the primitive types shared by every other package:
  volumes, calculation periods, data-quality flags, and KPI bundles. It has
  no dependencies on topology, data sources, or persistence.

KEY CONCEPTS IN THIS FILE (volume.go):
  - Volume: A quantity of water in cubic meters
  - Percent helpers: safe percentage math that never produces NaN/Inf

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift in
     closure calculations (a 0.0001% closure error must mean something)
  2. Single unit: every Volume is cubic meters. There is no unit field and
     no conversion layer.
  3. Safe degeneracies: division by zero yields zero, never NaN/Infinity,
     because these values are rendered directly to end users.

SEE ALSO:
  - calendar.go: CalcDate, the monthly period key
  - flags.go: DataQualityFlags accumulator
  - kpi.go: KPI bundle computed in OPERATIONS mode
*/
package hydro

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// VOLUME - Quantity of water in cubic meters
// =============================================================================

type Volume struct {
	Value decimal.Decimal
}

func NewVolume(m3 float64) Volume {
	return Volume{Value: decimal.NewFromFloat(m3)}
}

func VolumeFromDecimal(d decimal.Decimal) Volume {
	return Volume{Value: d}
}

func ZeroVolume() Volume {
	return Volume{Value: decimal.Zero}
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (v Volume) Add(o Volume) Volume            { return Volume{Value: v.Value.Add(o.Value)} }
func (v Volume) Sub(o Volume) Volume            { return Volume{Value: v.Value.Sub(o.Value)} }
func (v Volume) Neg() Volume                    { return Volume{Value: v.Value.Neg()} }
func (v Volume) Mul(s decimal.Decimal) Volume   { return Volume{Value: v.Value.Mul(s)} }
func (v Volume) IsZero() bool                   { return v.Value.IsZero() }
func (v Volume) IsNegative() bool               { return v.Value.IsNegative() }
func (v Volume) IsPositive() bool               { return v.Value.IsPositive() }
func (v Volume) GreaterThan(o Volume) bool      { return v.Value.GreaterThan(o.Value) }
func (v Volume) LessThan(o Volume) bool         { return v.Value.LessThan(o.Value) }
func (v Volume) Min(o Volume) Volume            { if v.LessThan(o) { return v }; return o }
func (v Volume) Max(o Volume) Volume            { if v.GreaterThan(o) { return v }; return o }
func (v Volume) Float64() float64               { f, _ := v.Value.Float64(); return f }
func (v Volume) String() string                 { return v.Value.String() + " m³" }

// Div divides by a scalar. Division by zero returns zero, not a panic:
// degenerate denominators are a data condition here, not a programming error.
func (v Volume) Div(s decimal.Decimal) Volume {
	if s.IsZero() {
		return ZeroVolume()
	}
	return Volume{Value: v.Value.Div(s)}
}

// =============================================================================
// SAFE PERCENTAGE MATH
// =============================================================================

// PercentOf returns part/whole × 100, or zero when the whole is zero.
// Used for closure percentages, facility levels, and recycling ratios,
// all of which render straight into the UI and must never be NaN.
func PercentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100))
}
