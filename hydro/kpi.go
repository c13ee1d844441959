package hydro

import "github.com/shopspring/decimal"

// =============================================================================
// KPI BUNDLE - Informational metrics computed in OPERATIONS mode
// =============================================================================

// KPIBundle carries the operational metrics shown alongside a balance result.
// KPIs are informational only: they never feed back into the closure error.
type KPIBundle struct {
	// recycled / (fresh + recycled) × 100
	RecyclingRatioPct decimal.Decimal

	// (fresh + recycled) / ore tonnes milled, in m³/t
	WaterIntensityM3PerTonne decimal.Decimal

	// closing storage / total capacity × 100
	StorageUtilizationPct decimal.Decimal
}

// ComputeKPIs derives the OPERATIONS-mode KPI bundle. Every denominator is
// guarded: zero tonnes, zero capacity, or zero total water all yield zero.
func ComputeKPIs(fresh, recycled, closingStorage, totalCapacity Volume, oreTonnes decimal.Decimal) KPIBundle {
	totalWater := fresh.Add(recycled)

	intensity := decimal.Zero
	if oreTonnes.IsPositive() {
		intensity = totalWater.Value.Div(oreTonnes)
	}

	return KPIBundle{
		RecyclingRatioPct:        PercentOf(recycled.Value, totalWater.Value),
		WaterIntensityM3PerTonne: intensity,
		StorageUtilizationPct:    PercentOf(closingStorage.Value, totalCapacity.Value),
	}
}
