/*
Package balance computes the monthly site-wide water balance.

PURPOSE:
  Four per-category services (fresh inflows, dirty/recycled inflows,
  outflows, storage) project raw volumes into typed aggregates; the
  calculator applies the closure equation; the engine orchestrates a run
  and returns a structured result. A flat, operator-configurable variant
  (CheckEngine) lives in check.go.

THE MASTER EQUATION (sign convention is correctness-critical):

    closure_error_m3  = fresh_inflows - outflows - Δstorage
    closure_error_pct = closure_error_m3 / fresh_inflows × 100
                        (0 when fresh_inflows == 0)

  ONLY FRESH INFLOWS ENTER THE CLOSURE EQUATION. Recycled/dirty water is
  reported as a KPI but its effect on storage is already captured inside
  Δstorage (it returns to a facility whose closing volume is independently
  measured). Summing fresh+recycled into the equation double-counts. This
  is the single most important invariant of the engine.

SEE ALSO:
  - calculator.go: the closure equation
  - engine.go: orchestration, modes, KPIs
  - check.go: the flat configurable variant
*/
package balance

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hydrova/waterbalance-engine/hydro"
	"github.com/hydrova/waterbalance-engine/storage"
)

// =============================================================================
// AGGREGATE - Total plus component breakdown for one category
// =============================================================================

type Aggregate struct {
	Total      hydro.Volume
	Components map[string]hydro.Volume
}

func NewAggregate() Aggregate {
	return Aggregate{Total: hydro.ZeroVolume(), Components: make(map[string]hydro.Volume)}
}

// Add accumulates a component. Repeated names sum (several sources can
// project into one component label).
func (a *Aggregate) Add(name string, v hydro.Volume) {
	a.Components[name] = a.Components[name].Add(v)
	a.Total = a.Total.Add(v)
}

// ComponentNames returns component labels in stable order for display.
func (a Aggregate) ComponentNames() []string {
	names := make([]string, 0, len(a.Components))
	for n := range a.Components {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// STORAGE SNAPSHOT
// =============================================================================

// FacilityStorage is one facility's contribution to the monthly snapshot.
type FacilityStorage struct {
	Code     storage.FacilityCode
	Capacity hydro.Volume
	Opening  hydro.Volume
	Closing  hydro.Volume
	Source   string // "database" | "excel" | "none (defaulted to 0)"
}

type StorageSnapshot struct {
	Opening       hydro.Volume
	Closing       hydro.Volume
	Delta         hydro.Volume // closing - opening
	TotalCapacity hydro.Volume
	Facilities    []FacilityStorage
}

// =============================================================================
// CALCULATION MODE
// =============================================================================

type Mode string

const (
	// ModeRegulator produces the bare closure numbers for compliance
	// reporting.
	ModeRegulator Mode = "REGULATOR"

	// ModeOperations additionally computes the KPI bundle (recycling
	// ratio, water intensity, storage utilization).
	ModeOperations Mode = "OPERATIONS"
)

// =============================================================================
// BALANCE RESULT - The computed output for one calculation date
// =============================================================================

// Result is ephemeral: recomputed on demand, optionally persisted as an
// audit row through a ResultAuditor.
type Result struct {
	Date hydro.CalcDate
	Mode Mode

	FreshInflows Aggregate
	DirtyInflows Aggregate
	Outflows     Aggregate
	Storage      StorageSnapshot

	ClosureErrorM3  hydro.Volume
	ClosureErrorPct decimal.Decimal

	Flags hydro.DataQualityFlags

	// KPIs is populated only in OPERATIONS mode.
	KPIs *hydro.KPIBundle
}
