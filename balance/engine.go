/*
engine.go - Balance run orchestration

PURPOSE:
  Engine.Run is the calculation entry point: it calls the four
  per-category services for a calculation date, applies the closure
  equation on FRESH inflows only, optionally computes the KPI bundle
  (OPERATIONS mode), and returns a structured Result.

ORDERING GUARANTEE:
  The four services complete, sequentially, before the calculator runs.
  No partial or streaming evaluation. The engine has no awareness of
  threading: it is a deterministic function of (date, current data state);
  callers wanting a responsive UI offload the whole Run to a worker.
*/
package balance

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hydrova/waterbalance-engine/hydro"
)

// =============================================================================
// RESULT AUDITOR - Optional persistence of computed results
// =============================================================================

// ResultAuditor persists a computed Result as an audit row. Persistence is
// auxiliary: a failed audit write degrades to a flag, never fails the run.
type ResultAuditor interface {
	SaveBalanceResult(ctx context.Context, r Result) error
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Inflows  *InflowsService
	Recycled *RecycledService
	Outflows *OutflowsService
	Storage  *StorageService

	Mode Mode

	// Auditor, when set, records every Result.
	Auditor ResultAuditor
}

// RunInput carries the calculation date and the externally supplied
// figures OPERATIONS mode needs.
type RunInput struct {
	Date hydro.CalcDate

	// OreTonnes milled in the period; used only for the water-intensity
	// KPI in OPERATIONS mode.
	OreTonnes decimal.Decimal
}

// Run executes one balance calculation. It always produces a Result -
// possibly heavily flagged - and returns an error only for store-level
// failures that leave nothing to report.
func (e *Engine) Run(ctx context.Context, in RunInput) (Result, error) {
	var flags hydro.DataQualityFlags

	// 1. The four aggregates, sequentially, each degrading-and-flagging
	//    into the shared accumulator.
	fresh := e.Inflows.Fresh(in.Date, &flags)
	dirty := e.Recycled.Recycled(in.Date, &flags)
	outflows := e.Outflows.Outflows(in.Date, &flags)
	snap, err := e.Storage.Snapshot(ctx, in.Date, &flags)
	if err != nil {
		return Result{}, fmt.Errorf("storage snapshot for %s: %w", in.Date, err)
	}

	// 2. Closure on fresh-only inflows. Recycled water stays out: its
	//    storage effect is already inside snap.Delta.
	errM3, errPct := Closure(fresh.Total, outflows.Total, snap.Delta)

	mode := e.Mode
	if mode == "" {
		mode = ModeRegulator
	}

	result := Result{
		Date:            in.Date,
		Mode:            mode,
		FreshInflows:    fresh,
		DirtyInflows:    dirty,
		Outflows:        outflows,
		Storage:         snap,
		ClosureErrorM3:  errM3,
		ClosureErrorPct: errPct,
		Flags:           flags,
	}

	// 3. OPERATIONS mode adds the informational KPI bundle; it never
	//    feeds back into the closure numbers.
	if mode == ModeOperations {
		kpis := hydro.ComputeKPIs(fresh.Total, dirty.Total, snap.Closing, snap.TotalCapacity, in.OreTonnes)
		result.KPIs = &kpis
	}

	if e.Auditor != nil {
		if err := e.Auditor.SaveBalanceResult(ctx, result); err != nil {
			result.Flags.Add(hydro.SeverityWarning, "audit_write_failed", in.Date.String(),
				fmt.Sprintf("balance result not persisted: %v", err))
		}
	}

	return result, nil
}
