/*
Package storage models storage facilities and their monthly volume history.

PURPOSE:
  A StorageFacility is a physical storage point (dam, reservoir, pond)
  with a capacity, a live current volume, pump thresholds, and an ordered
  feed chain for pump transfers. History rows record one (facility, year,
  month) opening/closing pair.

CRITICAL INVARIANTS:
  1. 0 <= current volume <= capacity is SOFT: overfill is flagged by the
     balance services, never rejected (the dam doesn't care what the
     database thinks its capacity is).
  2. Only the chronologically LATEST history period updates the facility's
     live current volume. Back-dated corrections must never silently
     mutate "now" - the sqlite store enforces this on upsert.
  3. Opening volume for a period is inferred: prior month's closing if
     history exists, otherwise the facility's live snapshot.

SEE ALSO:
  - pumps/: the transfer simulation consuming facility snapshots
  - store/sqlite/: the persistence implementing the latest-period rule
*/
package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hydrova/waterbalance-engine/hydro"
)

// =============================================================================
// STORAGE FACILITY
// =============================================================================

type FacilityCode string

type Facility struct {
	Code FacilityCode
	Name string

	Capacity      hydro.Volume
	CurrentVolume hydro.Volume

	// SurfaceAreaM2 is optional (zero = unknown); used for evaporation and
	// rainfall gain estimates.
	SurfaceAreaM2 decimal.Decimal

	// Pump thresholds as percent of capacity.
	PumpStartPct decimal.Decimal
	PumpStopPct  decimal.Decimal

	// FeedsTo is the ordered chain of downstream facilities a pump
	// transfer cascades through.
	FeedsTo []FacilityCode
}

// LevelPct returns current volume as a percent of capacity (0 when
// capacity is zero).
func (f Facility) LevelPct() decimal.Decimal {
	return hydro.PercentOf(f.CurrentVolume.Value, f.Capacity.Value)
}

// RemainingCapacity returns how much more the facility can absorb. Never
// negative: an overfull facility simply absorbs nothing.
func (f Facility) RemainingCapacity() hydro.Volume {
	rem := f.Capacity.Sub(f.CurrentVolume)
	if rem.IsNegative() {
		return hydro.ZeroVolume()
	}
	return rem
}

// IsOverfull reports a soft-invariant breach (flag, don't reject).
func (f Facility) IsOverfull() bool {
	return f.CurrentVolume.GreaterThan(f.Capacity)
}

// AtPumpStart reports whether the level has reached the pump-start
// threshold.
func (f Facility) AtPumpStart() bool {
	if f.PumpStartPct.IsZero() {
		return false
	}
	return f.LevelPct().GreaterThanOrEqual(f.PumpStartPct)
}

// =============================================================================
// STORAGE HISTORY
// =============================================================================

// History is one (facility, period) record. Opening is inferred (prior
// closing, or the live snapshot); Closing is user/measured input.
type History struct {
	Facility FacilityCode
	Date     hydro.CalcDate
	Opening  hydro.Volume
	Closing  hydro.Volume
	Source   string // provenance: "database" | "excel" | manual note
	Notes    string
}

// HistoryStore is the engine's view of storage-history persistence.
type HistoryStore interface {
	// History returns the row for (facility, period); ok=false if absent.
	History(ctx context.Context, code FacilityCode, date hydro.CalcDate) (History, bool, error)

	// LatestPeriod returns the most recent period with history for the
	// facility; ok=false if the facility has no history at all.
	LatestPeriod(ctx context.Context, code FacilityCode) (hydro.CalcDate, bool, error)

	// UpsertHistory writes a row. Implementations must honor the
	// latest-period rule: only a row at or after the facility's latest
	// period may update the live current volume.
	UpsertHistory(ctx context.Context, h History) error
}

// =============================================================================
// OPENING INFERENCE
// =============================================================================

// OpeningProvenance labels where an opening volume came from.
type OpeningProvenance string

const (
	OpeningFromHistory  OpeningProvenance = "prior_closing"
	OpeningFromSnapshot OpeningProvenance = "live_snapshot"
)

// OpeningForPeriod infers a facility's opening volume for a period: the
// prior month's closing if history exists, otherwise the facility's live
// current volume.
func OpeningForPeriod(ctx context.Context, hs HistoryStore, f Facility, date hydro.CalcDate) (hydro.Volume, OpeningProvenance, error) {
	prev, ok, err := hs.History(ctx, f.Code, date.Prev())
	if err != nil {
		return hydro.ZeroVolume(), "", err
	}
	if ok {
		return prev.Closing, OpeningFromHistory, nil
	}
	return f.CurrentVolume, OpeningFromSnapshot, nil
}
