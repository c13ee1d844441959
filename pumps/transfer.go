/*
Package pumps simulates pump transfers between linked storage facilities.

PURPOSE:
  When a facility's level reaches its pump-start threshold and it has a
  feed chain, the engine plans an incremental transfer: a fixed percentage
  of current volume (not a drain to pump-stop in one step - pumps have
  run-time limits), distributed across the feeds_to chain in order, capped
  by each destination's remaining capacity. Excess the first destination
  cannot absorb cascades to the next; if the whole chain is full the
  remainder is reported as blocked, never fabricated as overflow.

CRITICAL INVARIANT - PLAN, NOT MUTATION:
  CalculatePumpTransfers never writes to any facility's current volume.
  Applying a plan is a distinct, explicit call (Apply) so users can
  preview before committing. Running the simulation twice with no apply
  in between produces identical output.
*/
package pumps

import (
	"github.com/shopspring/decimal"

	"github.com/hydrova/waterbalance-engine/hydro"
	"github.com/hydrova/waterbalance-engine/storage"
)

// DefaultTransferPct is the fraction of a source facility's current volume
// moved per evaluation. Inferred operational practice, not business law:
// override per deployment.
var DefaultTransferPct = decimal.NewFromFloat(0.05)

// =============================================================================
// PLAN TYPES
// =============================================================================

// Transfer is one planned movement into a destination facility.
type Transfer struct {
	Destination storage.FacilityCode
	Volume      hydro.Volume

	DestLevelBeforePct decimal.Decimal
	DestLevelAfterPct  decimal.Decimal
}

// Plan is the simulation output for one source facility.
type Plan struct {
	Facility        storage.FacilityCode
	CurrentLevelPct decimal.Decimal
	AtPumpStart     bool

	Transfers []Transfer

	// BlockedVolume is the part of the planned increment no destination
	// could absorb. Reported, never applied.
	BlockedVolume hydro.Volume
}

// PlannedTotal is the volume that would actually move if applied.
func (p Plan) PlannedTotal() hydro.Volume {
	total := hydro.ZeroVolume()
	for _, t := range p.Transfers {
		total = total.Add(t.Volume)
	}
	return total
}

// =============================================================================
// PUMP TRANSFER ENGINE
// =============================================================================

type Engine struct {
	// TransferPct overrides DefaultTransferPct when positive.
	TransferPct decimal.Decimal
}

func (e *Engine) pct() decimal.Decimal {
	if e.TransferPct.IsPositive() {
		return e.TransferPct
	}
	return DefaultTransferPct
}

// CalculatePumpTransfers evaluates every facility independently against
// the given snapshot and returns a plan per facility. The snapshot is
// never modified.
func (e *Engine) CalculatePumpTransfers(facilities []storage.Facility) map[storage.FacilityCode]Plan {
	byCode := make(map[storage.FacilityCode]storage.Facility, len(facilities))
	for _, f := range facilities {
		byCode[f.Code] = f
	}

	plans := make(map[storage.FacilityCode]Plan, len(facilities))
	for _, f := range facilities {
		plans[f.Code] = e.planFor(f, byCode)
	}
	return plans
}

func (e *Engine) planFor(f storage.Facility, byCode map[storage.FacilityCode]storage.Facility) Plan {
	plan := Plan{
		Facility:        f.Code,
		CurrentLevelPct: f.LevelPct(),
		AtPumpStart:     f.AtPumpStart(),
		BlockedVolume:   hydro.ZeroVolume(),
	}

	if !plan.AtPumpStart || len(f.FeedsTo) == 0 {
		return plan
	}

	remaining := f.CurrentVolume.Mul(e.pct())
	for _, destCode := range f.FeedsTo {
		if !remaining.IsPositive() {
			break
		}
		dest, ok := byCode[destCode]
		if !ok {
			// Unknown destination: skip, the rest of the chain still runs.
			continue
		}

		absorb := remaining.Min(dest.RemainingCapacity())
		if !absorb.IsPositive() {
			continue
		}

		before := dest.LevelPct()
		after := hydro.PercentOf(dest.CurrentVolume.Add(absorb).Value, dest.Capacity.Value)
		plan.Transfers = append(plan.Transfers, Transfer{
			Destination:        destCode,
			Volume:             absorb,
			DestLevelBeforePct: before,
			DestLevelAfterPct:  after,
		})
		remaining = remaining.Sub(absorb)
	}

	plan.BlockedVolume = remaining
	return plan
}

// =============================================================================
// APPLY - The explicit, separate commit step
// =============================================================================

// Apply commits a set of plans to a facility snapshot and returns the
// updated facilities. Sources lose their planned totals, destinations
// gain their transfers; blocked volume stays where it is. The input slice
// is not modified.
func Apply(facilities []storage.Facility, plans map[storage.FacilityCode]Plan) []storage.Facility {
	out := make([]storage.Facility, len(facilities))
	copy(out, facilities)

	index := make(map[storage.FacilityCode]int, len(out))
	for i, f := range out {
		index[f.Code] = i
	}

	for _, plan := range plans {
		moved := plan.PlannedTotal()
		if !moved.IsPositive() {
			continue
		}
		if i, ok := index[plan.Facility]; ok {
			out[i].CurrentVolume = out[i].CurrentVolume.Sub(moved)
		}
		for _, t := range plan.Transfers {
			if i, ok := index[t.Destination]; ok {
				out[i].CurrentVolume = out[i].CurrentVolume.Add(t.Volume)
			}
		}
	}
	return out
}
