/*
Package runway estimates days of operation before storage runs dry.

PURPOSE:
  Derives operational runway from current volumes and net daily demand
  under a hybrid demand-selection rule:

    net_demand  = outflows - recycled        (≤ 0 when recycling wins)
    gross_floor = outflows × gross_floor_pct (configurable, default 0.25)

    net_demand > 0              -> method "net",  demand = net / days
    net_demand ≤ 0, floor > 0   -> method "floor", demand = floor / days
    otherwise                   -> method "zero",  days remaining = nil

WHY THE FLOOR:
  Pure net demand reports "infinite runway" whenever recycling offsets
  outflow, which is operationally misleading - some water is always
  irretrievably consumed even under perfect recycling. The gross floor
  models that minimum.

NIL MEANS N/A:
  DaysRemaining == nil means "no demand constraint." Callers must render
  it as "N/A," never as a number and never as infinity.
*/
package runway

import (
	"github.com/shopspring/decimal"

	"github.com/hydrova/waterbalance-engine/balance"
	"github.com/hydrova/waterbalance-engine/hydro"
	"github.com/hydrova/waterbalance-engine/storage"
)

// DefaultGrossFloorPct is the fraction of gross outflow assumed
// irretrievably consumed even under perfect recycling.
var DefaultGrossFloorPct = decimal.NewFromFloat(0.25)

// =============================================================================
// RESULT TYPES
// =============================================================================

type Method string

const (
	MethodNet   Method = "net"
	MethodFloor Method = "floor"
	MethodZero  Method = "zero"
)

type FacilityRunway struct {
	Code          storage.FacilityCode
	CurrentVolume hydro.Volume
	LevelPct      decimal.Decimal

	// DaysRemaining is nil when demand is zero (N/A, not infinite).
	DaysRemaining *decimal.Decimal
}

type Result struct {
	Date   hydro.CalcDate
	Method Method

	// DailyDemand in m³/day under the selected method.
	DailyDemand hydro.Volume

	UsableStorage hydro.Volume

	// CombinedDaysRemaining is nil when demand is zero.
	CombinedDaysRemaining *decimal.Decimal

	PerFacility []FacilityRunway
}

// =============================================================================
// DAYS OF OPERATION SERVICE
// =============================================================================

type Service struct {
	// GrossFloorPct overrides DefaultGrossFloorPct when positive.
	GrossFloorPct decimal.Decimal
}

func (s *Service) floorPct() decimal.Decimal {
	if s.GrossFloorPct.IsPositive() {
		return s.GrossFloorPct
	}
	return DefaultGrossFloorPct
}

// CalculateRunway derives the fleet and per-facility runway from a balance
// result's outflow/recycled totals and the facility snapshots.
func (s *Service) CalculateRunway(date hydro.CalcDate, bal balance.Result, facilities []storage.Facility) Result {
	outflows := bal.Outflows.Total
	recycled := bal.DirtyInflows.Total

	netDemand := outflows.Sub(recycled)
	grossFloor := outflows.Mul(s.floorPct())
	days := decimal.NewFromInt(int64(date.DaysInMonth()))

	var (
		method      Method
		dailyDemand hydro.Volume
	)
	switch {
	case netDemand.IsPositive():
		method = MethodNet
		dailyDemand = netDemand.Div(days)
	case grossFloor.IsPositive():
		method = MethodFloor
		dailyDemand = grossFloor.Div(days)
	default:
		method = MethodZero
		dailyDemand = hydro.ZeroVolume()
	}

	usable := hydro.ZeroVolume()
	for _, f := range facilities {
		usable = usable.Add(f.CurrentVolume)
	}

	result := Result{
		Date:          date,
		Method:        method,
		DailyDemand:   dailyDemand,
		UsableStorage: usable,
	}

	if method != MethodZero {
		result.CombinedDaysRemaining = daysFor(usable, dailyDemand)
	}

	for _, f := range facilities {
		fr := FacilityRunway{
			Code:          f.Code,
			CurrentVolume: f.CurrentVolume,
			LevelPct:      f.LevelPct(),
		}
		if method != MethodZero {
			// Each facility measured against the fleet demand on its own
			// volume, independent of the aggregate figure.
			fr.DaysRemaining = daysFor(f.CurrentVolume, dailyDemand)
		}
		result.PerFacility = append(result.PerFacility, fr)
	}

	return result
}

// daysFor returns volume/demand, or 0 when storage is already exhausted
// and demand is positive. Callers guarantee demand > 0.
func daysFor(volume, dailyDemand hydro.Volume) *decimal.Decimal {
	if !dailyDemand.IsPositive() {
		return nil
	}
	if !volume.IsPositive() {
		zero := decimal.Zero
		return &zero
	}
	d := volume.Value.Div(dailyDemand.Value)
	return &d
}
