/*
inflows.go - Fresh and dirty inflow aggregation

PURPOSE:
  Projects the graph's boundary inflows into the two inflow aggregates:

  Fresh:  rainfall, boreholes, rivers, underground dewatering, ore
          moisture - water entering the system from outside. This is the
          only inflow total that enters the closure equation.

  Dirty:  return-water re-entering from downstream (return-water dams)
          plus non-self-loop recirculation connections. KPI-only.

  Self-loops never appear in either: the services read the graph's
  BalanceView, which filters them out by construction.
*/
package balance

import (
	"github.com/hydrova/waterbalance-engine/hydro"
	"github.com/hydrova/waterbalance-engine/source"
	"github.com/hydrova/waterbalance-engine/topology"
)

// =============================================================================
// INFLOWS SERVICE
// =============================================================================

type InflowsService struct {
	Graph   *topology.Graph
	Adapter *source.Adapter
}

// Fresh sums only non-recycled external inflows. Return-water sources are
// explicitly excluded - they belong to Dirty.
func (s *InflowsService) Fresh(date hydro.CalcDate, flags *hydro.DataQualityFlags) Aggregate {
	agg := NewAggregate()
	for _, src := range s.Graph.InflowSources() {
		if !src.Kind.IsFresh() {
			continue
		}
		v := s.read(src.FlowID(), src.Into.Area, date, flags)
		agg.Add(src.FlowID(), v)
	}
	return agg
}

// Dirty sums recirculated/return-water volumes: return-water boundary
// sources plus recirculation-typed connections from the balance view
// (self-loops already filtered). Reported for KPIs, excluded from closure.
func (s *InflowsService) Dirty(date hydro.CalcDate, flags *hydro.DataQualityFlags) Aggregate {
	agg := NewAggregate()
	for _, src := range s.Graph.InflowSources() {
		if src.Kind.IsFresh() {
			continue
		}
		v := s.read(src.FlowID(), src.Into.Area, date, flags)
		agg.Add(src.FlowID(), v)
	}
	for _, c := range s.Graph.BalanceView() {
		if c.FlowType != topology.FlowRecirculation {
			continue
		}
		v := s.read(c.FlowID(), c.From.Area, date, flags)
		agg.Add(c.FlowID(), v)
	}
	return agg
}

func (s *InflowsService) read(flowID string, area topology.AreaCode, date hydro.CalcDate, flags *hydro.DataQualityFlags) hydro.Volume {
	return readVolume(s.Graph, s.Adapter, flowID, area, date, flags)
}

// readVolume is the shared per-flow read: resolve through the adapter and
// mark resolved-but-zero months as suspicious (a zero can mean "no flow"
// or "nobody filled the cell in"). Reads the adapter already flagged are
// not double-flagged.
func readVolume(g *topology.Graph, a *source.Adapter, flowID string, area topology.AreaCode, date hydro.CalcDate, flags *hydro.DataQualityFlags) hydro.Volume {
	sheet := sheetForArea(g, area)
	before := flags.Len()
	v := a.Volume(flowID, sheet, date, flags)
	if v.IsZero() && flags.Len() == before {
		flags.Add(hydro.SeverityInfo, "zero_valued_month", sheet+"/"+flowID,
			"zero volume this month; verify whether genuinely no flow")
	}
	return v
}

// =============================================================================
// RECYCLED SERVICE
// =============================================================================

// RecycledService reports the recycled total for KPI purposes. It shares
// the dirty-inflow projection with InflowsService; the two names exist
// because callers ask the question two ways ("what came in dirty?" vs
// "how much are we recycling?").
type RecycledService struct {
	Inflows *InflowsService
}

func (s *RecycledService) Recycled(date hydro.CalcDate, flags *hydro.DataQualityFlags) Aggregate {
	return s.Inflows.Dirty(date, flags)
}

// sheetForArea names the area sheet a flow's series lives in. Area sheets
// are keyed by area name; unknown areas fall back to the raw code so the
// adapter can still flag the unresolved read.
func sheetForArea(g *topology.Graph, code topology.AreaCode) string {
	if a, ok := g.Area(code); ok {
		return a.Name
	}
	return string(code)
}
