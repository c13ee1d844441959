package balance

import (
	"github.com/hydrova/waterbalance-engine/hydro"
	"github.com/hydrova/waterbalance-engine/source"
	"github.com/hydrova/waterbalance-engine/topology"
)

// =============================================================================
// OUTFLOWS SERVICE
// =============================================================================

// OutflowsService sums the system's boundary outflows: evaporation,
// seepage, dust suppression, consumption (mining/domestic/product-bound),
// discharge, septic, tailings lock-up.
//
// A flow counted here can never also appear in a self-loop recirculation
// total: outflows are boundary edges and the connection view the inflow
// services consume excludes self-loops by construction.
type OutflowsService struct {
	Graph   *topology.Graph
	Adapter *source.Adapter
}

func (s *OutflowsService) Outflows(date hydro.CalcDate, flags *hydro.DataQualityFlags) Aggregate {
	agg := NewAggregate()
	for _, dst := range s.Graph.OutflowDestinations() {
		v := readVolume(s.Graph, s.Adapter, dst.FlowID(), dst.From.Area, date, flags)
		agg.Add(dst.FlowID(), v)
	}
	return agg
}
