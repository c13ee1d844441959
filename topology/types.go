/*
Package topology models the mine site's flow-connection graph.

PURPOSE:
  Holds Areas, Structures, FlowConnections, and the boundary edges
  (InflowSources, OutflowDestinations), and answers the graph queries the
  volume-aggregation services need: self-loops per area, inter-area
  transfers, duplicate signatures, orphaned structures.

KEY CONCEPTS IN THIS FILE (types.go):
  - Area: a named mine zone (e.g. "UG2 North Decline")
  - Structure: a physical node within an area (dam, plant, borehole, ...)
  - FlowConnection: a directed edge between two structures
  - InflowSource / OutflowDestination: the graph's boundary conditions

CRITICAL INVARIANTS:
  1. No two connections share the same (from, to, flow type, subcategory)
     signature - duplicates are detected and rejected at insert time.
  2. A self-loop (from == to) is permitted ONLY for internal recirculation
     and must be excluded from area-level inflow/outflow totals.
  3. Every dirty inter-area transfer must be bidirectional (dirty-water
     return paths are physically reversible).

SEE ALSO:
  - graph.go: the Graph container and its queries
  - split.go: structure splits, area removal, direction reversal
  - validate.go: invariant checks run at edit time
*/
package topology

import "fmt"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AreaCode string
type StructureCode string

// StructureRef identifies a structure globally. Structure codes are unique
// only within their owning area, so a global reference needs both.
type StructureRef struct {
	Area      AreaCode
	Structure StructureCode
}

func (r StructureRef) String() string {
	return string(r.Area) + "/" + string(r.Structure)
}

// =============================================================================
// FLOW TYPES
// =============================================================================

type FlowType string

const (
	FlowClean         FlowType = "clean"
	FlowDirty         FlowType = "dirty"
	FlowEvaporation   FlowType = "evaporation"
	FlowRecirculation FlowType = "recirculation"
)

// =============================================================================
// AREA - A named mine zone
// =============================================================================

// Area is seeded once at setup and effectively immutable afterwards.
// Decommissioning an area cascades to its structures and connections
// (see Graph.RemoveArea).
type Area struct {
	Code AreaCode
	Name string
}

// =============================================================================
// STRUCTURE - A physical node within an area
// =============================================================================

type StructureType string

const (
	StructureDam      StructureType = "dam"
	StructurePlant    StructureType = "plant"
	StructureBorehole StructureType = "borehole"
	StructureShaft    StructureType = "shaft"
	StructureJunction StructureType = "junction"
	StructureGroup    StructureType = "group"
)

// Structure is owned exclusively by one Area. IsGroup marks logical
// aggregation nodes that hold no physical volume; orphan detection
// skips them.
type Structure struct {
	Area    AreaCode
	Code    StructureCode
	Name    string
	Type    StructureType
	IsGroup bool
}

func (s Structure) Ref() StructureRef {
	return StructureRef{Area: s.Area, Structure: s.Code}
}

// =============================================================================
// FLOW CONNECTION - A directed edge between two structures
// =============================================================================

type FlowConnection struct {
	From        StructureRef
	To          StructureRef
	FlowType    FlowType
	Subcategory string

	// Bidirectional permits a negative net flow (water moves both ways).
	Bidirectional bool

	// Internal marks a connection whose endpoints share an area.
	Internal bool

	Notes string
}

// IsSelfLoop reports whether the edge starts and ends at the same structure.
// Self-loops represent internal dam recirculation and have zero net effect
// on area totals.
func (c FlowConnection) IsSelfLoop() bool {
	return c.From == c.To
}

// IsInterArea reports whether the edge crosses area boundaries.
func (c FlowConnection) IsInterArea() bool {
	return c.From.Area != c.To.Area
}

// FlowID derives the logical flow identifier used by the volume mapping
// layer, e.g. "softening__TO__reservoir". Stable across spreadsheet column
// renames; changes only when the edge direction is reversed.
func (c FlowConnection) FlowID() string {
	return string(c.From.Structure) + "__TO__" + string(c.To.Structure)
}

// Signature is the duplicate-detection key: no two connections may share it.
type Signature struct {
	From        StructureRef
	To          StructureRef
	FlowType    FlowType
	Subcategory string
}

func (c FlowConnection) Signature() Signature {
	return Signature{From: c.From, To: c.To, FlowType: c.FlowType, Subcategory: c.Subcategory}
}

func (s Signature) String() string {
	return fmt.Sprintf("%s -> %s [%s/%s]", s.From, s.To, s.FlowType, s.Subcategory)
}

// =============================================================================
// BOUNDARY EDGES - Flows into and out of the modeled system
// =============================================================================

type InflowKind string

const (
	InflowRainfall    InflowKind = "rainfall"
	InflowBorehole    InflowKind = "borehole"
	InflowRiver       InflowKind = "river"
	InflowDewatering  InflowKind = "dewatering"
	InflowOreMoisture InflowKind = "ore_moisture"

	// InflowReturnWater is recycled water re-entering from a return-water
	// dam. It is NOT a fresh inflow and never enters the closure equation.
	InflowReturnWater InflowKind = "return_water"
)

// IsFresh reports whether this inflow kind counts toward the closure
// equation. Return water is KPI-only.
func (k InflowKind) IsFresh() bool {
	return k != InflowReturnWater
}

// InflowSource is a typed edge from the environment into a structure.
type InflowSource struct {
	Into StructureRef
	Kind InflowKind
	Name string
}

// FlowID mirrors FlowConnection.FlowID for the mapping layer.
func (s InflowSource) FlowID() string {
	return string(s.Kind) + "__TO__" + string(s.Into.Structure)
}

type OutflowKind string

const (
	OutflowEvaporation        OutflowKind = "evaporation"
	OutflowSeepage            OutflowKind = "seepage"
	OutflowDustSuppression    OutflowKind = "dust_suppression"
	OutflowMiningConsumption  OutflowKind = "mining_consumption"
	OutflowDomesticUse        OutflowKind = "domestic_use"
	OutflowProductMoisture    OutflowKind = "product_moisture"
	OutflowDischarge          OutflowKind = "discharge"
	OutflowSeptic             OutflowKind = "septic"
	OutflowTailingsLockup     OutflowKind = "tailings_lockup"
)

// OutflowDestination is a typed edge from a structure out of the system.
type OutflowDestination struct {
	From StructureRef
	Kind OutflowKind
	Name string
}

func (d OutflowDestination) FlowID() string {
	return string(d.From.Structure) + "__TO__" + string(d.Kind)
}
