/*
graph.go - The flow topology container and its queries

PURPOSE:
  Graph is the in-memory master model of the site's water network. The four
  per-category balance services consume read-only views of it; topology
  management tooling mutates it through the checked operations here and in
  split.go.

QUERY SURFACE:
  SelfLoopsFor:       internal recirculation edges for one area
  InterAreaTransfers: cross-area edges, optionally filtered by endpoint area
  DetectDuplicates:   grouped signature collisions for cleanup tooling
  DetectOrphans:      structures with no edges at all (warning, not error)
  BalanceView:        all connections minus self-loops - the view the
                      balance services sum over, which is how self-loop
                      neutrality is enforced by construction

CONCURRENCY:
  None. The calculation model is single-threaded (one desktop session,
  monthly batch); the graph is built once and read sequentially.
*/
package topology

import "sort"

// =============================================================================
// GRAPH
// =============================================================================

type Graph struct {
	areas       map[AreaCode]Area
	structures  map[StructureRef]Structure
	connections []FlowConnection
	signatures  map[Signature]int // signature -> index into connections
	inflows     []InflowSource
	outflows    []OutflowDestination
}

func NewGraph() *Graph {
	return &Graph{
		areas:      make(map[AreaCode]Area),
		structures: make(map[StructureRef]Structure),
		signatures: make(map[Signature]int),
	}
}

// =============================================================================
// MUTATION - Checked edits; topology errors block the edit
// =============================================================================

func (g *Graph) AddArea(a Area) {
	g.areas[a.Code] = a
}

func (g *Graph) AddStructure(s Structure) error {
	if _, ok := g.areas[s.Area]; !ok {
		return ErrUnknownArea
	}
	g.structures[s.Ref()] = s
	return nil
}

// AddConnection inserts a directed edge. It fails with
// DuplicateConnectionError on a signature collision and with
// InvalidConnectionError on a non-recirculation self-loop.
func (g *Graph) AddConnection(c FlowConnection) error {
	if _, ok := g.structures[c.From]; !ok {
		return ErrUnknownStructure
	}
	if _, ok := g.structures[c.To]; !ok {
		return ErrUnknownStructure
	}
	if c.IsSelfLoop() && c.FlowType != FlowRecirculation {
		return &InvalidConnectionError{
			Signature: c.Signature(),
			Reason:    "self-loop permitted only for internal recirculation",
		}
	}

	sig := c.Signature()
	if _, exists := g.signatures[sig]; exists {
		return &DuplicateConnectionError{Signature: sig}
	}

	c.Internal = !c.IsInterArea()
	g.signatures[sig] = len(g.connections)
	g.connections = append(g.connections, c)
	return nil
}

// LoadConnection inserts an edge WITHOUT duplicate rejection. It exists for
// loading external topology definitions verbatim so that DetectDuplicates
// and CollapseDuplicates can surface what the definition actually contains.
// Interactive edits must go through AddConnection.
func (g *Graph) LoadConnection(c FlowConnection) error {
	if _, ok := g.structures[c.From]; !ok {
		return ErrUnknownStructure
	}
	if _, ok := g.structures[c.To]; !ok {
		return ErrUnknownStructure
	}
	c.Internal = !c.IsInterArea()
	sig := c.Signature()
	if _, exists := g.signatures[sig]; !exists {
		g.signatures[sig] = len(g.connections)
	}
	g.connections = append(g.connections, c)
	return nil
}

func (g *Graph) AddInflowSource(s InflowSource) error {
	if _, ok := g.structures[s.Into]; !ok {
		return ErrUnknownStructure
	}
	g.inflows = append(g.inflows, s)
	return nil
}

func (g *Graph) AddOutflowDestination(d OutflowDestination) error {
	if _, ok := g.structures[d.From]; !ok {
		return ErrUnknownStructure
	}
	g.outflows = append(g.outflows, d)
	return nil
}

// =============================================================================
// LOOKUPS
// =============================================================================

func (g *Graph) Area(code AreaCode) (Area, bool) {
	a, ok := g.areas[code]
	return a, ok
}

func (g *Graph) Areas() []Area {
	out := make([]Area, 0, len(g.areas))
	for _, a := range g.areas {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (g *Graph) Structure(ref StructureRef) (Structure, bool) {
	s, ok := g.structures[ref]
	return s, ok
}

func (g *Graph) Connections() []FlowConnection {
	out := make([]FlowConnection, len(g.connections))
	copy(out, g.connections)
	return out
}

func (g *Graph) InflowSources() []InflowSource {
	out := make([]InflowSource, len(g.inflows))
	copy(out, g.inflows)
	return out
}

func (g *Graph) OutflowDestinations() []OutflowDestination {
	out := make([]OutflowDestination, len(g.outflows))
	copy(out, g.outflows)
	return out
}

// =============================================================================
// BALANCE VIEW - What the per-category services sum over
// =============================================================================

// BalanceView returns every connection except self-loops. Feeding the
// services this view (rather than Connections) is what guarantees
// self-loop neutrality: a recirculation edge of any volume leaves area
// inflow and outflow totals unchanged because it is never summed.
func (g *Graph) BalanceView() []FlowConnection {
	var out []FlowConnection
	for _, c := range g.connections {
		if c.IsSelfLoop() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// SelfLoopsFor returns the internal recirculation edges for one area.
func (g *Graph) SelfLoopsFor(area AreaCode) []FlowConnection {
	var out []FlowConnection
	for _, c := range g.connections {
		if c.IsSelfLoop() && c.From.Area == area {
			out = append(out, c)
		}
	}
	return out
}

// InterAreaTransfers returns cross-area edges. Zero-valued filter arguments
// match any area.
func (g *Graph) InterAreaTransfers(fromArea, toArea AreaCode) []FlowConnection {
	var out []FlowConnection
	for _, c := range g.connections {
		if !c.IsInterArea() {
			continue
		}
		if fromArea != "" && c.From.Area != fromArea {
			continue
		}
		if toArea != "" && c.To.Area != toArea {
			continue
		}
		out = append(out, c)
	}
	return out
}

// =============================================================================
// DIAGNOSTICS
// =============================================================================

// DuplicateGroup is one signature collision: two or more edges that share
// the same (from, to, flow type, subcategory).
type DuplicateGroup struct {
	Signature Signature
	Count     int
}

// DetectDuplicates returns grouped signature collisions. A well-formed
// graph returns an empty list; collisions can only come in through
// LoadConnection, since AddConnection rejects them.
func (g *Graph) DetectDuplicates() []DuplicateGroup {
	counts := make(map[Signature]int)
	for _, c := range g.connections {
		counts[c.Signature()]++
	}

	var out []DuplicateGroup
	for sig, n := range counts {
		if n > 1 {
			out = append(out, DuplicateGroup{Signature: sig, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Signature.String() < out[j].Signature.String()
	})
	return out
}

// CollapseDuplicates removes all but the first edge of every duplicated
// signature and returns how many edges were dropped. Used by cleanup
// tooling after DetectDuplicates has surfaced the collisions.
func (g *Graph) CollapseDuplicates() int {
	seen := make(map[Signature]bool)
	kept := g.connections[:0]
	dropped := 0
	for _, c := range g.connections {
		sig := c.Signature()
		if seen[sig] {
			dropped++
			continue
		}
		seen[sig] = true
		kept = append(kept, c)
	}
	g.connections = kept
	g.reindex()
	return dropped
}

// reindex rebuilds the signature index after a bulk mutation.
func (g *Graph) reindex() {
	g.signatures = make(map[Signature]int, len(g.connections))
	for i, c := range g.connections {
		sig := c.Signature()
		if _, ok := g.signatures[sig]; !ok {
			g.signatures[sig] = i
		}
	}
}

// DetectOrphans returns structures with no inbound, outbound, inflow, or
// outflow edges. Group/aggregation nodes are legitimate terminals and are
// skipped. Orphans are surfaced as warnings, not errors.
func (g *Graph) DetectOrphans() []StructureRef {
	connected := make(map[StructureRef]bool)
	for _, c := range g.connections {
		connected[c.From] = true
		connected[c.To] = true
	}
	for _, s := range g.inflows {
		connected[s.Into] = true
	}
	for _, d := range g.outflows {
		connected[d.From] = true
	}

	var out []StructureRef
	for ref, s := range g.structures {
		if s.IsGroup {
			continue
		}
		if !connected[ref] {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
