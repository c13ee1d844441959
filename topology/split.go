/*
split.go - Versioned, idempotent topology transformations

PURPOSE:
  The operations maintenance tooling runs against a live topology:
  splitting a structure into two (e.g. "Old TSF" -> "Old TSF" + "New TSF"),
  decommissioning a whole area ("Merensky North" removal), and reversing a
  connection's direction. Each runs its invariant checks before and after
  and either completes fully or leaves the graph untouched.

WHY NOT AD HOC SCRIPTS:
  These used to be one-off edits run by hand against the topology
  definition file. As checked operations they are repeatable, they refuse
  to leave dangling references, and a failed transformation cannot
  half-apply.
*/
package topology

// =============================================================================
// STRUCTURE SPLIT
// =============================================================================

// SplitStructure replaces the structure oldCode in area with two successors.
// A successor may reuse the old code ("Old TSF" -> "Old TSF" + "New TSF").
// Every flow connection touching the old structure is re-pointed by the
// caller-supplied reassign predicate, which must return the code of one of
// the two successors; boundary inflows and outflows all follow the first
// successor a, since external sources and sinks attach to the surviving
// primary structure. If any connection is left unresolved the whole split
// fails with StructureInUseError and nothing changes.
func (g *Graph) SplitStructure(
	area AreaCode,
	oldCode StructureCode,
	a, b Structure,
	reassign func(FlowConnection) StructureCode,
) error {
	oldRef := StructureRef{Area: area, Structure: oldCode}
	if _, ok := g.structures[oldRef]; !ok {
		return ErrUnknownStructure
	}

	valid := map[StructureCode]bool{a.Code: true, b.Code: true}

	// Dry run: resolve every touching edge before mutating anything.
	type repoint struct {
		index   int
		newFrom StructureRef
		newTo   StructureRef
	}
	var plan []repoint
	var unresolved []Signature

	for i, c := range g.connections {
		if c.From != oldRef && c.To != oldRef {
			continue
		}
		target := reassign(c)
		if !valid[target] {
			unresolved = append(unresolved, c.Signature())
			continue
		}
		rp := repoint{index: i, newFrom: c.From, newTo: c.To}
		if c.From == oldRef {
			rp.newFrom = StructureRef{Area: area, Structure: target}
		}
		if c.To == oldRef {
			rp.newTo = StructureRef{Area: area, Structure: target}
		}
		plan = append(plan, rp)
	}

	if len(unresolved) > 0 {
		return &StructureInUseError{Structure: oldRef, Unresolved: unresolved}
	}

	// Commit: retire the old structure first so a successor reusing its
	// code is not deleted, then register successors and re-point edges
	// and boundary flows.
	delete(g.structures, oldRef)
	a.Area, b.Area = area, area
	g.structures[a.Ref()] = a
	g.structures[b.Ref()] = b

	for _, rp := range plan {
		g.connections[rp.index].From = rp.newFrom
		g.connections[rp.index].To = rp.newTo
		g.connections[rp.index].Internal = !g.connections[rp.index].IsInterArea()
	}
	for i, s := range g.inflows {
		if s.Into == oldRef {
			g.inflows[i].Into = a.Ref()
		}
	}
	for i, d := range g.outflows {
		if d.From == oldRef {
			g.outflows[i].From = a.Ref()
		}
	}

	g.reindex()
	return nil
}

// =============================================================================
// AREA REMOVAL
// =============================================================================

// RemoveArea decommissions an area: its structures, internal connections,
// and boundary flows are removed in one pass. Inter-area transfers touching
// the removed area are also dropped (the counterpart area keeps nothing
// dangling). Idempotent: removing an absent area is a no-op.
func (g *Graph) RemoveArea(code AreaCode) {
	if _, ok := g.areas[code]; !ok {
		return
	}

	kept := g.connections[:0]
	for _, c := range g.connections {
		if c.From.Area == code || c.To.Area == code {
			continue
		}
		kept = append(kept, c)
	}
	g.connections = kept

	keptIn := g.inflows[:0]
	for _, s := range g.inflows {
		if s.Into.Area != code {
			keptIn = append(keptIn, s)
		}
	}
	g.inflows = keptIn

	keptOut := g.outflows[:0]
	for _, d := range g.outflows {
		if d.From.Area != code {
			keptOut = append(keptOut, d)
		}
	}
	g.outflows = keptOut

	for ref := range g.structures {
		if ref.Area == code {
			delete(g.structures, ref)
		}
	}
	delete(g.areas, code)
	g.reindex()
}

// =============================================================================
// DIRECTION REVERSAL
// =============================================================================

// ReversedFlow reports the flow-id rekey a direction reversal produced, so
// the volume-mapping layer can move the spreadsheet binding to the new id.
type ReversedFlow struct {
	OldFlowID string
	NewFlowID string
}

// ReverseConnection swaps an edge's endpoints. "Reversed direction" is an
// explicit from/to swap plus a mapping rekey, never a flag: the returned
// ReversedFlow tells the caller which mapping to move.
func (g *Graph) ReverseConnection(sig Signature) (ReversedFlow, error) {
	idx, ok := g.signatures[sig]
	if !ok {
		return ReversedFlow{}, ErrUnknownStructure
	}
	c := g.connections[idx]

	reversed := c
	reversed.From, reversed.To = c.To, c.From
	if _, exists := g.signatures[reversed.Signature()]; exists {
		return ReversedFlow{}, &DuplicateConnectionError{Signature: reversed.Signature()}
	}

	g.connections[idx] = reversed
	g.reindex()
	return ReversedFlow{OldFlowID: c.FlowID(), NewFlowID: reversed.FlowID()}, nil
}
