/*
mapping.go - Flow volume mappings and the alias table

PURPOSE:
  A FlowVolumeMapping binds a logical flow identifier (derived from the
  from/to structure codes, e.g. "softening__TO__reservoir") to a concrete
  column in a specific area sheet. Mappings are created by auto-mapping
  heuristics, corrected manually, invalidated when the spreadsheet
  structure changes, and re-synced by the Reconcile pass.

INVARIANTS:
  1. At most one ENABLED mapping resolves to a given (sheet, column) pair.
  2. Disabled mappings are retained for audit/history, never deleted.
  3. An alias may not be re-registered against a conflicting target.
*/
package source

import (
	"sort"
	"strings"
)

// =============================================================================
// TARGET - A concrete (sheet, column) cell address family
// =============================================================================

type Target struct {
	Sheet  string
	Column string
}

func (t Target) String() string { return t.Sheet + "!" + t.Column }

// =============================================================================
// FLOW VOLUME MAPPING
// =============================================================================

type Mapping struct {
	FlowID  string
	Target  Target
	Enabled bool

	// Alias records the previous column header this mapping tracked, kept
	// so renamed headers keep resolving.
	Alias string
}

// MappingSet holds all mappings, enabled and disabled.
type MappingSet struct {
	byFlowID map[string]*Mapping
	all      []*Mapping
}

func NewMappingSet() *MappingSet {
	return &MappingSet{byFlowID: make(map[string]*Mapping)}
}

// Add registers a mapping. Adding an enabled mapping whose target is
// already occupied by another enabled mapping fails with
// MappingConflictError; the existing mapping wins.
func (m *MappingSet) Add(mp Mapping) error {
	if mp.Enabled {
		if holder, ok := m.enabledHolder(mp.Target); ok && holder.FlowID != mp.FlowID {
			return &MappingConflictError{FlowID: mp.FlowID, Occupied: mp.Target, ByFlowID: holder.FlowID}
		}
	}
	if existing, ok := m.byFlowID[mp.FlowID]; ok {
		*existing = mp
		return nil
	}
	cp := mp
	m.byFlowID[mp.FlowID] = &cp
	m.all = append(m.all, &cp)
	return nil
}

// Disable retires a mapping but keeps it for audit/history.
func (m *MappingSet) Disable(flowID string) {
	if mp, ok := m.byFlowID[flowID]; ok {
		mp.Enabled = false
	}
}

// Rekey moves a mapping from one flow id to another. Used after a
// connection's direction is reversed: the spreadsheet binding follows the
// edge to its new identifier.
func (m *MappingSet) Rekey(oldFlowID, newFlowID string) bool {
	mp, ok := m.byFlowID[oldFlowID]
	if !ok {
		return false
	}
	delete(m.byFlowID, oldFlowID)
	mp.FlowID = newFlowID
	m.byFlowID[newFlowID] = mp
	return true
}

// Enabled returns the enabled mapping for a flow id, if any.
func (m *MappingSet) Enabled(flowID string) (Mapping, bool) {
	mp, ok := m.byFlowID[flowID]
	if !ok || !mp.Enabled {
		return Mapping{}, false
	}
	return *mp, true
}

// All returns every mapping, enabled and disabled, in insertion order.
func (m *MappingSet) All() []Mapping {
	out := make([]Mapping, 0, len(m.all))
	for _, mp := range m.all {
		out = append(out, *mp)
	}
	return out
}

func (m *MappingSet) enabledHolder(t Target) (*Mapping, bool) {
	for _, mp := range m.all {
		if mp.Enabled && mp.Target == t {
			return mp, true
		}
	}
	return nil, false
}

// =============================================================================
// ALIAS TABLE - Renamed headers keep resolving
// =============================================================================

// AliasTable maps an old column header (or logical name) to its current
// target. Alias lookups take precedence over heuristic matching so header
// renames do not cause resolution churn.
type AliasTable struct {
	aliases map[string]Target
}

func NewAliasTable() *AliasTable {
	return &AliasTable{aliases: make(map[string]Target)}
}

// Register binds an alias. Re-registering the same alias with the same
// target is a no-op; a conflicting target fails with AmbiguousAliasError.
func (a *AliasTable) Register(alias string, target Target) error {
	key := normalize(alias)
	if existing, ok := a.aliases[key]; ok && existing != target {
		return &AmbiguousAliasError{Alias: alias, Existing: existing, Proposed: target}
	}
	a.aliases[key] = target
	return nil
}

func (a *AliasTable) Lookup(name string) (Target, bool) {
	t, ok := a.aliases[normalize(name)]
	return t, ok
}

// =============================================================================
// HEURISTIC MATCHING - Deterministic fallback for unmapped identifiers
// =============================================================================

// normalize lowercases and strips everything but letters and digits, so
// "Softening -> Reservoir" and "softening__TO__reservoir" compare equal
// modulo separators.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// heuristicMatch finds the column most plausibly carrying a flow id's
// series. Exact normalized equality wins; otherwise containment either way.
// Ties break lexicographically so resolution is deterministic run to run.
func heuristicMatch(flowID string, columns []string) (string, bool) {
	want := normalize(flowID)
	if want == "" {
		return "", false
	}

	var exact, partial []string
	for _, col := range columns {
		got := normalize(col)
		switch {
		case got == want:
			exact = append(exact, col)
		case got != "" && (strings.Contains(got, want) || strings.Contains(want, got)):
			partial = append(partial, col)
		}
	}

	if len(exact) > 0 {
		sort.Strings(exact)
		return exact[0], true
	}
	if len(partial) > 0 {
		sort.Strings(partial)
		return partial[0], true
	}
	return "", false
}
