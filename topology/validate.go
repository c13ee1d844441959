package topology

import "fmt"

// =============================================================================
// VALIDATION - Invariants enforced at validation time, not per-edit
// =============================================================================

// Issue is one validation finding. Severity "error" findings violate hard
// invariants; "warning" findings (orphans, duplicates from loaded
// definitions) are surfaced to the operator for cleanup.
type Issue struct {
	Severity string // "error" | "warning"
	Code     string
	Detail   string
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Code, i.Detail)
}

// Validate runs the whole-graph invariant checks:
//
//  1. Every dirty inter-area transfer must be bidirectional (dirty-water
//     return paths are physically reversible).
//  2. Self-loops must carry flow type recirculation.
//  3. Duplicate signatures (possible via LoadConnection) are reported.
//  4. Orphaned structures are reported as warnings.
//
// A nil return means the topology is clean.
func (g *Graph) Validate() []Issue {
	var issues []Issue

	for _, c := range g.connections {
		if c.IsInterArea() && c.FlowType == FlowDirty && !c.Bidirectional {
			issues = append(issues, Issue{
				Severity: "error",
				Code:     "dirty_transfer_not_bidirectional",
				Detail:   c.Signature().String(),
			})
		}
		if c.IsSelfLoop() && c.FlowType != FlowRecirculation {
			issues = append(issues, Issue{
				Severity: "error",
				Code:     "self_loop_not_recirculation",
				Detail:   c.Signature().String(),
			})
		}
	}

	for _, d := range g.DetectDuplicates() {
		issues = append(issues, Issue{
			Severity: "warning",
			Code:     "duplicate_connection",
			Detail:   fmt.Sprintf("%s ×%d", d.Signature, d.Count),
		})
	}

	for _, ref := range g.DetectOrphans() {
		issues = append(issues, Issue{
			Severity: "warning",
			Code:     "orphaned_structure",
			Detail:   ref.String(),
		})
	}

	return issues
}
