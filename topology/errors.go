/*
errors.go - Topology error types

PURPOSE:
  Topology errors are raised at edit time and block the edit. They are
  never silently auto-corrected and never degrade-and-flag (that policy is
  reserved for data-resolution gaps - see hydro/flags.go).
*/
package topology

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrDuplicateConnection = errors.New("duplicate flow connection")
	ErrStructureInUse      = errors.New("structure still referenced by connections")
	ErrInvalidConnection   = errors.New("invalid flow connection")
	ErrUnknownArea         = errors.New("unknown area")
	ErrUnknownStructure    = errors.New("unknown structure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateConnectionError reports an insert whose signature collides with
// an existing edge.
type DuplicateConnectionError struct {
	Signature Signature
}

func (e *DuplicateConnectionError) Error() string {
	return fmt.Sprintf("duplicate flow connection: %s", e.Signature)
}

func (e *DuplicateConnectionError) Unwrap() error { return ErrDuplicateConnection }

// StructureInUseError reports a split or removal that would leave edges
// pointing at a structure that no longer exists.
type StructureInUseError struct {
	Structure  StructureRef
	Unresolved []Signature
}

func (e *StructureInUseError) Error() string {
	return fmt.Sprintf("structure %s in use: %d connection(s) unresolved", e.Structure, len(e.Unresolved))
}

func (e *StructureInUseError) Unwrap() error { return ErrStructureInUse }

// InvalidConnectionError reports an edge that violates a construction
// invariant (e.g. a non-recirculation self-loop).
type InvalidConnectionError struct {
	Signature Signature
	Reason    string
}

func (e *InvalidConnectionError) Error() string {
	return fmt.Sprintf("invalid flow connection %s: %s", e.Signature, e.Reason)
}

func (e *InvalidConnectionError) Unwrap() error { return ErrInvalidConnection }
