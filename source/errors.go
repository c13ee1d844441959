package source

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrSheetNotFound means the sheet is absent entirely. This is distinct
	// from "value missing for this month" (which degrades to 0.0): a missing
	// sheet is escalated as a data-quality flag upstream.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrAmbiguousAlias means two aliases resolve to the same target with
	// conflicting sheets.
	ErrAmbiguousAlias = errors.New("ambiguous alias")

	// ErrMappingConflict means a second enabled mapping would resolve to a
	// (sheet, column) pair that an enabled mapping already occupies.
	ErrMappingConflict = errors.New("mapping conflict")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type SheetNotFoundError struct {
	Sheet string
}

func (e *SheetNotFoundError) Error() string {
	return fmt.Sprintf("sheet %q not found", e.Sheet)
}

func (e *SheetNotFoundError) Unwrap() error { return ErrSheetNotFound }

type AmbiguousAliasError struct {
	Alias    string
	Existing Target
	Proposed Target
}

func (e *AmbiguousAliasError) Error() string {
	return fmt.Sprintf("alias %q already targets %s, conflicting with %s", e.Alias, e.Existing, e.Proposed)
}

func (e *AmbiguousAliasError) Unwrap() error { return ErrAmbiguousAlias }

type MappingConflictError struct {
	FlowID   string
	Occupied Target
	ByFlowID string
}

func (e *MappingConflictError) Error() string {
	return fmt.Sprintf("mapping for %q conflicts: %s already resolved by enabled mapping for %q", e.FlowID, e.Occupied, e.ByFlowID)
}

func (e *MappingConflictError) Unwrap() error { return ErrMappingConflict }
