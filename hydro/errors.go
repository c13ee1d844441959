/*
errors.go - Cross-package sentinel errors

PURPOSE:
  Sentinels shared by the store implementations and the services that read
  from them. Package-specific structured errors (duplicate connections,
  missing sheets) live with their packages; only the errors that cross
  package boundaries belong here.

ERROR CATEGORIES (see the propagation policy in flags.go):
  1. Not-found errors - a referenced record does not exist
  2. Store errors - persistence-level failures

USAGE:
  if errors.Is(err, hydro.ErrFacilityNotFound) { ... }
*/
package hydro

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrFacilityNotFound is returned when a referenced storage facility
	// does not exist in the relational store.
	ErrFacilityNotFound = errors.New("storage facility not found")

	// ErrAreaNotFound is returned when a referenced mine area does not exist.
	ErrAreaNotFound = errors.New("area not found")

	// ErrStructureNotFound is returned when a referenced structure does not
	// exist within its area.
	ErrStructureNotFound = errors.New("structure not found")

	// ErrHistoryNotFound is returned when no storage history row exists for
	// a (facility, period) pair. Callers generally treat this as "infer the
	// opening from the live snapshot" rather than as a failure.
	ErrHistoryNotFound = errors.New("storage history not found")

	// ErrStoreFailed is returned when a persistence operation cannot complete.
	ErrStoreFailed = errors.New("store operation failed")
)

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFacilityNotFound) ||
		errors.Is(err, ErrAreaNotFound) ||
		errors.Is(err, ErrStructureNotFound) ||
		errors.Is(err, ErrHistoryNotFound)
}
