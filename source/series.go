/*
Package source resolves logical flow identifiers to numeric monthly volumes.

PURPOSE:
  The balance services ask for "the volume of softening__TO__reservoir in
  2025-06". This package answers that by searching, in order:

    1. the explicit FlowVolumeMapping for the identifier
    2. the registered alias table (for renamed column headers)
    3. a deterministic heuristic match against the sheet's column list
    4. nothing - the caller degrades to zero and flags

  Resolution is deterministic, and alias lookups always beat heuristic
  matching so that a renamed header does not churn between candidates.

MISSING-DATA POLICY:
  A (sheet, column) with no data row for a period returns 0.0, NOT an
  error. Most months genuinely have "no flow" rather than "missing data";
  the distinction is carried in DataQualityFlags upstream. Only an entirely
  absent sheet escalates (as SheetNotFoundError -> an error-severity flag).

SEE ALSO:
  - mapping.go: FlowVolumeMapping set and alias table
  - cache.go: per-sheet memo cache with file-signature invalidation
  - adapter.go: the Adapter tying it together
  - memory.go: in-memory SpreadsheetSeries for tests and demo data
*/
package source

import (
	"fmt"
	"time"

	"github.com/hydrova/waterbalance-engine/hydro"
)

// =============================================================================
// SPREADSHEET SERIES - Narrow contract over the time-series collaborator
// =============================================================================

// SpreadsheetSeries is the engine's view of the spreadsheet collaborator.
// Worksheet-range mechanics live behind this interface; the core only ever
// asks for "a value for (sheet, column, year, month)".
type SpreadsheetSeries interface {
	// ListSheetColumns returns the column headers of a sheet, or
	// SheetNotFoundError if the sheet is absent entirely.
	ListSheetColumns(sheet string) ([]string, error)

	// MonthlyValue returns the value for (sheet, column) in the given
	// period. found=false means no data row exists for that period, which
	// the adapter treats as 0.0 by policy.
	MonthlyValue(sheet, column string, date hydro.CalcDate) (value float64, found bool, err error)

	// LatestDate returns the most recent period with any data, if one exists.
	LatestDate() (hydro.CalcDate, bool)

	// Signature identifies the current state of the backing file. When it
	// changes the whole cache must be invalidated.
	Signature() FileSignature
}

// =============================================================================
// FILE SIGNATURE - mtime + size change detection
// =============================================================================

// FileSignature is the invalidation key for the per-sheet cache: when the
// backing file's modification time or size changes, every cached sheet is
// dropped at once. Partial invalidation risks serving stale values mixed
// with fresh ones.
type FileSignature struct {
	ModTime time.Time
	Size    int64
}

func (s FileSignature) Equal(o FileSignature) bool {
	return s.ModTime.Equal(o.ModTime) && s.Size == o.Size
}

func (s FileSignature) String() string {
	return fmt.Sprintf("%s/%d", s.ModTime.Format(time.RFC3339), s.Size)
}
