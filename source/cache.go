package source

import "github.com/hydrova/waterbalance-engine/hydro"

// =============================================================================
// SHEET CACHE - Explicitly owned, all-or-nothing invalidation
// =============================================================================

// SheetCache memoizes per-sheet column lists and monthly values for the
// process lifetime. It is an explicitly owned object injected into the
// Adapter - not global state with ad hoc reset functions - and it is
// invalidated wholesale, never incrementally: partial invalidation risks
// serving stale values mixed with fresh ones.
type SheetCache struct {
	sig     FileSignature
	columns map[string][]string
	values  map[valueKey]cachedValue
}

type valueKey struct {
	Sheet  string
	Column string
	Date   hydro.CalcDate
}

type cachedValue struct {
	Value float64
	Found bool
}

func NewSheetCache() *SheetCache {
	c := &SheetCache{}
	c.Invalidate()
	return c
}

// Invalidate drops everything. Called whenever the backing file's
// signature changes.
func (c *SheetCache) Invalidate() {
	c.columns = make(map[string][]string)
	c.values = make(map[valueKey]cachedValue)
}

// RefreshIfChanged compares the current file signature against the one the
// cache was filled under and invalidates on mismatch. Returns true if the
// cache was dropped.
func (c *SheetCache) RefreshIfChanged(sig FileSignature) bool {
	if c.sig.Equal(sig) {
		return false
	}
	c.sig = sig
	c.Invalidate()
	return true
}

func (c *SheetCache) Columns(sheet string) ([]string, bool) {
	cols, ok := c.columns[sheet]
	return cols, ok
}

func (c *SheetCache) PutColumns(sheet string, cols []string) {
	c.columns[sheet] = cols
}

func (c *SheetCache) Value(sheet, column string, date hydro.CalcDate) (float64, bool, bool) {
	v, ok := c.values[valueKey{Sheet: sheet, Column: column, Date: date}]
	return v.Value, v.Found, ok
}

func (c *SheetCache) PutValue(sheet, column string, date hydro.CalcDate, value float64, found bool) {
	c.values[valueKey{Sheet: sheet, Column: column, Date: date}] = cachedValue{Value: value, Found: found}
}
