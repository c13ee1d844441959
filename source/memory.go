package source

import (
	"time"

	"github.com/hydrova/waterbalance-engine/hydro"
)

// =============================================================================
// MEMORY SERIES - In-memory SpreadsheetSeries (for testing/dev)
// =============================================================================

// MemorySeries implements SpreadsheetSeries over in-memory data. Every
// mutation bumps the file signature, so cache-invalidation behavior can be
// exercised without a real spreadsheet on disk.
type MemorySeries struct {
	sheets  map[string]*memorySheet
	version int64
}

type memorySheet struct {
	columns []string
	values  map[string]map[hydro.CalcDate]float64
}

func NewMemorySeries() *MemorySeries {
	return &MemorySeries{sheets: make(map[string]*memorySheet)}
}

// AddSheet registers a sheet with its column headers.
func (m *MemorySeries) AddSheet(sheet string, columns ...string) {
	m.sheets[sheet] = &memorySheet{
		columns: append([]string(nil), columns...),
		values:  make(map[string]map[hydro.CalcDate]float64),
	}
	m.version++
}

// SetValue records a monthly value, creating the column if needed.
func (m *MemorySeries) SetValue(sheet, column string, date hydro.CalcDate, value float64) {
	sh, ok := m.sheets[sheet]
	if !ok {
		m.AddSheet(sheet, column)
		sh = m.sheets[sheet]
	}
	if !containsColumn(sh.columns, column) {
		sh.columns = append(sh.columns, column)
	}
	if sh.values[column] == nil {
		sh.values[column] = make(map[hydro.CalcDate]float64)
	}
	sh.values[column][date] = value
	m.version++
}

// RemoveColumn drops a column and its values (simulates a spreadsheet
// layout change for reconciliation tests).
func (m *MemorySeries) RemoveColumn(sheet, column string) {
	sh, ok := m.sheets[sheet]
	if !ok {
		return
	}
	kept := sh.columns[:0]
	for _, c := range sh.columns {
		if c != column {
			kept = append(kept, c)
		}
	}
	sh.columns = kept
	delete(sh.values, column)
	m.version++
}

func (m *MemorySeries) ListSheetColumns(sheet string) ([]string, error) {
	sh, ok := m.sheets[sheet]
	if !ok {
		return nil, &SheetNotFoundError{Sheet: sheet}
	}
	return append([]string(nil), sh.columns...), nil
}

func (m *MemorySeries) MonthlyValue(sheet, column string, date hydro.CalcDate) (float64, bool, error) {
	sh, ok := m.sheets[sheet]
	if !ok {
		return 0, false, &SheetNotFoundError{Sheet: sheet}
	}
	vals, ok := sh.values[column]
	if !ok {
		return 0, false, nil
	}
	v, found := vals[date]
	return v, found, nil
}

func (m *MemorySeries) LatestDate() (hydro.CalcDate, bool) {
	var latest hydro.CalcDate
	found := false
	for _, sh := range m.sheets {
		for _, vals := range sh.values {
			for d := range vals {
				if !found || d.After(latest) {
					latest = d
					found = true
				}
			}
		}
	}
	return latest, found
}

// Signature models mtime+size with a version counter: any mutation "touches
// the file."
func (m *MemorySeries) Signature() FileSignature {
	return FileSignature{ModTime: time.Unix(m.version, 0).UTC(), Size: m.version}
}
