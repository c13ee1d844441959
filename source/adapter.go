/*
adapter.go - The volume source adapter

PURPOSE:
  Resolves (flow id, period) to a volume in m³. This is the single funnel
  through which spreadsheet data enters the calculation core, and the place
  where the degrade-and-flag policy is applied: calculation never aborts on
  missing data.

RESOLUTION ORDER (deterministic):
  1. explicit enabled FlowVolumeMapping
  2. alias table (renamed headers)
  3. heuristic match against the sheet's column list
  4. unresolved -> zero + flag

SEE ALSO:
  - balance/: the per-category services calling Volume()
*/
package source

import (
	"fmt"

	"github.com/hydrova/waterbalance-engine/hydro"
)

// =============================================================================
// ADAPTER
// =============================================================================

type Adapter struct {
	series   SpreadsheetSeries
	mappings *MappingSet
	aliases  *AliasTable
	cache    *SheetCache
}

func NewAdapter(series SpreadsheetSeries, mappings *MappingSet, aliases *AliasTable, cache *SheetCache) *Adapter {
	if mappings == nil {
		mappings = NewMappingSet()
	}
	if aliases == nil {
		aliases = NewAliasTable()
	}
	if cache == nil {
		cache = NewSheetCache()
	}
	return &Adapter{series: series, mappings: mappings, aliases: aliases, cache: cache}
}

func (a *Adapter) Mappings() *MappingSet { return a.mappings }
func (a *Adapter) Aliases() *AliasTable  { return a.aliases }

// Invalidate drops the whole cache. Callers invoke this (or rely on
// RefreshIfChanged) whenever the underlying spreadsheet file changes.
func (a *Adapter) Invalidate() {
	a.cache.Invalidate()
}

// RefreshIfChanged checks the backing file's mtime+size signature and
// invalidates the cache on change. Returns true if the cache was dropped.
func (a *Adapter) RefreshIfChanged() bool {
	return a.cache.RefreshIfChanged(a.series.Signature())
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Resolve finds the (sheet, column) target for a flow id within a sheet.
// Explicit mapping, then alias, then heuristic; ok=false when unresolved.
func (a *Adapter) Resolve(flowID, sheet string) (Target, bool) {
	if mp, ok := a.mappings.Enabled(flowID); ok {
		return mp.Target, true
	}
	if t, ok := a.aliases.Lookup(flowID); ok {
		return t, true
	}

	cols, err := a.sheetColumns(sheet)
	if err != nil {
		return Target{}, false
	}
	if col, ok := heuristicMatch(flowID, cols); ok {
		return Target{Sheet: sheet, Column: col}, true
	}
	return Target{}, false
}

// GetValue reads a resolved target for a period. A missing data row is
// 0.0 by policy; only an entirely absent sheet returns an error.
func (a *Adapter) GetValue(target Target, date hydro.CalcDate) (hydro.Volume, error) {
	if v, found, cached := a.cache.Value(target.Sheet, target.Column, date); cached {
		if !found {
			return hydro.ZeroVolume(), nil
		}
		return hydro.NewVolume(v), nil
	}

	// Probe sheet existence first so "sheet absent" and "row absent" stay
	// distinct failure modes.
	if _, err := a.sheetColumns(target.Sheet); err != nil {
		return hydro.ZeroVolume(), err
	}

	v, found, err := a.series.MonthlyValue(target.Sheet, target.Column, date)
	if err != nil {
		return hydro.ZeroVolume(), err
	}
	a.cache.PutValue(target.Sheet, target.Column, date, v, found)
	if !found {
		return hydro.ZeroVolume(), nil
	}
	return hydro.NewVolume(v), nil
}

// Volume is the high-level read the balance services use: resolve, read,
// degrade to zero and flag on any gap. It never returns an error.
func (a *Adapter) Volume(flowID, sheet string, date hydro.CalcDate, flags *hydro.DataQualityFlags) hydro.Volume {
	src := sheet + "/" + flowID

	target, ok := a.Resolve(flowID, sheet)
	if !ok {
		flags.Add(hydro.SeverityWarning, "unresolved_flow", src,
			fmt.Sprintf("no mapping, alias, or column match for %q in sheet %q; defaulted to 0", flowID, sheet))
		return hydro.ZeroVolume()
	}

	v, err := a.GetValue(target, date)
	if err != nil {
		flags.Add(hydro.SeverityError, "sheet_missing", src,
			fmt.Sprintf("sheet %q absent: %v; defaulted to 0", target.Sheet, err))
		return hydro.ZeroVolume()
	}
	return v
}

// LatestDate exposes the series' most recent period for UI display.
func (a *Adapter) LatestDate() (hydro.CalcDate, bool) {
	return a.series.LatestDate()
}

func (a *Adapter) sheetColumns(sheet string) ([]string, error) {
	if cols, ok := a.cache.Columns(sheet); ok {
		return cols, nil
	}
	cols, err := a.series.ListSheetColumns(sheet)
	if err != nil {
		return nil, err
	}
	a.cache.PutColumns(sheet, cols)
	return cols, nil
}

// =============================================================================
// AUTO-MAPPING & RECONCILIATION
// =============================================================================

// AutoMap proposes enabled mappings for the given flow ids by heuristic
// matching against a sheet's columns. Flow ids that already hold an enabled
// mapping are skipped; unmatched ids are simply absent from the result.
func (a *Adapter) AutoMap(flowIDs []string, sheet string) ([]Mapping, error) {
	cols, err := a.sheetColumns(sheet)
	if err != nil {
		return nil, err
	}

	var proposals []Mapping
	for _, id := range flowIDs {
		if _, ok := a.mappings.Enabled(id); ok {
			continue
		}
		if col, ok := heuristicMatch(id, cols); ok {
			proposals = append(proposals, Mapping{
				FlowID:  id,
				Target:  Target{Sheet: sheet, Column: col},
				Enabled: true,
			})
		}
	}
	return proposals, nil
}

// Reconcile checks every enabled mapping against the current sheet
// structure and disables mappings whose column no longer exists, flagging
// each one. Run after the spreadsheet layout changes.
func (a *Adapter) Reconcile(flags *hydro.DataQualityFlags) int {
	disabled := 0
	for _, mp := range a.mappings.All() {
		if !mp.Enabled {
			continue
		}
		cols, err := a.sheetColumns(mp.Target.Sheet)
		if err != nil {
			a.mappings.Disable(mp.FlowID)
			flags.Add(hydro.SeverityError, "mapping_sheet_missing", mp.FlowID,
				fmt.Sprintf("sheet %q gone; mapping disabled", mp.Target.Sheet))
			disabled++
			continue
		}
		if !containsColumn(cols, mp.Target.Column) {
			a.mappings.Disable(mp.FlowID)
			flags.Add(hydro.SeverityWarning, "mapping_column_missing", mp.FlowID,
				fmt.Sprintf("column %q gone from sheet %q; mapping disabled", mp.Target.Column, mp.Target.Sheet))
			disabled++
		}
	}
	return disabled
}

func containsColumn(cols []string, col string) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}
