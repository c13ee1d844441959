/*
storage_service.go - Monthly storage snapshot assembly

PURPOSE:
  For each storage facility: infer the opening volume (prior month's
  closing, or the live snapshot when no history exists), resolve the
  closing volume, and total the fleet. Closing resolution order:

    1. relational store history row           -> source "database"
    2. spreadsheet series via the adapter     -> source "excel"
    3. nothing                                -> 0 + flag, source
                                                 "none (defaulted to 0)"

  The service never raises on missing data; it degrades and flags.
*/
package balance

import (
	"context"
	"fmt"

	"github.com/hydrova/waterbalance-engine/hydro"
	"github.com/hydrova/waterbalance-engine/source"
	"github.com/hydrova/waterbalance-engine/storage"
)

// DefaultStorageSheet is the sheet carrying per-facility closing columns
// when closings come from the spreadsheet rather than the database.
const DefaultStorageSheet = "Storage"

// =============================================================================
// STORAGE SERVICE
// =============================================================================

type StorageService struct {
	Facilities storage.FacilityStore
	History    storage.HistoryStore

	// Adapter is the optional spreadsheet fallback for closing volumes.
	Adapter *source.Adapter

	// StorageSheet overrides DefaultStorageSheet when set.
	StorageSheet string
}

func (s *StorageService) sheet() string {
	if s.StorageSheet != "" {
		return s.StorageSheet
	}
	return DefaultStorageSheet
}

// Snapshot assembles the monthly storage picture for the whole fleet.
func (s *StorageService) Snapshot(ctx context.Context, date hydro.CalcDate, flags *hydro.DataQualityFlags) (StorageSnapshot, error) {
	facilities, err := s.Facilities.StorageFacilities(ctx)
	if err != nil {
		return StorageSnapshot{}, err
	}

	snap := StorageSnapshot{
		Opening:       hydro.ZeroVolume(),
		Closing:       hydro.ZeroVolume(),
		Delta:         hydro.ZeroVolume(),
		TotalCapacity: hydro.ZeroVolume(),
	}

	for _, f := range facilities {
		opening, prov, err := storage.OpeningForPeriod(ctx, s.History, f, date)
		if err != nil {
			return StorageSnapshot{}, err
		}
		if prov == storage.OpeningFromSnapshot {
			flags.Add(hydro.SeverityInfo, "opening_inferred", string(f.Code),
				"no prior history; opening taken from live snapshot")
		}

		closing, src := s.resolveClosing(ctx, f, date, flags)

		if f.IsOverfull() {
			flags.Add(hydro.SeverityWarning, "overfull_facility", string(f.Code),
				fmt.Sprintf("current volume %s exceeds capacity %s", f.CurrentVolume, f.Capacity))
		}
		// A month's drawdown larger than the whole facility means a bad
		// reading somewhere.
		delta := closing.Sub(opening)
		if delta.IsNegative() && delta.Neg().GreaterThan(f.Capacity) {
			flags.Add(hydro.SeverityWarning, "implausible_drawdown", string(f.Code),
				fmt.Sprintf("storage fell by %s, more than capacity %s", delta.Neg(), f.Capacity))
		}

		snap.Facilities = append(snap.Facilities, FacilityStorage{
			Code:     f.Code,
			Capacity: f.Capacity,
			Opening:  opening,
			Closing:  closing,
			Source:   src,
		})
		snap.Opening = snap.Opening.Add(opening)
		snap.Closing = snap.Closing.Add(closing)
		snap.TotalCapacity = snap.TotalCapacity.Add(f.Capacity)
	}

	snap.Delta = snap.Closing.Sub(snap.Opening)
	return snap, nil
}

func (s *StorageService) resolveClosing(ctx context.Context, f storage.Facility, date hydro.CalcDate, flags *hydro.DataQualityFlags) (hydro.Volume, string) {
	h, ok, err := s.History.History(ctx, f.Code, date)
	if err != nil {
		// A store failure is not the same thing as an absent row; say so
		// before falling through to the spreadsheet.
		flags.Add(hydro.SeverityError, "history_store_error", string(f.Code),
			fmt.Sprintf("history lookup for %s failed: %v", date, err))
	} else if ok {
		return h.Closing, "database"
	}

	if s.Adapter != nil {
		if target, ok := s.Adapter.Resolve(string(f.Code), s.sheet()); ok {
			v, err := s.Adapter.GetValue(target, date)
			if err == nil {
				return v, "excel"
			}
			flags.Add(hydro.SeverityError, "sheet_missing", string(f.Code),
				fmt.Sprintf("storage sheet unreadable: %v", err))
		}
	}

	flags.Add(hydro.SeverityWarning, "closing_missing", string(f.Code),
		fmt.Sprintf("no closing volume for %s in database or spreadsheet; defaulted to 0", date))
	return hydro.ZeroVolume(), "none (defaulted to 0)"
}
