package storage

import (
	"context"
	"sort"

	"github.com/hydrova/waterbalance-engine/hydro"
)

// =============================================================================
// FACILITY STORE - Narrow contract over the relational collaborator
// =============================================================================

type FacilityStore interface {
	// StorageFacilities returns all facilities, ordered by code.
	StorageFacilities(ctx context.Context) ([]Facility, error)

	// Facility returns one facility by code, or hydro.ErrFacilityNotFound.
	Facility(ctx context.Context, code FacilityCode) (Facility, error)
}

// =============================================================================
// MEMORY STORE - In-memory FacilityStore + HistoryStore (for testing/dev)
// =============================================================================

// MemoryStore keeps facilities and history in memory while honoring the
// same latest-period live-volume rule the sqlite store enforces.
type MemoryStore struct {
	facilities map[FacilityCode]Facility
	history    map[FacilityCode]map[hydro.CalcDate]History
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		facilities: make(map[FacilityCode]Facility),
		history:    make(map[FacilityCode]map[hydro.CalcDate]History),
	}
}

func (m *MemoryStore) PutFacility(f Facility) {
	m.facilities[f.Code] = f
}

func (m *MemoryStore) StorageFacilities(_ context.Context) ([]Facility, error) {
	out := make([]Facility, 0, len(m.facilities))
	for _, f := range m.facilities {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryStore) Facility(_ context.Context, code FacilityCode) (Facility, error) {
	f, ok := m.facilities[code]
	if !ok {
		return Facility{}, hydro.ErrFacilityNotFound
	}
	return f, nil
}

func (m *MemoryStore) History(_ context.Context, code FacilityCode, date hydro.CalcDate) (History, bool, error) {
	h, ok := m.history[code][date]
	return h, ok, nil
}

func (m *MemoryStore) LatestPeriod(_ context.Context, code FacilityCode) (hydro.CalcDate, bool, error) {
	var latest hydro.CalcDate
	found := false
	for d := range m.history[code] {
		if !found || d.After(latest) {
			latest = d
			found = true
		}
	}
	return latest, found, nil
}

// UpsertHistory writes the row and, only when the row is at or after the
// facility's latest period, refreshes the live current volume. Back-edits
// to historical periods never touch "now."
func (m *MemoryStore) UpsertHistory(ctx context.Context, h History) error {
	latest, hasHistory, err := m.LatestPeriod(ctx, h.Facility)
	if err != nil {
		return err
	}

	if m.history[h.Facility] == nil {
		m.history[h.Facility] = make(map[hydro.CalcDate]History)
	}
	m.history[h.Facility][h.Date] = h

	if f, ok := m.facilities[h.Facility]; ok {
		if !hasHistory || !h.Date.Before(latest) {
			f.CurrentVolume = h.Closing
			m.facilities[h.Facility] = f
		}
	}
	return nil
}
