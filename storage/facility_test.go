package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hydrova/waterbalance-engine/hydro"
	"github.com/hydrova/waterbalance-engine/storage"
)

func m3(v float64) hydro.Volume { return hydro.NewVolume(v) }

func testDam() storage.Facility {
	return storage.Facility{
		Code:          "main-dam",
		Name:          "Main Storage Dam",
		Capacity:      m3(100000),
		CurrentVolume: m3(40000),
		PumpStartPct:  decimal.NewFromInt(80),
		PumpStopPct:   decimal.NewFromInt(20),
	}
}

// =============================================================================
// FACILITY LEVELS
// =============================================================================

func TestFacility_LevelAndThresholds(t *testing.T) {
	f := testDam()
	if !f.LevelPct().Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected 40%%, got %v", f.LevelPct())
	}
	if f.AtPumpStart() {
		t.Error("40%% is below the 80%% pump-start level")
	}

	f.CurrentVolume = m3(80000)
	if !f.AtPumpStart() {
		t.Error("80%% is at the pump-start level")
	}
}

func TestFacility_ZeroCapacity_NoNaN(t *testing.T) {
	// GIVEN: A facility with zero capacity (bad setup data)
	// WHEN: Computing level
	// THEN: 0, never NaN - and it never reports at-pump-start

	f := storage.Facility{Code: "x", CurrentVolume: m3(10)}
	if !f.LevelPct().IsZero() {
		t.Errorf("expected 0, got %v", f.LevelPct())
	}
}

func TestFacility_Overfull_SoftInvariant(t *testing.T) {
	f := testDam()
	f.CurrentVolume = m3(120000)
	if !f.IsOverfull() {
		t.Error("expected overfull")
	}
	if !f.RemainingCapacity().IsZero() {
		t.Errorf("overfull facility absorbs nothing, got %v", f.RemainingCapacity())
	}
}

// =============================================================================
// OPENING INFERENCE
// =============================================================================

func TestOpeningForPeriod_PriorClosingWins(t *testing.T) {
	// GIVEN: History for month N-1 with closing=X
	// WHEN: Inferring the opening for month N
	// THEN: X, provenance prior_closing

	ctx := context.Background()
	store := storage.NewMemoryStore()
	f := testDam()
	store.PutFacility(f)

	may := hydro.NewCalcDate(2025, time.May)
	june := hydro.NewCalcDate(2025, time.June)
	if err := store.UpsertHistory(ctx, storage.History{Facility: f.Code, Date: may, Closing: m3(55000), Source: "database"}); err != nil {
		t.Fatal(err)
	}

	opening, prov, err := storage.OpeningForPeriod(ctx, store, f, june)
	if err != nil {
		t.Fatal(err)
	}
	if opening.Float64() != 55000 || prov != storage.OpeningFromHistory {
		t.Errorf("expected 55000 from prior_closing, got %v (%s)", opening, prov)
	}
}

func TestOpeningForPeriod_NoHistory_UsesLiveSnapshot(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	f := testDam()

	opening, prov, err := storage.OpeningForPeriod(ctx, store, f, hydro.NewCalcDate(2025, time.June))
	if err != nil {
		t.Fatal(err)
	}
	if opening.Float64() != 40000 || prov != storage.OpeningFromSnapshot {
		t.Errorf("expected live snapshot 40000, got %v (%s)", opening, prov)
	}
}

// =============================================================================
// LATEST-PERIOD LIVE-VOLUME RULE
// =============================================================================

func TestUpsertHistory_OnlyLatestPeriodUpdatesLiveVolume(t *testing.T) {
	// GIVEN: June history already written (live volume = June closing)
	// WHEN: Back-editing May
	// THEN: The live volume still reflects June, not May

	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.PutFacility(testDam())

	june := hydro.NewCalcDate(2025, time.June)
	may := hydro.NewCalcDate(2025, time.May)

	if err := store.UpsertHistory(ctx, storage.History{Facility: "main-dam", Date: june, Closing: m3(70000)}); err != nil {
		t.Fatal(err)
	}
	f, err := store.Facility(ctx, "main-dam")
	if err != nil {
		t.Fatal(err)
	}
	if f.CurrentVolume.Float64() != 70000 {
		t.Fatalf("latest-period upsert should update live volume, got %v", f.CurrentVolume)
	}

	// Back-dated correction.
	if err := store.UpsertHistory(ctx, storage.History{Facility: "main-dam", Date: may, Closing: m3(10000)}); err != nil {
		t.Fatal(err)
	}
	f, _ = store.Facility(ctx, "main-dam")
	if f.CurrentVolume.Float64() != 70000 {
		t.Errorf("back-edit must not mutate the live volume, got %v", f.CurrentVolume)
	}

	// But the May row itself was written.
	h, ok, _ := store.History(ctx, "main-dam", may)
	if !ok || h.Closing.Float64() != 10000 {
		t.Errorf("back-edit row not persisted: %+v (ok=%v)", h, ok)
	}
}
