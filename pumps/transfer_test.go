package pumps_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hydrova/waterbalance-engine/hydro"
	"github.com/hydrova/waterbalance-engine/pumps"
	"github.com/hydrova/waterbalance-engine/storage"
)

func m3(v float64) hydro.Volume { return hydro.NewVolume(v) }

func pct(v int) decimal.Decimal { return decimal.NewFromInt(int64(v)) }

// source at 90% of 100000 with an 80% start level; 5% increment = 4500 m³
func sourceDam(feeds ...storage.FacilityCode) storage.Facility {
	return storage.Facility{
		Code:          "source",
		Capacity:      m3(100000),
		CurrentVolume: m3(90000),
		PumpStartPct:  pct(80),
		PumpStopPct:   pct(20),
		FeedsTo:       feeds,
	}
}

func dest(code storage.FacilityCode, capacity, current float64) storage.Facility {
	return storage.Facility{Code: code, Capacity: m3(capacity), CurrentVolume: m3(current)}
}

// =============================================================================
// THRESHOLD STATES
// =============================================================================

func TestPumpTransfers_BelowStart_NoTransfer(t *testing.T) {
	// GIVEN: Source at 50%, start level 80%
	// WHEN: Simulating
	// THEN: Not at pump start, no transfers

	src := sourceDam("d1")
	src.CurrentVolume = m3(50000)
	plans := (&pumps.Engine{}).CalculatePumpTransfers([]storage.Facility{src, dest("d1", 50000, 0)})

	p := plans["source"]
	if p.AtPumpStart {
		t.Error("50% is below the 80% start level")
	}
	if len(p.Transfers) != 0 {
		t.Errorf("expected no transfers, got %v", p.Transfers)
	}
}

func TestPumpTransfers_AtStart_FixedIncrement(t *testing.T) {
	// GIVEN: Source at 90% (above 80% start), one roomy destination
	// WHEN: Simulating with the default 5% increment
	// THEN: One transfer of 4500 m³ with before/after destination levels

	plans := (&pumps.Engine{}).CalculatePumpTransfers([]storage.Facility{
		sourceDam("d1"),
		dest("d1", 50000, 10000),
	})

	p := plans["source"]
	if !p.AtPumpStart {
		t.Fatal("expected at pump start")
	}
	if len(p.Transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(p.Transfers))
	}
	tr := p.Transfers[0]
	if tr.Volume.Float64() != 4500 {
		t.Errorf("expected 4500 m³ (5%% of 90000), got %v", tr.Volume)
	}
	if !tr.DestLevelBeforePct.Equal(pct(20)) {
		t.Errorf("dest before: expected 20%%, got %v", tr.DestLevelBeforePct)
	}
	if !tr.DestLevelAfterPct.Equal(pct(29)) {
		t.Errorf("dest after: expected 29%%, got %v", tr.DestLevelAfterPct)
	}
	if !p.BlockedVolume.IsZero() {
		t.Errorf("nothing should be blocked, got %v", p.BlockedVolume)
	}
}

// =============================================================================
// CASCADING AND BLOCKING
// =============================================================================

func TestPumpTransfers_CascadeAcrossChain(t *testing.T) {
	// GIVEN: First destination can only absorb 1000 of the 4500 increment
	// WHEN: Simulating
	// THEN: Excess cascades to the second destination in chain order

	plans := (&pumps.Engine{}).CalculatePumpTransfers([]storage.Facility{
		sourceDam("d1", "d2"),
		dest("d1", 10000, 9000), // room for 1000
		dest("d2", 50000, 0),
	})

	p := plans["source"]
	if len(p.Transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %+v", p.Transfers)
	}
	if p.Transfers[0].Destination != "d1" || p.Transfers[0].Volume.Float64() != 1000 {
		t.Errorf("first transfer wrong: %+v", p.Transfers[0])
	}
	if p.Transfers[1].Destination != "d2" || p.Transfers[1].Volume.Float64() != 3500 {
		t.Errorf("cascade transfer wrong: %+v", p.Transfers[1])
	}
}

func TestPumpTransfers_AllDestinationsFull_Blocked(t *testing.T) {
	// GIVEN: Every destination full
	// WHEN: Simulating
	// THEN: No transfers; the whole increment reported blocked, no
	//       overflow fabricated

	plans := (&pumps.Engine{}).CalculatePumpTransfers([]storage.Facility{
		sourceDam("d1", "d2"),
		dest("d1", 10000, 10000),
		dest("d2", 20000, 20000),
	})

	p := plans["source"]
	if len(p.Transfers) != 0 {
		t.Errorf("expected no transfers, got %+v", p.Transfers)
	}
	if p.BlockedVolume.Float64() != 4500 {
		t.Errorf("expected 4500 blocked, got %v", p.BlockedVolume)
	}
}

func TestPumpTransfers_ConfigurableIncrement(t *testing.T) {
	e := &pumps.Engine{TransferPct: decimal.NewFromFloat(0.10)}
	plans := e.CalculatePumpTransfers([]storage.Facility{
		sourceDam("d1"),
		dest("d1", 50000, 0),
	})
	if got := plans["source"].Transfers[0].Volume.Float64(); got != 9000 {
		t.Errorf("expected 9000 (10%% of 90000), got %v", got)
	}
}

// =============================================================================
// NON-MUTATION INVARIANT
// =============================================================================

func TestPumpTransfers_SimulationNeverMutates(t *testing.T) {
	// GIVEN: A snapshot
	// WHEN: Simulating twice with no apply in between
	// THEN: Identical output both times; facility volumes untouched

	facilities := []storage.Facility{
		sourceDam("d1"),
		dest("d1", 50000, 10000),
	}
	e := &pumps.Engine{}

	first := e.CalculatePumpTransfers(facilities)
	second := e.CalculatePumpTransfers(facilities)

	if facilities[0].CurrentVolume.Float64() != 90000 || facilities[1].CurrentVolume.Float64() != 10000 {
		t.Fatal("simulation mutated the snapshot")
	}
	f1, f2 := first["source"], second["source"]
	if len(f1.Transfers) != len(f2.Transfers) || f1.Transfers[0].Volume.Float64() != f2.Transfers[0].Volume.Float64() {
		t.Error("repeated simulation produced different output")
	}
}

func TestApply_CommitsPlanAndChangesNextSimulation(t *testing.T) {
	// GIVEN: A plan for the snapshot
	// WHEN: Applying it explicitly
	// THEN: Volumes move; a fresh simulation now sees the new state

	facilities := []storage.Facility{
		sourceDam("d1"),
		dest("d1", 50000, 10000),
	}
	e := &pumps.Engine{}
	plans := e.CalculatePumpTransfers(facilities)

	applied := pumps.Apply(facilities, plans)

	if applied[0].CurrentVolume.Float64() != 85500 {
		t.Errorf("source after apply: expected 85500, got %v", applied[0].CurrentVolume)
	}
	if applied[1].CurrentVolume.Float64() != 14500 {
		t.Errorf("destination after apply: expected 14500, got %v", applied[1].CurrentVolume)
	}
	// Original slice untouched.
	if facilities[0].CurrentVolume.Float64() != 90000 {
		t.Error("Apply mutated its input")
	}

	// Source still above start (85.5%), so the next plan moves 5% of the
	// new volume.
	next := e.CalculatePumpTransfers(applied)
	if got := next["source"].Transfers[0].Volume.Float64(); got != 4275 {
		t.Errorf("expected 4275 (5%% of 85500), got %v", got)
	}
}
