package runway_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hydrova/waterbalance-engine/balance"
	"github.com/hydrova/waterbalance-engine/hydro"
	"github.com/hydrova/waterbalance-engine/runway"
	"github.com/hydrova/waterbalance-engine/storage"
)

func m3(v float64) hydro.Volume { return hydro.NewVolume(v) }

func balResult(outflows, recycled float64) balance.Result {
	out := balance.NewAggregate()
	out.Add("outflows", m3(outflows))
	rec := balance.NewAggregate()
	rec.Add("recycled", m3(recycled))
	return balance.Result{Outflows: out, DirtyInflows: rec}
}

func facilities(volumes ...float64) []storage.Facility {
	var out []storage.Facility
	for i, v := range volumes {
		out = append(out, storage.Facility{
			Code:          storage.FacilityCode(rune('a' + i)),
			Capacity:      m3(100000),
			CurrentVolume: m3(v),
		})
	}
	return out
}

// June has 30 days.
func june() hydro.CalcDate { return hydro.NewCalcDate(2025, time.June) }

// =============================================================================
// HYBRID DEMAND SELECTION
// =============================================================================

func TestRunway_NetDemandPositive_MethodNet(t *testing.T) {
	// GIVEN: outflows 30000, recycled 10000 -> net 20000 > 0
	// WHEN: Calculating runway
	// THEN: method "net", daily demand = 20000/30

	svc := &runway.Service{}
	r := svc.CalculateRunway(june(), balResult(30000, 10000), facilities(40000))

	if r.Method != runway.MethodNet {
		t.Fatalf("expected net, got %s", r.Method)
	}
	wantDaily := decimal.NewFromInt(20000).Div(decimal.NewFromInt(30))
	if !r.DailyDemand.Value.Equal(wantDaily) {
		t.Errorf("daily demand: expected %v, got %v", wantDaily, r.DailyDemand.Value)
	}
	if r.CombinedDaysRemaining == nil {
		t.Fatal("expected a combined days figure")
	}
	wantDays := decimal.NewFromInt(40000).Div(wantDaily)
	if !r.CombinedDaysRemaining.Equal(wantDays) {
		t.Errorf("days: expected %v, got %v", wantDays, r.CombinedDaysRemaining)
	}
}

func TestRunway_RecyclingExceedsOutflow_MethodFloor(t *testing.T) {
	// GIVEN: outflows 30000, recycled 32000 -> net ≤ 0, gross floor 7500 > 0
	// WHEN: Calculating runway
	// THEN: method "floor" - recycling must not yield "infinite runway"

	svc := &runway.Service{}
	r := svc.CalculateRunway(june(), balResult(30000, 32000), facilities(40000))

	if r.Method != runway.MethodFloor {
		t.Fatalf("expected floor, got %s", r.Method)
	}
	wantDaily := decimal.NewFromInt(30000).Mul(decimal.NewFromFloat(0.25)).Div(decimal.NewFromInt(30))
	if !r.DailyDemand.Value.Equal(wantDaily) {
		t.Errorf("daily demand: expected %v, got %v", wantDaily, r.DailyDemand.Value)
	}
	if r.CombinedDaysRemaining == nil {
		t.Error("floor method must produce a finite days figure")
	}
}

func TestRunway_NoOutflows_MethodZero_DaysIsNil(t *testing.T) {
	// GIVEN: outflows 0
	// WHEN: Calculating runway
	// THEN: method "zero" and days remaining is nil (N/A, not infinite)

	svc := &runway.Service{}
	r := svc.CalculateRunway(june(), balResult(0, 0), facilities(40000))

	if r.Method != runway.MethodZero {
		t.Fatalf("expected zero, got %s", r.Method)
	}
	if r.CombinedDaysRemaining != nil {
		t.Errorf("expected nil days remaining, got %v", r.CombinedDaysRemaining)
	}
	for _, f := range r.PerFacility {
		if f.DaysRemaining != nil {
			t.Errorf("facility %s: expected nil days remaining", f.Code)
		}
	}
}

func TestRunway_ExhaustedStorage_ZeroDays(t *testing.T) {
	// GIVEN: Positive demand and no usable storage
	// WHEN: Calculating runway
	// THEN: 0 days remaining (not nil - the constraint is real and binding)

	svc := &runway.Service{}
	r := svc.CalculateRunway(june(), balResult(30000, 0), facilities(0))

	if r.CombinedDaysRemaining == nil || !r.CombinedDaysRemaining.IsZero() {
		t.Errorf("expected 0 days, got %v", r.CombinedDaysRemaining)
	}
}

func TestRunway_PerFacility_IndependentOfAggregate(t *testing.T) {
	// GIVEN: Two facilities with different volumes
	// WHEN: Calculating runway
	// THEN: Each facility's days reflect its own volume against the same
	//       fleet demand

	svc := &runway.Service{}
	r := svc.CalculateRunway(june(), balResult(30000, 0), facilities(10000, 50000))

	if len(r.PerFacility) != 2 {
		t.Fatalf("expected 2 facilities, got %d", len(r.PerFacility))
	}
	daily := decimal.NewFromInt(1000) // 30000/30
	if !r.PerFacility[0].DaysRemaining.Equal(decimal.NewFromInt(10000).Div(daily)) {
		t.Errorf("facility a days wrong: %v", r.PerFacility[0].DaysRemaining)
	}
	if !r.PerFacility[1].DaysRemaining.Equal(decimal.NewFromInt(50000).Div(daily)) {
		t.Errorf("facility b days wrong: %v", r.PerFacility[1].DaysRemaining)
	}
}

func TestRunway_ConfigurableGrossFloor(t *testing.T) {
	svc := &runway.Service{GrossFloorPct: decimal.NewFromFloat(0.5)}
	r := svc.CalculateRunway(june(), balResult(30000, 40000), facilities(40000))

	wantDaily := decimal.NewFromInt(15000).Div(decimal.NewFromInt(30))
	if !r.DailyDemand.Value.Equal(wantDaily) {
		t.Errorf("expected floor at 50%%: want %v got %v", wantDaily, r.DailyDemand.Value)
	}
}
