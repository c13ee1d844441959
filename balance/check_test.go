package balance_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hydrova/waterbalance-engine/balance"
)

// =============================================================================
// FLAT BALANCE CHECK
// =============================================================================

func checkTemplate() []balance.TemplateEntry {
	return []balance.TemplateEntry{
		{Code: "rain-01", Name: "Rainfall", Area: "Mine Site", Category: balance.CategoryInflow, Volume: m3(5000)},
		{Code: "bore-01", Name: "Boreholes", Area: "Mine Site", Category: balance.CategoryInflow, Volume: m3(20000)},
		{Code: "evap-01", Name: "Evaporation", Area: "Mine Site", Category: balance.CategoryOutflow, Volume: m3(4000)},
		{Code: "cons-01", Name: "Consumption", Area: "Mine Site", Category: balance.CategoryOutflow, Volume: m3(15000)},
		{Code: "recirc-01", Name: "Return Dam Loop", Area: "Mine Site", Category: balance.CategoryRecirculation, Volume: m3(8000)},
	}
}

func TestCheckEngine_MatchesClosureFormula(t *testing.T) {
	// GIVEN: The reference totals as a flat template, Δstorage 2000
	// WHEN: Calculating
	// THEN: Same closure numbers as the graph path: 4000 m³, 16%

	engine := &balance.CheckEngine{
		Entries:      checkTemplate(),
		Config:       balance.NewCheckConfig(),
		StorageDelta: m3(2000),
	}

	m := engine.CalculateBalance()
	if m.InflowTotal.Float64() != 25000 || m.OutflowTotal.Float64() != 19000 {
		t.Fatalf("totals wrong: %+v", m)
	}
	if m.ClosureErrorM3.Float64() != 4000 {
		t.Errorf("expected closure 4000, got %v", m.ClosureErrorM3)
	}
	if !m.ClosureErrorPct.Equal(decimal.NewFromInt(16)) {
		t.Errorf("expected 16%%, got %v", m.ClosureErrorPct)
	}
}

func TestCheckEngine_AbsentConfigEntry_MeansEnabled(t *testing.T) {
	// GIVEN: A config that mentions some codes but omits "bore-01"
	// WHEN: Calculating
	// THEN: The omitted flow is still included (absence ≠ exclusion)

	cfg := balance.NewCheckConfig()
	cfg.SetEnabled("rain-01", balance.CategoryInflow, true)

	engine := &balance.CheckEngine{Entries: checkTemplate(), Config: cfg, StorageDelta: m3(2000)}
	m := engine.CalculateBalance()

	if m.InflowTotal.Float64() != 25000 {
		t.Errorf("omitted code must remain enabled; inflow total %v", m.InflowTotal)
	}
	if len(m.ExcludedCodes) != 0 {
		t.Errorf("nothing explicitly disabled, got exclusions %v", m.ExcludedCodes)
	}
}

func TestCheckEngine_NilConfig_AllEnabled(t *testing.T) {
	engine := &balance.CheckEngine{Entries: checkTemplate(), StorageDelta: m3(2000)}
	if m := engine.CalculateBalance(); m.InflowTotal.Float64() != 25000 {
		t.Errorf("nil config must enable everything, got %v", m.InflowTotal)
	}
}

func TestCheckEngine_ExplicitOptOut(t *testing.T) {
	// GIVEN: cons-01 explicitly disabled
	// WHEN: Calculating
	// THEN: Outflow total drops to 4000 and the code is listed as excluded

	cfg := balance.NewCheckConfig()
	cfg.SetEnabled("cons-01", balance.CategoryOutflow, false)

	engine := &balance.CheckEngine{Entries: checkTemplate(), Config: cfg, StorageDelta: m3(2000)}
	m := engine.CalculateBalance()

	if m.OutflowTotal.Float64() != 4000 {
		t.Errorf("expected 4000, got %v", m.OutflowTotal)
	}
	if len(m.ExcludedCodes) != 1 || m.ExcludedCodes[0] != "cons-01" {
		t.Errorf("expected [cons-01], got %v", m.ExcludedCodes)
	}
}

func TestCheckEngine_RecirculationAlwaysOutsideClosure(t *testing.T) {
	// GIVEN: A recirculation entry explicitly ENABLED
	// WHEN: Calculating
	// THEN: It is totaled for display but never part of the closure sum

	cfg := balance.NewCheckConfig()
	cfg.SetEnabled("recirc-01", balance.CategoryRecirculation, true)

	engine := &balance.CheckEngine{Entries: checkTemplate(), Config: cfg, StorageDelta: m3(2000)}
	m := engine.CalculateBalance()

	if m.RecirculationTotal.Float64() != 8000 {
		t.Errorf("recirculation total: expected 8000, got %v", m.RecirculationTotal)
	}
	// closure = 25000 - 19000 - 2000; the 8000 recirculation is absent.
	if m.ClosureErrorM3.Float64() != 4000 {
		t.Errorf("recirculation leaked into closure: %v", m.ClosureErrorM3)
	}
}

func TestCheckConfig_ParseRoundTrip(t *testing.T) {
	cfg, err := balance.ParseCheckConfig([]byte(`{"overrides":[{"code":"cons-01","category":"outflow","enabled":false}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.IsEnabled("cons-01", balance.CategoryOutflow) {
		t.Error("parsed opt-out not applied")
	}
	if !cfg.IsEnabled("anything-else", balance.CategoryInflow) {
		t.Error("unlisted code must default to enabled")
	}

	// Empty document = all enabled.
	empty, err := balance.ParseCheckConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !empty.IsEnabled("x", balance.CategoryInflow) {
		t.Error("empty config must enable everything")
	}
}
