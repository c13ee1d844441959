/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store and the in-memory
	spreadsheet series with realistic mine-site data. Each scenario
	exercises specific engine behavior.

AVAILABLE SCENARIOS:

	typical-month:   One area, balanced flows, small closure error
	drought-stress:  Low rainfall, heavy recycling, a dam at pump-start

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Build the topology graph and excel mappings
 3. Seed the in-memory monthly series
 4. Save facilities and history rows (latest-period rule applies)
 5. Mirror the connections into SQL for reporting

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "typical-month"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler wiring the scenario data feeds
  - factory/topology.go: The production diagram-loading path
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hydrova/waterbalance-engine/hydro"
	"github.com/hydrova/waterbalance-engine/source"
	"github.com/hydrova/waterbalance-engine/storage"
	"github.com/hydrova/waterbalance-engine/store/sqlite"
	"github.com/hydrova/waterbalance-engine/topology"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "typical-month",
		Name:        "Typical Month",
		Description: "One area with balanced flows and a small closure error",
	},
	{
		ID:          "drought-stress",
		Name:        "Drought Stress",
		Description: "Low rainfall, heavy recycling, and a dam at its pump-start threshold",
	},
}

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": h.currentScenario})
}

// LoadScenario resets the database and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "typical-month":
		err = h.loadTypicalMonthScenario(r.Context())
	case "drought-stress":
		err = h.loadDroughtStressScenario(r.Context())
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario %q", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

// =============================================================================
// TYPICAL MONTH - Balanced flows, small closure error
// =============================================================================

func (h *Handler) loadTypicalMonthScenario(ctx context.Context) error {
	g := topology.NewGraph()
	g.AddArea(topology.Area{Code: "mine", Name: "Mine Site"})

	structures := []topology.Structure{
		{Area: "mine", Code: "reservoir", Name: "Main Reservoir", Type: topology.StructureDam},
		{Area: "mine", Code: "plant", Name: "Process Plant", Type: topology.StructurePlant},
		{Area: "mine", Code: "return-dam", Name: "Return Water Dam", Type: topology.StructureDam},
	}
	for _, s := range structures {
		if err := g.AddStructure(s); err != nil {
			return err
		}
	}

	connections := []topology.FlowConnection{
		{
			From:     topology.StructureRef{Area: "mine", Structure: "reservoir"},
			To:       topology.StructureRef{Area: "mine", Structure: "plant"},
			FlowType: topology.FlowClean,
		},
		{
			From:          topology.StructureRef{Area: "mine", Structure: "plant"},
			To:            topology.StructureRef{Area: "mine", Structure: "return-dam"},
			FlowType:      topology.FlowDirty,
			Bidirectional: true,
		},
	}
	for _, c := range connections {
		if err := g.AddConnection(c); err != nil {
			return err
		}
	}

	inflows := []topology.InflowSource{
		{Into: topology.StructureRef{Area: "mine", Structure: "reservoir"}, Kind: topology.InflowRainfall, Name: "Direct rainfall"},
		{Into: topology.StructureRef{Area: "mine", Structure: "reservoir"}, Kind: topology.InflowBorehole, Name: "Borehole field"},
		{Into: topology.StructureRef{Area: "mine", Structure: "plant"}, Kind: topology.InflowDewatering, Name: "Underground dewatering"},
		{Into: topology.StructureRef{Area: "mine", Structure: "plant"}, Kind: topology.InflowReturnWater, Name: "Return water"},
	}
	for _, s := range inflows {
		if err := g.AddInflowSource(s); err != nil {
			return err
		}
	}

	outflows := []topology.OutflowDestination{
		{From: topology.StructureRef{Area: "mine", Structure: "reservoir"}, Kind: topology.OutflowEvaporation},
		{From: topology.StructureRef{Area: "mine", Structure: "plant"}, Kind: topology.OutflowMiningConsumption},
		{From: topology.StructureRef{Area: "mine", Structure: "plant"}, Kind: topology.OutflowProductMoisture},
	}
	for _, d := range outflows {
		if err := g.AddOutflowDestination(d); err != nil {
			return err
		}
	}

	// Monthly series: columns keyed by flow id in the area sheet.
	series := source.NewMemorySeries()
	june := hydro.NewCalcDate(2023, time.June)
	sheet := "Mine Site"
	values := map[string]float64{
		"rainfall__TO__reservoir":        5000,
		"borehole__TO__reservoir":        20000,
		"dewatering__TO__plant":          8000,
		"return_water__TO__plant":        12000,
		"reservoir__TO__evaporation":     4000,
		"plant__TO__mining_consumption":  15000,
		"plant__TO__product_moisture":    6000,
	}
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	series.AddSheet(sheet, cols...)
	for col, v := range values {
		series.SetValue(sheet, col, june, v)
	}

	h.Graph = g
	h.Adapter = source.NewAdapter(series, nil, nil, nil)

	// Facilities: May history seeds the June opening inference.
	dam := storage.Facility{
		Code:          "main-dam",
		Name:          "Main Dam",
		Capacity:      hydro.NewVolume(250000),
		CurrentVolume: hydro.NewVolume(120000),
		PumpStartPct:  decimal.NewFromInt(85),
		PumpStopPct:   decimal.NewFromInt(40),
	}
	if err := h.Store.SaveFacility(ctx, dam); err != nil {
		return err
	}
	if err := h.Store.UpsertHistory(ctx, storage.History{
		Facility: "main-dam", Date: june.Prev(),
		Opening: hydro.NewVolume(115000), Closing: hydro.NewVolume(120000),
		Source: "database",
	}); err != nil {
		return err
	}
	if err := h.Store.UpsertHistory(ctx, storage.History{
		Facility: "main-dam", Date: june,
		Opening: hydro.NewVolume(120000), Closing: hydro.NewVolume(126000),
		Source: "database",
	}); err != nil {
		return err
	}

	return h.Store.SaveConnections(ctx, g.Connections())
}

// =============================================================================
// DROUGHT STRESS - Recycling dominates, pump thresholds trip
// =============================================================================

func (h *Handler) loadDroughtStressScenario(ctx context.Context) error {
	g := topology.NewGraph()
	g.AddArea(topology.Area{Code: "mine", Name: "Mine Site"})

	structures := []topology.Structure{
		{Area: "mine", Code: "pcd", Name: "Pollution Control Dam", Type: topology.StructureDam},
		{Area: "mine", Code: "plant", Name: "Process Plant", Type: topology.StructurePlant},
	}
	for _, s := range structures {
		if err := g.AddStructure(s); err != nil {
			return err
		}
	}

	// Internal recirculation at the PCD: neutral to the balance.
	if err := g.AddConnection(topology.FlowConnection{
		From:     topology.StructureRef{Area: "mine", Structure: "pcd"},
		To:       topology.StructureRef{Area: "mine", Structure: "pcd"},
		FlowType: topology.FlowRecirculation,
	}); err != nil {
		return err
	}

	inflows := []topology.InflowSource{
		{Into: topology.StructureRef{Area: "mine", Structure: "pcd"}, Kind: topology.InflowRainfall, Name: "Direct rainfall"},
		{Into: topology.StructureRef{Area: "mine", Structure: "plant"}, Kind: topology.InflowReturnWater, Name: "Return water"},
	}
	for _, s := range inflows {
		if err := g.AddInflowSource(s); err != nil {
			return err
		}
	}

	outflows := []topology.OutflowDestination{
		{From: topology.StructureRef{Area: "mine", Structure: "pcd"}, Kind: topology.OutflowEvaporation},
		{From: topology.StructureRef{Area: "mine", Structure: "plant"}, Kind: topology.OutflowMiningConsumption},
	}
	for _, d := range outflows {
		if err := g.AddOutflowDestination(d); err != nil {
			return err
		}
	}

	series := source.NewMemorySeries()
	june := hydro.NewCalcDate(2023, time.June)
	sheet := "Mine Site"
	values := map[string]float64{
		"rainfall__TO__pcd":             400,
		"return_water__TO__plant":       22000,
		"pcd__TO__evaporation":          9000,
		"plant__TO__mining_consumption": 14000,
	}
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	series.AddSheet(sheet, cols...)
	for col, v := range values {
		series.SetValue(sheet, col, june, v)
	}

	h.Graph = g
	h.Adapter = source.NewAdapter(series, nil, nil, nil)

	// The PCD sits above its pump-start; the evaporation pond can absorb
	// only part of the planned increment.
	pcd := storage.Facility{
		Code:          "pcd",
		Name:          "Pollution Control Dam",
		Capacity:      hydro.NewVolume(100000),
		CurrentVolume: hydro.NewVolume(92000),
		PumpStartPct:  decimal.NewFromInt(90),
		PumpStopPct:   decimal.NewFromInt(60),
		FeedsTo:       []storage.FacilityCode{"evap-pond"},
	}
	pond := storage.Facility{
		Code:          "evap-pond",
		Name:          "Evaporation Pond",
		Capacity:      hydro.NewVolume(30000),
		CurrentVolume: hydro.NewVolume(27500),
	}
	for _, f := range []storage.Facility{pcd, pond} {
		if err := h.Store.SaveFacility(ctx, f); err != nil {
			return err
		}
	}

	if err := h.Store.UpsertHistory(ctx, storage.History{
		Facility: "pcd", Date: june,
		Opening: hydro.NewVolume(88000), Closing: hydro.NewVolume(92000),
		Source: "database",
	}); err != nil {
		return err
	}

	if err := h.Store.SaveEnvironmental(ctx, sqlite.Environmental{
		Date: june, RainfallMM: 4.5, EvaporationMM: 210,
	}); err != nil {
		return err
	}

	return h.Store.SaveConnections(ctx, g.Connections())
}
