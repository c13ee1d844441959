/*
handlers.go - HTTP API handlers for the water balance engine

PURPOSE:
  Exposes the balance engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Balance:
    POST   /api/balance/run             Run a balance calculation
    POST   /api/balance/check           Flat template-driven balance check
    GET    /api/balance/results         Persisted audit rows

  Facilities:
    GET    /api/facilities              List storage facilities
    GET    /api/facilities/{code}       Facility detail
    GET    /api/facilities/{code}/history   Monthly history rows
    POST   /api/facilities/{code}/history   Upsert one history row

  Operations:
    GET    /api/runway                  Days-of-operation estimate
    GET    /api/pumps/plan              Pump transfer simulation
    POST   /api/pumps/apply             Commit the simulated transfers

  Topology:
    GET    /api/topology/connections    Flow edges
    GET    /api/topology/validate       Invariant findings

  Scenarios:
    GET    /api/scenarios               List demo scenarios
    POST   /api/scenarios/load          Load a demo scenario

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. The engine is a desktop
  companion service bound to localhost.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hydrova/waterbalance-engine/balance"
	"github.com/hydrova/waterbalance-engine/hydro"
	"github.com/hydrova/waterbalance-engine/pumps"
	"github.com/hydrova/waterbalance-engine/runway"
	"github.com/hydrova/waterbalance-engine/source"
	"github.com/hydrova/waterbalance-engine/storage"
	"github.com/hydrova/waterbalance-engine/store/sqlite"
	"github.com/hydrova/waterbalance-engine/topology"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Graph   *topology.Graph
	Adapter *source.Adapter

	Runway *runway.Service
	Pumps  *pumps.Engine

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store. The topology and
// adapter start empty; a scenario load or diagram import populates them.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:   store,
		Graph:   topology.NewGraph(),
		Adapter: source.NewAdapter(source.NewMemorySeries(), nil, nil, nil),
		Runway:  &runway.Service{},
		Pumps:   &pumps.Engine{},
	}
}

// engine assembles a balance engine over the handler's current wiring.
func (h *Handler) engine(mode balance.Mode) *balance.Engine {
	inflows := &balance.InflowsService{Graph: h.Graph, Adapter: h.Adapter}
	return &balance.Engine{
		Inflows:  inflows,
		Recycled: &balance.RecycledService{Inflows: inflows},
		Outflows: &balance.OutflowsService{Graph: h.Graph, Adapter: h.Adapter},
		Storage:  &balance.StorageService{Facilities: h.Store, History: h.Store, Adapter: h.Adapter},
		Mode:     mode,
		Auditor:  h.Store,
	}
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// RunBalance executes one balance calculation.
func (h *Handler) RunBalance(w http.ResponseWriter, r *http.Request) {
	var req RunBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := hydro.ParseCalcDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	mode := balance.ModeRegulator
	switch req.Mode {
	case "", string(balance.ModeRegulator):
	case string(balance.ModeOperations):
		mode = balance.ModeOperations
	default:
		writeError(w, http.StatusBadRequest, "Invalid mode", nil)
		return
	}

	var oreTonnes decimal.Decimal
	if req.OreTonnes != "" {
		oreTonnes, err = decimal.NewFromString(req.OreTonnes)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid ore_tonnes", err)
			return
		}
	}

	// A changed spreadsheet invalidates the whole cache before the run.
	h.Adapter.RefreshIfChanged()

	result, err := h.engine(mode).Run(r.Context(), balance.RunInput{Date: date, OreTonnes: oreTonnes})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Balance run failed", err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResultDTO(result))
}

// CheckBalanceRequest is the flat template-driven check input.
type CheckBalanceRequest struct {
	Entries []struct {
		Code     string `json:"code"`
		Category string `json:"category"`
		VolumeM3 string `json:"volume_m3"`
	} `json:"entries"`
	StorageDeltaM3 string          `json:"storage_delta_m3"`
	Config         json.RawMessage `json:"config,omitempty"`
}

// CheckBalance runs the flat, operator-configurable balance check.
func (h *Handler) CheckBalance(w http.ResponseWriter, r *http.Request) {
	var req CheckBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var cfg *balance.CheckConfig
	if len(req.Config) > 0 {
		var err error
		cfg, err = balance.ParseCheckConfig(req.Config)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid check config", err)
			return
		}
	}

	entries := make([]balance.TemplateEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, balance.TemplateEntry{
			Code:     e.Code,
			Category: balance.Category(e.Category),
			Volume:   hydro.VolumeFromDecimal(hydro.MustParseDecimal(e.VolumeM3)),
		})
	}

	engine := &balance.CheckEngine{
		Entries:      entries,
		Config:       cfg,
		StorageDelta: hydro.VolumeFromDecimal(hydro.MustParseDecimal(req.StorageDeltaM3)),
	}
	m := engine.CalculateBalance()

	writeJSON(w, http.StatusOK, map[string]any{
		"inflow_total_m3":        m.InflowTotal.Value.String(),
		"outflow_total_m3":       m.OutflowTotal.Value.String(),
		"recirculation_total_m3": m.RecirculationTotal.Value.String(),
		"storage_delta_m3":       m.StorageDelta.Value.String(),
		"closure_error_m3":       m.ClosureErrorM3.Value.String(),
		"closure_error_pct":      m.ClosureErrorPct.StringFixed(4),
		"excluded_codes":         m.ExcludedCodes,
	})
}

// ListBalanceResults returns persisted audit rows, newest first.
func (h *Handler) ListBalanceResults(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	rows, err := h.Store.BalanceResults(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list balance results", err)
		return
	}

	dtos := make([]map[string]any, len(rows))
	for i, row := range rows {
		dtos[i] = map[string]any{
			"id":                row.ID,
			"period":            row.Period,
			"mode":              row.Mode,
			"fresh_inflows_m3":  row.FreshInflowsM3,
			"dirty_inflows_m3":  row.DirtyInflowsM3,
			"outflows_m3":       row.OutflowsM3,
			"storage_delta_m3":  row.StorageDeltaM3,
			"closure_error_m3":  row.ClosureErrorM3,
			"closure_error_pct": row.ClosureErrorPct,
			"flags":             flagDTOs(row.Flags),
			"created_at":        row.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": dtos})
}

// =============================================================================
// FACILITY HANDLERS
// =============================================================================

// ListFacilities returns all storage facilities.
func (h *Handler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	facilities, err := h.Store.StorageFacilities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list facilities", err)
		return
	}

	dtos := make([]FacilityDTO, len(facilities))
	for i, f := range facilities {
		dtos[i] = facilityDTO(f)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetFacility returns one facility.
func (h *Handler) GetFacility(w http.ResponseWriter, r *http.Request) {
	code := storage.FacilityCode(chi.URLParam(r, "code"))

	f, err := h.Store.Facility(r.Context(), code)
	if errors.Is(err, hydro.ErrFacilityNotFound) {
		writeError(w, http.StatusNotFound, "Facility not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get facility", err)
		return
	}
	writeJSON(w, http.StatusOK, facilityDTO(f))
}

// GetFacilityHistory returns a facility's monthly history rows.
func (h *Handler) GetFacilityHistory(w http.ResponseWriter, r *http.Request) {
	code := storage.FacilityCode(chi.URLParam(r, "code"))

	rows, err := h.Store.HistoryForFacility(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get history", err)
		return
	}

	dtos := make([]HistoryDTO, len(rows))
	for i, rec := range rows {
		dtos[i] = HistoryDTO{
			Facility: string(rec.Facility),
			Period:   rec.Date.String(),
			Opening:  rec.Opening.Value.String(),
			Closing:  rec.Closing.Value.String(),
			Source:   rec.Source,
			Notes:    rec.Notes,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertFacilityHistory writes one history row. The store enforces the
// latest-period live-volume rule.
func (h *Handler) UpsertFacilityHistory(w http.ResponseWriter, r *http.Request) {
	code := storage.FacilityCode(chi.URLParam(r, "code"))

	var req UpsertHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := hydro.ParseCalcDate(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	if _, err := h.Store.Facility(r.Context(), code); err != nil {
		if errors.Is(err, hydro.ErrFacilityNotFound) {
			writeError(w, http.StatusNotFound, "Facility not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get facility", err)
		return
	}

	rec := storage.History{
		Facility: code,
		Date:     date,
		Opening:  hydro.VolumeFromDecimal(hydro.MustParseDecimal(req.Opening)),
		Closing:  hydro.VolumeFromDecimal(hydro.MustParseDecimal(req.Closing)),
		Source:   req.Source,
		Notes:    req.Notes,
	}
	if err := h.Store.UpsertHistory(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to upsert history", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "saved", "period": date.String()})
}

// =============================================================================
// RUNWAY AND PUMP HANDLERS
// =============================================================================

// GetRunway computes the days-of-operation estimate for a period.
func (h *Handler) GetRunway(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	date, err := hydro.ParseCalcDate(dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing date query parameter", err)
		return
	}

	h.Adapter.RefreshIfChanged()
	bal, err := h.engine(balance.ModeRegulator).Run(r.Context(), balance.RunInput{Date: date})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Balance run failed", err)
		return
	}

	facilities, err := h.Store.StorageFacilities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list facilities", err)
		return
	}

	writeJSON(w, http.StatusOK, runwayDTO(h.Runway.CalculateRunway(date, bal, facilities)))
}

// GetPumpPlan simulates pump transfers against the live facility snapshot.
// The simulation never mutates stored volumes.
func (h *Handler) GetPumpPlan(w http.ResponseWriter, r *http.Request) {
	facilities, err := h.Store.StorageFacilities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list facilities", err)
		return
	}

	plans := h.Pumps.CalculatePumpTransfers(facilities)
	writeJSON(w, http.StatusOK, pumpPlanDTOs(plans))
}

// ApplyPumpPlan recomputes the plan and commits the resulting volumes.
func (h *Handler) ApplyPumpPlan(w http.ResponseWriter, r *http.Request) {
	facilities, err := h.Store.StorageFacilities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list facilities", err)
		return
	}

	plans := h.Pumps.CalculatePumpTransfers(facilities)
	updated := pumps.Apply(facilities, plans)

	for _, f := range updated {
		if err := h.Store.SaveFacility(r.Context(), f); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to persist transfer", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "applied",
		"plans":  pumpPlanDTOs(plans),
	})
}

func pumpPlanDTOs(plans map[storage.FacilityCode]pumps.Plan) []PumpPlanDTO {
	dtos := make([]PumpPlanDTO, 0, len(plans))
	for _, p := range plans {
		dto := PumpPlanDTO{
			Facility:        string(p.Facility),
			CurrentLevelPct: p.CurrentLevelPct.StringFixed(2),
			AtPumpStart:     p.AtPumpStart,
			PlannedTotal:    p.PlannedTotal().Value.String(),
			BlockedVolume:   p.BlockedVolume.Value.String(),
		}
		for _, t := range p.Transfers {
			dto.Transfers = append(dto.Transfers, TransferDTO{
				Destination:        string(t.Destination),
				Volume:             t.Volume.Value.String(),
				DestLevelBeforePct: t.DestLevelBeforePct.StringFixed(2),
				DestLevelAfterPct:  t.DestLevelAfterPct.StringFixed(2),
			})
		}
		dtos = append(dtos, dto)
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].Facility < dtos[j].Facility })
	return dtos
}

// =============================================================================
// TOPOLOGY HANDLERS
// =============================================================================

// ListConnections returns the current flow edges.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns := h.Graph.Connections()
	dtos := make([]ConnectionDTO, len(conns))
	for i, c := range conns {
		dtos[i] = connectionDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ValidateTopology runs the whole-graph invariant checks.
func (h *Handler) ValidateTopology(w http.ResponseWriter, r *http.Request) {
	issues := h.Graph.Validate()
	dtos := make([]IssueDTO, len(issues))
	for i, is := range issues {
		dtos[i] = IssueDTO{Severity: is.Severity, Code: is.Code, Detail: is.Detail}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"clean":  len(issues) == 0,
		"issues": dtos,
	})
}

// =============================================================================
// UTILITY HANDLERS
// =============================================================================

// ResetDatabase clears all data (dev/demo only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.Graph = topology.NewGraph()
	h.Adapter = source.NewAdapter(source.NewMemorySeries(), nil, nil, nil)
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, `{"status":"ok"}`)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
