package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrova/waterbalance-engine/store/sqlite"
)

func newTestServer(t *testing.T) (*Handler, *httptest.Server) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return h, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func loadScenario(t *testing.T, srv *httptest.Server, id string) {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRunBalanceEndpoint(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "typical-month")

	resp := postJSON(t, srv.URL+"/api/balance/run", RunBalanceRequest{Date: "2023-06"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dto BalanceResultDTO
	decode(t, resp, &dto)

	// fresh = 5000 + 20000 + 8000; outflows = 4000 + 15000 + 6000;
	// Δstorage = 126000 - 120000
	assert.Equal(t, "33000", dto.FreshInflows.Total)
	assert.Equal(t, "25000", dto.Outflows.Total)
	assert.Equal(t, "6000", dto.Storage.Delta)
	assert.Equal(t, "2000", dto.ClosureErrorM3)
	assert.Equal(t, "12000", dto.DirtyInflows.Total, "return water stays out of closure")
	assert.Equal(t, "REGULATOR", dto.Mode)
	assert.Nil(t, dto.KPIs)

	// The run was audited.
	auditResp, err := http.Get(srv.URL + "/api/balance/results")
	require.NoError(t, err)
	var audit struct {
		Results []map[string]any `json:"results"`
	}
	decode(t, auditResp, &audit)
	require.Len(t, audit.Results, 1)
	assert.Equal(t, "2023-06", audit.Results[0]["period"])
}

func TestRunBalanceOperationsModeAddsKPIs(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "typical-month")

	resp := postJSON(t, srv.URL+"/api/balance/run", RunBalanceRequest{
		Date: "2023-06", Mode: "OPERATIONS", OreTonnes: "50000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dto BalanceResultDTO
	decode(t, resp, &dto)

	require.NotNil(t, dto.KPIs)
	// Closure numbers are identical across modes.
	assert.Equal(t, "2000", dto.ClosureErrorM3)
}

func TestRunBalanceRejectsBadInput(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/balance/run", RunBalanceRequest{Date: "June 2023"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/balance/run", RunBalanceRequest{Date: "2023-06", Mode: "AUDITOR"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckBalanceEndpoint(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/balance/check", map[string]any{
		"entries": []map[string]string{
			{"code": "rainfall", "category": "inflow", "volume_m3": "30000"},
			{"code": "evap", "category": "outflow", "volume_m3": "20000"},
			{"code": "loop", "category": "recirculation", "volume_m3": "500000"},
		},
		"storage_delta_m3": "4000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	decode(t, resp, &out)
	assert.Equal(t, "6000", out["closure_error_m3"])
	assert.Equal(t, "500000", out["recirculation_total_m3"], "recirculation reported but outside closure")
}

func TestFacilityEndpoints(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "typical-month")

	resp, err := http.Get(srv.URL + "/api/facilities")
	require.NoError(t, err)
	var list []FacilityDTO
	decode(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "main-dam", list[0].Code)
	assert.Equal(t, "126000", list[0].CurrentVolume, "June history drives the live volume")

	resp, err = http.Get(srv.URL + "/api/facilities/main-dam/history")
	require.NoError(t, err)
	var history []HistoryDTO
	decode(t, resp, &history)
	require.Len(t, history, 2)

	// Back-dated correction through the API: row saved, live volume intact.
	resp = postJSON(t, srv.URL+"/api/facilities/main-dam/history", UpsertHistoryRequest{
		Period: "2023-04", Opening: "110000", Closing: "111000", Notes: "survey",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/facilities/main-dam")
	require.NoError(t, err)
	var dam FacilityDTO
	decode(t, resp, &dam)
	assert.Equal(t, "126000", dam.CurrentVolume)

	resp, err = http.Get(srv.URL + "/api/facilities/ghost")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunwayEndpoint(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "typical-month")

	resp, err := http.Get(srv.URL + "/api/runway?date=2023-06")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dto RunwayDTO
	decode(t, resp, &dto)

	// net demand = 25000 outflow - 12000 recycled > 0
	assert.Equal(t, "net", dto.Method)
	require.NotNil(t, dto.CombinedDaysRemaining)
	require.Len(t, dto.PerFacility, 1)
	require.NotNil(t, dto.PerFacility[0].DaysRemaining)
}

func TestPumpPlanAndApply(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "drought-stress")

	resp, err := http.Get(srv.URL + "/api/pumps/plan")
	require.NoError(t, err)
	var plans []PumpPlanDTO
	decode(t, resp, &plans)
	require.Len(t, plans, 2)

	// pcd at 92% of 100000 with start threshold 90: increment 4600, pond
	// can absorb only its remaining 2500.
	var pcd PumpPlanDTO
	for _, p := range plans {
		if p.Facility == "pcd" {
			pcd = p
		}
	}
	require.True(t, pcd.AtPumpStart)
	assert.Equal(t, "2500", pcd.PlannedTotal)
	assert.Equal(t, "2100", pcd.BlockedVolume)

	// Plan is a simulation: nothing moved yet.
	resp, err = http.Get(srv.URL + "/api/facilities/pcd")
	require.NoError(t, err)
	var f FacilityDTO
	decode(t, resp, &f)
	assert.Equal(t, "92000", f.CurrentVolume)

	// Apply commits.
	applyResp := postJSON(t, srv.URL+"/api/pumps/apply", struct{}{})
	defer applyResp.Body.Close()
	require.Equal(t, http.StatusOK, applyResp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/facilities/pcd")
	require.NoError(t, err)
	decode(t, resp, &f)
	assert.Equal(t, "89500", f.CurrentVolume)

	resp, err = http.Get(srv.URL + "/api/facilities/evap-pond")
	require.NoError(t, err)
	decode(t, resp, &f)
	assert.Equal(t, "30000", f.CurrentVolume)
}

func TestTopologyEndpoints(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "typical-month")

	resp, err := http.Get(srv.URL + "/api/topology/connections")
	require.NoError(t, err)
	var conns []ConnectionDTO
	decode(t, resp, &conns)
	require.Len(t, conns, 2)

	resp, err = http.Get(srv.URL + "/api/topology/validate")
	require.NoError(t, err)
	var out struct {
		Clean  bool       `json:"clean"`
		Issues []IssueDTO `json:"issues"`
	}
	decode(t, resp, &out)
	assert.True(t, out.Clean)
}

func TestLoadUnknownScenario(t *testing.T) {
	_, srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
