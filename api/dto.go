/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY-GRADE NUMBERS AS STRINGS:
  Volumes and percentages are decimal-backed and serialized as strings
  ("102000", "16.5") so clients never round-trip them through float64.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - scenarios.go: Demo scenario loaders
*/
package api

import (
	"github.com/hydrova/waterbalance-engine/balance"
	"github.com/hydrova/waterbalance-engine/hydro"
	"github.com/hydrova/waterbalance-engine/runway"
	"github.com/hydrova/waterbalance-engine/storage"
	"github.com/hydrova/waterbalance-engine/topology"
)

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// FlagDTO is one data-quality flag.
type FlagDTO struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Source   string `json:"source,omitempty"`
	Note     string `json:"note,omitempty"`
}

func flagDTOs(flags []hydro.Flag) []FlagDTO {
	out := make([]FlagDTO, len(flags))
	for i, f := range flags {
		out[i] = FlagDTO{Severity: string(f.Severity), Code: f.Code, Source: f.Source, Note: f.Note}
	}
	return out
}

// =============================================================================
// BALANCE
// =============================================================================

// RunBalanceRequest triggers a balance calculation.
type RunBalanceRequest struct {
	Date      string `json:"date"` // "2006-01"
	Mode      string `json:"mode,omitempty"`
	OreTonnes string `json:"ore_tonnes,omitempty"`
}

// AggregateDTO is one category total with its component breakdown.
type AggregateDTO struct {
	Total      string            `json:"total_m3"`
	Components map[string]string `json:"components"`
}

func aggregateDTO(a balance.Aggregate) AggregateDTO {
	comps := make(map[string]string, len(a.Components))
	for name, v := range a.Components {
		comps[name] = v.Value.String()
	}
	return AggregateDTO{Total: a.Total.Value.String(), Components: comps}
}

// FacilityStorageDTO is one facility's monthly snapshot contribution.
type FacilityStorageDTO struct {
	Code     string `json:"code"`
	Capacity string `json:"capacity_m3"`
	Opening  string `json:"opening_m3"`
	Closing  string `json:"closing_m3"`
	Source   string `json:"source"`
}

// StorageSnapshotDTO is the fleet storage snapshot.
type StorageSnapshotDTO struct {
	Opening       string               `json:"opening_m3"`
	Closing       string               `json:"closing_m3"`
	Delta         string               `json:"delta_m3"`
	TotalCapacity string               `json:"total_capacity_m3"`
	Facilities    []FacilityStorageDTO `json:"facilities"`
}

// KPIDTO carries the OPERATIONS-mode KPI bundle.
type KPIDTO struct {
	RecyclingRatioPct        string `json:"recycling_ratio_pct"`
	WaterIntensityM3PerTonne string `json:"water_intensity_m3_per_tonne"`
	StorageUtilizationPct    string `json:"storage_utilization_pct"`
}

// BalanceResultDTO is the full result of one balance run.
type BalanceResultDTO struct {
	Date string `json:"date"`
	Mode string `json:"mode"`

	FreshInflows AggregateDTO       `json:"fresh_inflows"`
	DirtyInflows AggregateDTO       `json:"dirty_inflows"`
	Outflows     AggregateDTO       `json:"outflows"`
	Storage      StorageSnapshotDTO `json:"storage"`

	ClosureErrorM3  string `json:"closure_error_m3"`
	ClosureErrorPct string `json:"closure_error_pct"`

	Flags []FlagDTO `json:"flags"`
	KPIs  *KPIDTO   `json:"kpis,omitempty"`
}

func balanceResultDTO(r balance.Result) BalanceResultDTO {
	facilities := make([]FacilityStorageDTO, len(r.Storage.Facilities))
	for i, f := range r.Storage.Facilities {
		facilities[i] = FacilityStorageDTO{
			Code:     string(f.Code),
			Capacity: f.Capacity.Value.String(),
			Opening:  f.Opening.Value.String(),
			Closing:  f.Closing.Value.String(),
			Source:   f.Source,
		}
	}

	dto := BalanceResultDTO{
		Date:         r.Date.String(),
		Mode:         string(r.Mode),
		FreshInflows: aggregateDTO(r.FreshInflows),
		DirtyInflows: aggregateDTO(r.DirtyInflows),
		Outflows:     aggregateDTO(r.Outflows),
		Storage: StorageSnapshotDTO{
			Opening:       r.Storage.Opening.Value.String(),
			Closing:       r.Storage.Closing.Value.String(),
			Delta:         r.Storage.Delta.Value.String(),
			TotalCapacity: r.Storage.TotalCapacity.Value.String(),
			Facilities:    facilities,
		},
		ClosureErrorM3:  r.ClosureErrorM3.Value.String(),
		ClosureErrorPct: r.ClosureErrorPct.StringFixed(4),
		Flags:           flagDTOs(r.Flags.All()),
	}
	if r.KPIs != nil {
		dto.KPIs = &KPIDTO{
			RecyclingRatioPct:        r.KPIs.RecyclingRatioPct.StringFixed(4),
			WaterIntensityM3PerTonne: r.KPIs.WaterIntensityM3PerTonne.StringFixed(4),
			StorageUtilizationPct:    r.KPIs.StorageUtilizationPct.StringFixed(4),
		}
	}
	return dto
}

// =============================================================================
// FACILITIES
// =============================================================================

// FacilityDTO represents a storage facility in API responses.
type FacilityDTO struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	Capacity      string   `json:"capacity_m3"`
	CurrentVolume string   `json:"current_volume_m3"`
	LevelPct      string   `json:"level_pct"`
	PumpStartPct  string   `json:"pump_start_pct"`
	PumpStopPct   string   `json:"pump_stop_pct"`
	FeedsTo       []string `json:"feeds_to,omitempty"`
	Overfull      bool     `json:"overfull,omitempty"`
}

func facilityDTO(f storage.Facility) FacilityDTO {
	feeds := make([]string, len(f.FeedsTo))
	for i, c := range f.FeedsTo {
		feeds[i] = string(c)
	}
	return FacilityDTO{
		Code:          string(f.Code),
		Name:          f.Name,
		Capacity:      f.Capacity.Value.String(),
		CurrentVolume: f.CurrentVolume.Value.String(),
		LevelPct:      f.LevelPct().StringFixed(2),
		PumpStartPct:  f.PumpStartPct.String(),
		PumpStopPct:   f.PumpStopPct.String(),
		FeedsTo:       feeds,
		Overfull:      f.IsOverfull(),
	}
}

// HistoryDTO is one storage-history row.
type HistoryDTO struct {
	Facility string `json:"facility"`
	Period   string `json:"period"`
	Opening  string `json:"opening_m3"`
	Closing  string `json:"closing_m3"`
	Source   string `json:"source,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// UpsertHistoryRequest writes one storage-history row.
type UpsertHistoryRequest struct {
	Period  string `json:"period"` // "2006-01"
	Opening string `json:"opening_m3"`
	Closing string `json:"closing_m3"`
	Source  string `json:"source,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// =============================================================================
// RUNWAY
// =============================================================================

// FacilityRunwayDTO is one facility's runway figure.
type FacilityRunwayDTO struct {
	Code          string  `json:"code"`
	CurrentVolume string  `json:"current_volume_m3"`
	LevelPct      string  `json:"level_pct"`
	DaysRemaining *string `json:"days_remaining,omitempty"` // nil = N/A
}

// RunwayDTO is the days-of-operation response.
type RunwayDTO struct {
	Date                  string              `json:"date"`
	Method                string              `json:"method"`
	DailyDemand           string              `json:"daily_demand_m3"`
	UsableStorage         string              `json:"usable_storage_m3"`
	CombinedDaysRemaining *string             `json:"combined_days_remaining,omitempty"`
	PerFacility           []FacilityRunwayDTO `json:"per_facility"`
}

func runwayDTO(r runway.Result) RunwayDTO {
	dto := RunwayDTO{
		Date:          r.Date.String(),
		Method:        string(r.Method),
		DailyDemand:   r.DailyDemand.Value.StringFixed(2),
		UsableStorage: r.UsableStorage.Value.String(),
	}
	if r.CombinedDaysRemaining != nil {
		s := r.CombinedDaysRemaining.StringFixed(1)
		dto.CombinedDaysRemaining = &s
	}
	for _, f := range r.PerFacility {
		fr := FacilityRunwayDTO{
			Code:          string(f.Code),
			CurrentVolume: f.CurrentVolume.Value.String(),
			LevelPct:      f.LevelPct.StringFixed(2),
		}
		if f.DaysRemaining != nil {
			s := f.DaysRemaining.StringFixed(1)
			fr.DaysRemaining = &s
		}
		dto.PerFacility = append(dto.PerFacility, fr)
	}
	return dto
}

// =============================================================================
// PUMPS
// =============================================================================

// TransferDTO is one planned movement into a destination.
type TransferDTO struct {
	Destination        string `json:"destination"`
	Volume             string `json:"volume_m3"`
	DestLevelBeforePct string `json:"dest_level_before_pct"`
	DestLevelAfterPct  string `json:"dest_level_after_pct"`
}

// PumpPlanDTO is the simulation output for one source facility.
type PumpPlanDTO struct {
	Facility        string        `json:"facility"`
	CurrentLevelPct string        `json:"current_level_pct"`
	AtPumpStart     bool          `json:"at_pump_start"`
	Transfers       []TransferDTO `json:"transfers"`
	PlannedTotal    string        `json:"planned_total_m3"`
	BlockedVolume   string        `json:"blocked_volume_m3"`
}

// =============================================================================
// TOPOLOGY
// =============================================================================

// ConnectionDTO is one flow edge.
type ConnectionDTO struct {
	FlowID        string `json:"flow_id"`
	FromArea      string `json:"from_area"`
	FromStructure string `json:"from_structure"`
	ToArea        string `json:"to_area"`
	ToStructure   string `json:"to_structure"`
	FlowType      string `json:"flow_type"`
	Subcategory   string `json:"subcategory,omitempty"`
	Bidirectional bool   `json:"bidirectional,omitempty"`
	SelfLoop      bool   `json:"self_loop,omitempty"`
}

func connectionDTO(c topology.FlowConnection) ConnectionDTO {
	return ConnectionDTO{
		FlowID:        c.FlowID(),
		FromArea:      string(c.From.Area),
		FromStructure: string(c.From.Structure),
		ToArea:        string(c.To.Area),
		ToStructure:   string(c.To.Structure),
		FlowType:      string(c.FlowType),
		Subcategory:   c.Subcategory,
		Bidirectional: c.Bidirectional,
		SelfLoop:      c.IsSelfLoop(),
	}
}

// IssueDTO is one topology validation finding.
type IssueDTO struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}
