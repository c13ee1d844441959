/*
check.go - The configurable flat balance check

PURPOSE:
  The "Configure Balance Check" feature: an alternate calculation path
  operating on a flat, user-curated template of inflow/outflow/
  recirculation entries with per-code enable toggles, instead of the
  graph-based services. It lets an operator exclude specific named flows
  ("this area's outflows aren't measured yet") without editing topology.

DEFAULT-INCLUSION RULE:
  Absence of a configuration entry for a code means ENABLED. The config
  is optional and must not silently drop flows added after it was last
  saved; a code is excluded only by explicit opt-out.

RECIRCULATION:
  Recirculation entries are ALWAYS excluded from the closure sum
  regardless of enabled state - their net effect is zero by construction.
  They are still totaled for display.

NOTE:
  This path and the graph-based Engine have overlapping but not identical
  inclusion semantics, inherited from how the feature grew. They are kept
  separate deliberately; do not merge their rules without re-verifying
  against real closure reports.
*/
package balance

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/hydrova/waterbalance-engine/hydro"
)

// =============================================================================
// TEMPLATE ENTRIES
// =============================================================================

type Category string

const (
	CategoryInflow        Category = "inflow"
	CategoryOutflow       Category = "outflow"
	CategoryRecirculation Category = "recirculation"
)

// TemplateEntry is one flat, user-curated flow with its measured volume
// for the period under check.
type TemplateEntry struct {
	Code     string
	Name     string
	Area     string
	Category Category
	Volume   hydro.Volume
}

// =============================================================================
// CHECK CONFIG - Explicit opt-out only
// =============================================================================

type checkKey struct {
	Code     string
	Category Category
}

// CheckConfig holds the per-code overrides. A nil or empty config enables
// everything.
type CheckConfig struct {
	overrides map[checkKey]bool
}

func NewCheckConfig() *CheckConfig {
	return &CheckConfig{overrides: make(map[checkKey]bool)}
}

func (c *CheckConfig) SetEnabled(code string, cat Category, enabled bool) {
	if c.overrides == nil {
		c.overrides = make(map[checkKey]bool)
	}
	c.overrides[checkKey{Code: code, Category: cat}] = enabled
}

// IsEnabled implements the default-inclusion rule: no entry means enabled.
func (c *CheckConfig) IsEnabled(code string, cat Category) bool {
	if c == nil || c.overrides == nil {
		return true
	}
	enabled, ok := c.overrides[checkKey{Code: code, Category: cat}]
	if !ok {
		return true
	}
	return enabled
}

// CheckOverride is the persisted form of one toggle.
type CheckOverride struct {
	Code     string   `json:"code"`
	Category Category `json:"category"`
	Enabled  bool     `json:"enabled"`
}

// ParseCheckConfig loads a saved configuration. An empty document is a
// valid all-enabled config.
func ParseCheckConfig(data []byte) (*CheckConfig, error) {
	var doc struct {
		Overrides []CheckOverride `json:"overrides"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	}
	cfg := NewCheckConfig()
	for _, o := range doc.Overrides {
		cfg.SetEnabled(o.Code, o.Category, o.Enabled)
	}
	return cfg, nil
}

// Overrides exports the toggles for saving.
func (c *CheckConfig) Overrides() []CheckOverride {
	if c == nil {
		return nil
	}
	out := make([]CheckOverride, 0, len(c.overrides))
	for k, v := range c.overrides {
		out = append(out, CheckOverride{Code: k.Code, Category: k.Category, Enabled: v})
	}
	return out
}

// =============================================================================
// CHECK ENGINE
// =============================================================================

type CheckEngine struct {
	Entries []TemplateEntry
	Config  *CheckConfig

	// StorageDelta is the Δstorage figure for the period, supplied by the
	// caller (the flat template carries flows, not storage snapshots).
	StorageDelta hydro.Volume
}

// CheckMetrics mirrors the Result closure numbers for the flat path.
type CheckMetrics struct {
	InflowTotal        hydro.Volume
	OutflowTotal       hydro.Volume
	RecirculationTotal hydro.Volume
	StorageDelta       hydro.Volume

	ClosureErrorM3  hydro.Volume
	ClosureErrorPct decimal.Decimal

	// ExcludedCodes lists every explicitly disabled entry, for display.
	ExcludedCodes []string
}

// CalculateBalance sums all enabled entries per category and applies the
// same closure formula as the graph-based engine.
func (e *CheckEngine) CalculateBalance() CheckMetrics {
	m := CheckMetrics{
		InflowTotal:        hydro.ZeroVolume(),
		OutflowTotal:       hydro.ZeroVolume(),
		RecirculationTotal: hydro.ZeroVolume(),
		StorageDelta:       e.StorageDelta,
	}

	for _, entry := range e.Entries {
		if !e.Config.IsEnabled(entry.Code, entry.Category) {
			m.ExcludedCodes = append(m.ExcludedCodes, entry.Code)
			continue
		}
		switch entry.Category {
		case CategoryInflow:
			m.InflowTotal = m.InflowTotal.Add(entry.Volume)
		case CategoryOutflow:
			m.OutflowTotal = m.OutflowTotal.Add(entry.Volume)
		case CategoryRecirculation:
			// Totaled for display, never part of closure.
			m.RecirculationTotal = m.RecirculationTotal.Add(entry.Volume)
		}
	}

	m.ClosureErrorM3, m.ClosureErrorPct = Closure(m.InflowTotal, m.OutflowTotal, e.StorageDelta)
	return m
}
