package balance

import (
	"github.com/shopspring/decimal"

	"github.com/hydrova/waterbalance-engine/hydro"
)

// =============================================================================
// BALANCE CALCULATOR - Pure closure equation
// =============================================================================

// Closure applies the mass-balance equation:
//
//	closure_error_m3  = fresh - outflows - storageDelta
//	closure_error_pct = closure_error_m3 / fresh × 100 (0 when fresh is 0)
//
// The fresh argument must be the FRESH-ONLY inflow total. Recycled water
// never enters this expression; its storage effect is already inside
// storageDelta, and adding it here double-counts.
func Closure(fresh, outflows, storageDelta hydro.Volume) (hydro.Volume, decimal.Decimal) {
	errM3 := fresh.Sub(outflows).Sub(storageDelta)
	errPct := hydro.PercentOf(errM3.Value, fresh.Value)
	return errM3, errPct
}
