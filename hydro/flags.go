/*
flags.go - Data quality flag accumulator

PURPOSE:
  Carries every degraded or suspicious value produced during a balance
  calculation. The engine NEVER aborts on missing data: a missing sheet,
  column, or row degrades to zero and leaves a flag here instead.

PROPAGATION POLICY:
  - Topology errors (duplicate edges, bad splits) raise at edit time.
  - Data-resolution gaps degrade to 0.0 and flag - a month-close must
    always produce a result, possibly marked low-confidence.
  - Every degraded value is traceable to exactly one flag; there is no
    silent-failure path.

SEVERITIES:
  info:    provenance notes ("opening inferred from live snapshot")
  warning: suspicious but usable ("zero-valued month", "overfull facility")
  error:   structurally missing data ("sheet not found")

SEE ALSO:
  - balance/: the four services append flags as they read
  - source/: the adapter reports sheet-level failures via flags upstream
*/
package hydro

// =============================================================================
// SEVERITY
// =============================================================================

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// =============================================================================
// FLAG - One traceable data-quality condition
// =============================================================================

type Flag struct {
	Severity Severity
	Code     string // machine-readable, e.g. "sheet_missing", "overfull_facility"
	Source   string // what was being read, e.g. "UG2 North/boreholes__TO__silo"
	Note     string // human-readable explanation for the flag panel
}

// =============================================================================
// DATA QUALITY FLAGS - Ordered, append-only accumulator
// =============================================================================

// DataQualityFlags is passed by pointer through the per-category services
// so one calculation run aggregates every degraded read in order.
type DataQualityFlags struct {
	flags []Flag
}

func (d *DataQualityFlags) Add(sev Severity, code, source, note string) {
	d.flags = append(d.flags, Flag{Severity: sev, Code: code, Source: source, Note: note})
}

func (d *DataQualityFlags) AddFlag(f Flag) {
	d.flags = append(d.flags, f)
}

// Merge appends all of other's flags, preserving order.
func (d *DataQualityFlags) Merge(other *DataQualityFlags) {
	if other == nil {
		return
	}
	d.flags = append(d.flags, other.flags...)
}

// All returns the flags in the order they were recorded.
func (d *DataQualityFlags) All() []Flag {
	if d == nil {
		return nil
	}
	out := make([]Flag, len(d.flags))
	copy(out, d.flags)
	return out
}

func (d *DataQualityFlags) Len() int {
	if d == nil {
		return 0
	}
	return len(d.flags)
}

func (d *DataQualityFlags) HasErrors() bool {
	return d.Count(SeverityError) > 0
}

func (d *DataQualityFlags) Count(sev Severity) int {
	if d == nil {
		return 0
	}
	n := 0
	for _, f := range d.flags {
		if f.Severity == sev {
			n++
		}
	}
	return n
}
