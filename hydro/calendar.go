package hydro

import (
	"fmt"
	"time"
)

// =============================================================================
// CALC DATE - The monthly period key (this IS a monthly-batch system)
// =============================================================================

// CalcDate identifies one calendar month. Every balance run, storage history
// row, and spreadsheet lookup is keyed by a CalcDate. There is no finer
// granularity anywhere in the engine.
type CalcDate struct {
	Year  int
	Month time.Month
}

func NewCalcDate(year int, month time.Month) CalcDate {
	return CalcDate{Year: year, Month: month}
}

// CalcDateOf returns the period containing the given instant.
func CalcDateOf(t time.Time) CalcDate {
	return CalcDate{Year: t.Year(), Month: t.Month()}
}

// ParseCalcDate parses "2006-01" formatted period keys.
func ParseCalcDate(s string) (CalcDate, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return CalcDate{}, fmt.Errorf("invalid calculation date %q: %w", s, err)
	}
	return CalcDateOf(t), nil
}

// Comparison
func (d CalcDate) Equal(o CalcDate) bool { return d.Year == o.Year && d.Month == o.Month }
func (d CalcDate) Before(o CalcDate) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	return d.Month < o.Month
}
func (d CalcDate) After(o CalcDate) bool { return o.Before(d) }

// Arithmetic
func (d CalcDate) Prev() CalcDate { return CalcDateOf(d.Time().AddDate(0, -1, 0)) }
func (d CalcDate) Next() CalcDate { return CalcDateOf(d.Time().AddDate(0, 1, 0)) }

// Properties
func (d CalcDate) Time() time.Time {
	return time.Date(d.Year, d.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (d CalcDate) DaysInMonth() int {
	return d.Time().AddDate(0, 1, -1).Day()
}

func (d CalcDate) IsZero() bool { return d.Year == 0 && d.Month == 0 }

func (d CalcDate) String() string { return d.Time().Format("2006-01") }
