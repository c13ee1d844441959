package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrova/waterbalance-engine/balance"
	"github.com/hydrova/waterbalance-engine/hydro"
	"github.com/hydrova/waterbalance-engine/storage"
	"github.com/hydrova/waterbalance-engine/topology"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testFacility() storage.Facility {
	return storage.Facility{
		Code:          "main-dam",
		Name:          "Main Dam",
		Capacity:      hydro.NewVolume(200000),
		CurrentVolume: hydro.NewVolume(100000),
		SurfaceAreaM2: decimal.NewFromInt(45000),
		PumpStartPct:  decimal.NewFromInt(80),
		PumpStopPct:   decimal.NewFromInt(40),
		FeedsTo:       []storage.FacilityCode{"overflow-pond"},
	}
}

func TestFacilityRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFacility(ctx, testFacility()))

	got, err := s.Facility(ctx, "main-dam")
	require.NoError(t, err)
	assert.Equal(t, "Main Dam", got.Name)
	assert.True(t, got.Capacity.Value.Equal(decimal.NewFromInt(200000)))
	assert.True(t, got.PumpStartPct.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, []storage.FacilityCode{"overflow-pond"}, got.FeedsTo)

	all, err := s.StorageFacilities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = s.Facility(ctx, "nonexistent")
	assert.True(t, errors.Is(err, hydro.ErrFacilityNotFound))
}

func TestUpsertHistoryUpdatesLiveVolumeForLatestPeriod(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveFacility(ctx, testFacility()))

	may := hydro.NewCalcDate(2023, time.May)
	require.NoError(t, s.UpsertHistory(ctx, storage.History{
		Facility: "main-dam",
		Date:     may,
		Opening:  hydro.NewVolume(95000),
		Closing:  hydro.NewVolume(98000),
		Source:   "database",
	}))

	f, err := s.Facility(ctx, "main-dam")
	require.NoError(t, err)
	assert.True(t, f.CurrentVolume.Value.Equal(decimal.NewFromInt(98000)),
		"latest period upsert must refresh live volume, got %s", f.CurrentVolume)

	june := hydro.NewCalcDate(2023, time.June)
	require.NoError(t, s.UpsertHistory(ctx, storage.History{
		Facility: "main-dam",
		Date:     june,
		Opening:  hydro.NewVolume(98000),
		Closing:  hydro.NewVolume(102000),
		Source:   "database",
	}))

	f, err = s.Facility(ctx, "main-dam")
	require.NoError(t, err)
	assert.True(t, f.CurrentVolume.Value.Equal(decimal.NewFromInt(102000)))

	latest, ok, err := s.LatestPeriod(ctx, "main-dam")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, latest.Equal(june))
}

func TestBackDatedCorrectionNeverTouchesLiveVolume(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveFacility(ctx, testFacility()))

	june := hydro.NewCalcDate(2023, time.June)
	require.NoError(t, s.UpsertHistory(ctx, storage.History{
		Facility: "main-dam", Date: june,
		Opening: hydro.NewVolume(98000), Closing: hydro.NewVolume(102000),
	}))

	// Back-edit April: the row must persist, the live volume must not move.
	april := hydro.NewCalcDate(2023, time.April)
	require.NoError(t, s.UpsertHistory(ctx, storage.History{
		Facility: "main-dam", Date: april,
		Opening: hydro.NewVolume(90000), Closing: hydro.NewVolume(91000),
		Notes: "survey correction",
	}))

	rec, ok, err := s.History(ctx, "main-dam", april)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.Closing.Value.Equal(decimal.NewFromInt(91000)))
	assert.Equal(t, "survey correction", rec.Notes)

	f, err := s.Facility(ctx, "main-dam")
	require.NoError(t, err)
	assert.True(t, f.CurrentVolume.Value.Equal(decimal.NewFromInt(102000)),
		"back-dated correction must not mutate the live volume")

	rows, err := s.HistoryForFacility(ctx, "main-dam")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Date.Equal(april), "rows must come back in period order")
}

func TestSaveBalanceResultIsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var flags hydro.DataQualityFlags
	flags.Add(hydro.SeverityWarning, "zero_valued_month", "Mine Site/boreholes__TO__silo", "no data for period")

	r := balance.Result{
		Date:            hydro.NewCalcDate(2023, time.June),
		Mode:            balance.ModeRegulator,
		FreshInflows:    balance.NewAggregate(),
		DirtyInflows:    balance.NewAggregate(),
		Outflows:        balance.NewAggregate(),
		ClosureErrorM3:  hydro.NewVolume(4000),
		ClosureErrorPct: decimal.NewFromInt(16),
		Flags:           flags,
	}
	r.FreshInflows.Add("rainfall", hydro.NewVolume(25000))

	require.NoError(t, s.SaveBalanceResult(ctx, r))
	require.NoError(t, s.SaveBalanceResult(ctx, r))

	rows, err := s.BalanceResults(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2, "re-running a period appends, never overwrites")
	assert.Equal(t, "2023-06", rows[0].Period)
	assert.Equal(t, "REGULATOR", rows[0].Mode)
	assert.Equal(t, "25000", rows[0].FreshInflowsM3)
	require.Len(t, rows[0].Flags, 1)
	assert.Equal(t, "zero_valued_month", rows[0].Flags[0].Code)
}

func TestConnectionMirrorRejectsDuplicateSignatures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conn := topology.FlowConnection{
		From:     topology.StructureRef{Area: "mine", Structure: "reservoir"},
		To:       topology.StructureRef{Area: "mine", Structure: "plant"},
		FlowType: topology.FlowClean,
	}

	err := s.SaveConnections(ctx, []topology.FlowConnection{conn, conn})
	var dup *topology.DuplicateConnectionError
	require.True(t, errors.As(err, &dup))

	// The failed batch rolled back entirely.
	loaded, err := s.LoadConnections(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, s.SaveConnections(ctx, []topology.FlowConnection{conn}))
	loaded, err = s.LoadConnections(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "reservoir__TO__plant", loaded[0].FlowID())
}

func TestEnvironmentalRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	date := hydro.NewCalcDate(2023, time.June)
	require.NoError(t, s.SaveEnvironmental(ctx, Environmental{
		Date: date, RainfallMM: 12.5, EvaporationMM: 140,
	}))

	got, ok, err := s.GetEnvironmental(ctx, date)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 12.5, got.RainfallMM)
	assert.Equal(t, 140.0, got.EvaporationMM)

	_, ok, err = s.GetEnvironmental(ctx, date.Next())
	require.NoError(t, err)
	assert.False(t, ok)
}
