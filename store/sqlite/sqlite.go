/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements the persistence contracts of the engine using SQLite. The
  desktop deployment is a single local file; the same patterns apply to
  PostgreSQL with minor dialect differences.

INTERFACES IMPLEMENTED:
  storage.FacilityStore:  Facility definitions and live volumes
  storage.HistoryStore:   Monthly opening/closing history
  balance.ResultAuditor:  Balance run audit rows

LATEST-PERIOD ENFORCEMENT:
  UpsertStorageHistory is the ONLY writer of a facility's live current
  volume, and only when the written period is at or after the facility's
  latest recorded period. Back-dated corrections persist the history row
  without touching "now". The check and the write happen inside one SQL
  transaction.

KEY TABLES:
  storage_facilities:  Facility definitions + live current volume
  storage_history:     One row per (facility, period)
  flow_connections:    Persisted topology edges (the diagram's source of
                       truth stays in JSON; this table backs reporting)
  environmental_data:  Monthly rainfall/evaporation in millimeters
  balance_results:     Append-only audit of balance runs

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The calculation engine itself is
  single-threaded; the mutex protects the HTTP surface.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/waterbalance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - storage/facility.go: Interface definitions and the latest-period rule
  - storage/store.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hydrova/waterbalance-engine/balance"
	"github.com/hydrova/waterbalance-engine/hydro"
	"github.com/hydrova/waterbalance-engine/storage"
	"github.com/hydrova/waterbalance-engine/topology"
)

// Store implements the persistence interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Storage facilities (definitions + live current volume)
	CREATE TABLE IF NOT EXISTS storage_facilities (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		capacity TEXT NOT NULL,
		current_volume TEXT NOT NULL,
		surface_area_m2 TEXT NOT NULL DEFAULT '0',
		pump_start_pct TEXT NOT NULL DEFAULT '0',
		pump_stop_pct TEXT NOT NULL DEFAULT '0',
		feeds_to_json TEXT NOT NULL DEFAULT '[]',
		updated_at TEXT NOT NULL
	);

	-- Storage history (one row per facility per month)
	CREATE TABLE IF NOT EXISTS storage_history (
		facility TEXT NOT NULL,
		period TEXT NOT NULL,
		opening TEXT NOT NULL,
		closing TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (facility, period)
	);

	CREATE INDEX IF NOT EXISTS idx_storage_history_facility
		ON storage_history(facility, period DESC);

	-- Flow connections (reporting mirror of the diagram topology)
	CREATE TABLE IF NOT EXISTS flow_connections (
		id TEXT PRIMARY KEY,
		from_area TEXT NOT NULL,
		from_structure TEXT NOT NULL,
		to_area TEXT NOT NULL,
		to_structure TEXT NOT NULL,
		flow_type TEXT NOT NULL,
		subcategory TEXT NOT NULL DEFAULT '',
		bidirectional BOOLEAN DEFAULT FALSE,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Duplicate signatures are rejected at the database level too
	CREATE UNIQUE INDEX IF NOT EXISTS idx_flow_connections_signature
		ON flow_connections(from_area, from_structure, to_area, to_structure, flow_type, subcategory);

	-- Environmental data (monthly rainfall/evaporation in mm)
	CREATE TABLE IF NOT EXISTS environmental_data (
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		rainfall_mm REAL NOT NULL DEFAULT 0,
		evaporation_mm REAL NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (year, month)
	);

	-- Balance results (append-only audit of runs)
	CREATE TABLE IF NOT EXISTS balance_results (
		id TEXT PRIMARY KEY,
		period TEXT NOT NULL,
		mode TEXT NOT NULL,
		fresh_inflows_m3 TEXT NOT NULL,
		dirty_inflows_m3 TEXT NOT NULL,
		outflows_m3 TEXT NOT NULL,
		storage_delta_m3 TEXT NOT NULL,
		closure_error_m3 TEXT NOT NULL,
		closure_error_pct TEXT NOT NULL,
		flags_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_balance_results_period
		ON balance_results(period, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// FACILITY STORE (storage.FacilityStore interface)
// =============================================================================

// SaveFacility inserts or updates a facility definition. The live current
// volume is written too: this is the setup/seed path, not the
// history-driven update path.
func (s *Store) SaveFacility(ctx context.Context, f storage.Facility) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	feedsTo, _ := json.Marshal(f.FeedsTo)

	query := `
		INSERT INTO storage_facilities
		(code, name, capacity, current_volume, surface_area_m2, pump_start_pct, pump_stop_pct, feeds_to_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			capacity = excluded.capacity,
			current_volume = excluded.current_volume,
			surface_area_m2 = excluded.surface_area_m2,
			pump_start_pct = excluded.pump_start_pct,
			pump_stop_pct = excluded.pump_stop_pct,
			feeds_to_json = excluded.feeds_to_json,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		string(f.Code), f.Name,
		f.Capacity.Value.String(),
		f.CurrentVolume.Value.String(),
		f.SurfaceAreaM2.String(),
		f.PumpStartPct.String(),
		f.PumpStopPct.String(),
		string(feedsTo),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// StorageFacilities returns all facilities ordered by code.
func (s *Store) StorageFacilities(ctx context.Context) ([]storage.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, capacity, current_volume, surface_area_m2, pump_start_pct, pump_stop_pct, feeds_to_json
		FROM storage_facilities
		ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query facilities: %w", err)
	}
	defer rows.Close()

	var facilities []storage.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		facilities = append(facilities, f)
	}
	return facilities, rows.Err()
}

// Facility returns one facility by code.
func (s *Store) Facility(ctx context.Context, code storage.FacilityCode) (storage.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT code, name, capacity, current_volume, surface_area_m2, pump_start_pct, pump_stop_pct, feeds_to_json
		FROM storage_facilities
		WHERE code = ?
	`, string(code))

	f, err := scanFacility(row)
	if err == sql.ErrNoRows {
		return storage.Facility{}, hydro.ErrFacilityNotFound
	}
	if err != nil {
		return storage.Facility{}, err
	}
	return f, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFacility(r rowScanner) (storage.Facility, error) {
	var (
		f                                          storage.Facility
		code                                       string
		capacity, current, surface, startP, stopP  string
		feedsToJSON                                string
	)

	err := r.Scan(&code, &f.Name, &capacity, &current, &surface, &startP, &stopP, &feedsToJSON)
	if err != nil {
		return f, err
	}

	f.Code = storage.FacilityCode(code)
	f.Capacity = hydro.VolumeFromDecimal(hydro.MustParseDecimal(capacity))
	f.CurrentVolume = hydro.VolumeFromDecimal(hydro.MustParseDecimal(current))
	f.SurfaceAreaM2 = hydro.MustParseDecimal(surface)
	f.PumpStartPct = hydro.MustParseDecimal(startP)
	f.PumpStopPct = hydro.MustParseDecimal(stopP)
	json.Unmarshal([]byte(feedsToJSON), &f.FeedsTo)
	return f, nil
}

// =============================================================================
// HISTORY STORE (storage.HistoryStore interface)
// =============================================================================

// History returns the row for (facility, period).
func (s *Store) History(ctx context.Context, code storage.FacilityCode, date hydro.CalcDate) (storage.History, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rec              storage.History
		opening, closing string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT opening, closing, source, notes
		FROM storage_history
		WHERE facility = ? AND period = ?
	`, string(code), date.String()).Scan(&opening, &closing, &rec.Source, &rec.Notes)

	if err == sql.ErrNoRows {
		return storage.History{}, false, nil
	}
	if err != nil {
		return storage.History{}, false, err
	}

	rec.Facility = code
	rec.Date = date
	rec.Opening = hydro.VolumeFromDecimal(hydro.MustParseDecimal(opening))
	rec.Closing = hydro.VolumeFromDecimal(hydro.MustParseDecimal(closing))
	return rec, true, nil
}

// LatestPeriod returns the most recent period with history for a facility.
// Period keys are "YYYY-MM" so lexicographic MAX is chronological MAX.
func (s *Store) LatestPeriod(ctx context.Context, code storage.FacilityCode) (hydro.CalcDate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latestPeriod(ctx, s.db, code)
}

func (s *Store) latestPeriod(ctx context.Context, db interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, code storage.FacilityCode) (hydro.CalcDate, bool, error) {
	// MAX over an empty set yields NULL, not ErrNoRows.
	var period sql.NullString
	err := db.QueryRowContext(ctx,
		"SELECT MAX(period) FROM storage_history WHERE facility = ?",
		string(code),
	).Scan(&period)

	if err == sql.ErrNoRows || !period.Valid {
		return hydro.CalcDate{}, false, nil
	}
	if err != nil {
		return hydro.CalcDate{}, false, err
	}

	d, err := hydro.ParseCalcDate(period.String)
	if err != nil {
		return hydro.CalcDate{}, false, err
	}
	return d, true, nil
}

// UpsertHistory writes a history row inside one transaction and refreshes
// the facility's live current volume ONLY when the row is at or after the
// facility's latest period. A back-dated correction persists without
// touching "now".
func (s *Store) UpsertHistory(ctx context.Context, h storage.History) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	latest, hasHistory, err := s.latestPeriod(ctx, tx, h.Facility)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO storage_history (facility, period, opening, closing, source, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(facility, period) DO UPDATE SET
			opening = excluded.opening,
			closing = excluded.closing,
			source = excluded.source,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`,
		string(h.Facility), h.Date.String(),
		h.Opening.Value.String(), h.Closing.Value.String(),
		h.Source, h.Notes,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert history: %w", err)
	}

	if !hasHistory || !h.Date.Before(latest) {
		_, err = tx.ExecContext(ctx, `
			UPDATE storage_facilities SET current_volume = ?, updated_at = ? WHERE code = ?
		`, h.Closing.Value.String(), time.Now().UTC().Format(time.RFC3339), string(h.Facility))
		if err != nil {
			return fmt.Errorf("failed to update live volume: %w", err)
		}
	}

	return tx.Commit()
}

// HistoryForFacility returns all history rows for a facility in period order.
func (s *Store) HistoryForFacility(ctx context.Context, code storage.FacilityCode) ([]storage.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT period, opening, closing, source, notes
		FROM storage_history
		WHERE facility = ?
		ORDER BY period ASC
	`, string(code))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.History
	for rows.Next() {
		var (
			rec              storage.History
			period           string
			opening, closing string
		)
		if err := rows.Scan(&period, &opening, &closing, &rec.Source, &rec.Notes); err != nil {
			return nil, err
		}
		rec.Facility = code
		rec.Date, _ = hydro.ParseCalcDate(period)
		rec.Opening = hydro.VolumeFromDecimal(hydro.MustParseDecimal(opening))
		rec.Closing = hydro.VolumeFromDecimal(hydro.MustParseDecimal(closing))
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// FLOW CONNECTIONS - Reporting mirror of the topology
// =============================================================================

// SaveConnections replaces the persisted connection mirror with the given
// set. The JSON diagram stays the source of truth; this table exists for
// SQL-side reporting and joins.
func (s *Store) SaveConnections(ctx context.Context, conns []topology.FlowConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM flow_connections"); err != nil {
		return err
	}

	query := `
		INSERT INTO flow_connections
		(id, from_area, from_structure, to_area, to_structure, flow_type, subcategory, bidirectional, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range conns {
		_, err := tx.ExecContext(ctx, query,
			uuid.NewString(),
			string(c.From.Area), string(c.From.Structure),
			string(c.To.Area), string(c.To.Structure),
			string(c.FlowType), c.Subcategory, c.Bidirectional, c.Notes, now,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return &topology.DuplicateConnectionError{Signature: c.Signature()}
			}
			return fmt.Errorf("failed to insert connection: %w", err)
		}
	}

	return tx.Commit()
}

// LoadConnections returns the persisted connection mirror.
func (s *Store) LoadConnections(ctx context.Context) ([]topology.FlowConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT from_area, from_structure, to_area, to_structure, flow_type, subcategory, bidirectional, notes
		FROM flow_connections
		ORDER BY from_area, from_structure, to_area, to_structure
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []topology.FlowConnection
	for rows.Next() {
		var (
			c                        topology.FlowConnection
			fromArea, fromStructure  string
			toArea, toStructure      string
			flowType                 string
		)
		if err := rows.Scan(&fromArea, &fromStructure, &toArea, &toStructure,
			&flowType, &c.Subcategory, &c.Bidirectional, &c.Notes); err != nil {
			return nil, err
		}
		c.From = topology.StructureRef{Area: topology.AreaCode(fromArea), Structure: topology.StructureCode(fromStructure)}
		c.To = topology.StructureRef{Area: topology.AreaCode(toArea), Structure: topology.StructureCode(toStructure)}
		c.FlowType = topology.FlowType(flowType)
		c.Internal = !c.IsInterArea()
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// ENVIRONMENTAL DATA - Monthly rainfall/evaporation (millimeters)
// =============================================================================

// Environmental is one month of site weather inputs, used for surface-area
// based rainfall gain and evaporation loss estimates.
type Environmental struct {
	Date          hydro.CalcDate
	RainfallMM    float64
	EvaporationMM float64
}

// SaveEnvironmental upserts one month of weather inputs.
func (s *Store) SaveEnvironmental(ctx context.Context, e Environmental) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO environmental_data (year, month, rainfall_mm, evaporation_mm, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(year, month) DO UPDATE SET
			rainfall_mm = excluded.rainfall_mm,
			evaporation_mm = excluded.evaporation_mm,
			updated_at = excluded.updated_at
	`, e.Date.Year, int(e.Date.Month), e.RainfallMM, e.EvaporationMM,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetEnvironmental returns one month of weather inputs; ok=false if absent.
func (s *Store) GetEnvironmental(ctx context.Context, date hydro.CalcDate) (Environmental, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := Environmental{Date: date}
	err := s.db.QueryRowContext(ctx, `
		SELECT rainfall_mm, evaporation_mm FROM environmental_data WHERE year = ? AND month = ?
	`, date.Year, int(date.Month)).Scan(&e.RainfallMM, &e.EvaporationMM)

	if err == sql.ErrNoRows {
		return Environmental{}, false, nil
	}
	if err != nil {
		return Environmental{}, false, err
	}
	return e, true, nil
}

// =============================================================================
// BALANCE RESULT AUDIT (balance.ResultAuditor interface)
// =============================================================================

// SaveBalanceResult appends one audit row per balance run. Audit rows are
// never updated or deleted; re-running a period appends a new row.
func (s *Store) SaveBalanceResult(ctx context.Context, r balance.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flagsJSON, _ := json.Marshal(r.Flags.All())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balance_results
		(id, period, mode, fresh_inflows_m3, dirty_inflows_m3, outflows_m3,
		 storage_delta_m3, closure_error_m3, closure_error_pct, flags_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.NewString(),
		r.Date.String(), string(r.Mode),
		r.FreshInflows.Total.Value.String(),
		r.DirtyInflows.Total.Value.String(),
		r.Outflows.Total.Value.String(),
		r.Storage.Delta.Value.String(),
		r.ClosureErrorM3.Value.String(),
		r.ClosureErrorPct.String(),
		string(flagsJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save balance result: %w", err)
	}
	return nil
}

// BalanceResultRow is one persisted audit row.
type BalanceResultRow struct {
	ID              string
	Period          string
	Mode            string
	FreshInflowsM3  string
	DirtyInflowsM3  string
	OutflowsM3      string
	StorageDeltaM3  string
	ClosureErrorM3  string
	ClosureErrorPct string
	Flags           []hydro.Flag
	CreatedAt       time.Time
}

// BalanceResults returns the most recent audit rows, newest first.
func (s *Store) BalanceResults(ctx context.Context, limit int) ([]BalanceResultRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, period, mode, fresh_inflows_m3, dirty_inflows_m3, outflows_m3,
		       storage_delta_m3, closure_error_m3, closure_error_pct, flags_json, created_at
		FROM balance_results
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BalanceResultRow
	for rows.Next() {
		var (
			r                    BalanceResultRow
			flagsJSON, createdAt string
		)
		if err := rows.Scan(&r.ID, &r.Period, &r.Mode, &r.FreshInflowsM3, &r.DirtyInflowsM3,
			&r.OutflowsM3, &r.StorageDeltaM3, &r.ClosureErrorM3, &r.ClosureErrorPct,
			&flagsJSON, &createdAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(flagsJSON), &r.Flags)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"balance_results", "environmental_data", "flow_connections", "storage_history", "storage_facilities"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
