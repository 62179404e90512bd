// Package audit persists completed diagnosis runs and a provenance log
// in SQLite, for inspection tooling and traceability.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS diagnosis_runs (
	run_id           TEXT PRIMARY KEY,
	anomaly_id       TEXT NOT NULL,
	plant_id         TEXT,
	backend          TEXT NOT NULL,
	backend_kind     TEXT NOT NULL,
	fallback         INTEGER NOT NULL DEFAULT 0,
	partial          INTEGER NOT NULL DEFAULT 0,
	depth            INTEGER NOT NULL,
	shots            INTEGER NOT NULL,
	best_energy      REAL,
	worst_energy     REAL,
	hypothesis_count INTEGER NOT NULL,
	coverage_rate    REAL,
	duration_ms      INTEGER NOT NULL,
	result_json      TEXT,
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	event      TEXT NOT NULL,
	detail     TEXT,
	created_at TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES diagnosis_runs(run_id)
);
`

// #endregion schema

// #region types

// RunRecord is one persisted diagnosis run.
type RunRecord struct {
	RunID           string
	AnomalyID       string
	PlantID         string
	Backend         string
	BackendKind     string
	Fallback        bool
	Partial         bool
	Depth           int
	Shots           int
	BestEnergy      float64
	WorstEnergy     float64
	HypothesisCount int
	CoverageRate    float64
	DurationMS      int64
	ResultJSON      string
	CreatedAt       time.Time
}

// ProvenanceEntry is one provenance log row.
type ProvenanceEntry struct {
	RunID     string
	Event     string
	Detail    string
	CreatedAt time.Time
}

// #endregion types

// #region store

// Store manages the diagnosis audit trail in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens the SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion store

// #region record-run

// RecordRun inserts a completed run.
func (s *Store) RecordRun(rec RunRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO diagnosis_runs (run_id, anomaly_id, plant_id, backend, backend_kind, fallback, partial,
		   depth, shots, best_energy, worst_energy, hypothesis_count, coverage_rate, duration_ms, result_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.AnomalyID, nullIfEmpty(rec.PlantID), rec.Backend, rec.BackendKind,
		boolToInt(rec.Fallback), boolToInt(rec.Partial),
		rec.Depth, rec.Shots, rec.BestEnergy, rec.WorstEnergy,
		rec.HypothesisCount, rec.CoverageRate, rec.DurationMS,
		nullIfEmpty(rec.ResultJSON), rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// #endregion record-run

// #region get-run

// GetRun retrieves a run by ID.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	row := s.db.QueryRow(
		`SELECT run_id, anomaly_id, plant_id, backend, backend_kind, fallback, partial,
		   depth, shots, best_energy, worst_energy, hypothesis_count, coverage_rate, duration_ms, result_json, created_at
		 FROM diagnosis_runs WHERE run_id = ?`, runID,
	)
	rec, err := scanRun(row)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, anomaly_id, plant_id, backend, backend_kind, fallback, partial,
		   depth, shots, best_energy, worst_energy, hypothesis_count, coverage_rate, duration_ms, result_json, created_at
		 FROM diagnosis_runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var plantID, resultJSON sql.NullString
	var fallback, partial int
	var createdStr string

	err := row.Scan(&rec.RunID, &rec.AnomalyID, &plantID, &rec.Backend, &rec.BackendKind,
		&fallback, &partial, &rec.Depth, &rec.Shots, &rec.BestEnergy, &rec.WorstEnergy,
		&rec.HypothesisCount, &rec.CoverageRate, &rec.DurationMS, &resultJSON, &createdStr)
	if err != nil {
		return RunRecord{}, err
	}

	rec.PlantID = plantID.String
	rec.ResultJSON = resultJSON.String
	rec.Fallback = fallback != 0
	rec.Partial = partial != 0
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// #endregion get-run

// #region provenance

// LogEvent appends a provenance entry for a run.
func (s *Store) LogEvent(entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO provenance_log (run_id, event, detail, created_at) VALUES (?, ?, ?, ?)`,
		entry.RunID, entry.Event, nullIfEmpty(entry.Detail), entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

// ListEvents returns the provenance entries for a run, oldest first.
func (s *Store) ListEvents(runID string) ([]ProvenanceEntry, error) {
	rows, err := s.db.Query(
		`SELECT run_id, event, detail, created_at FROM provenance_log WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var entries []ProvenanceEntry
	for rows.Next() {
		var e ProvenanceEntry
		var detail sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Event, &detail, &createdStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Detail = detail.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion provenance

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
