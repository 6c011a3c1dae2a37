// Package store persists a run's event stream and patient summaries to SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/patient-sim/patient-sim/sim"
	"github.com/patient-sim/patient-sim/sim/trace"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	run_id  TEXT NOT NULL,
	patient INTEGER NOT NULL,
	month   INTEGER NOT NULL,
	kind    TEXT NOT NULL,
	detail  TEXT NOT NULL,
	illness TEXT NOT NULL,
	line    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS events_run_patient ON events(run_id, patient);
CREATE TABLE IF NOT EXISTS summaries (
	run_id                 TEXT NOT NULL,
	patient                INTEGER NOT NULL,
	months                 INTEGER NOT NULL,
	life_months            REAL NOT NULL,
	discounted_life_months REAL NOT NULL,
	cost                   REAL NOT NULL,
	discounted_cost        REAL NOT NULL,
	died                   INTEGER NOT NULL,
	cause_of_death         TEXT NOT NULL,
	infected               INTEGER NOT NULL,
	detected               INTEGER NOT NULL,
	illnesses              INTEGER NOT NULL,
	regimen_lines_started  INTEGER NOT NULL,
	PRIMARY KEY (run_id, patient)
);`

// Store is an Observer writing one transaction per patient. Observer methods
// cannot return errors, so the first failure is kept and every later write is
// skipped; check Err or Close.
type Store struct {
	sim.NopObserver

	ctx   context.Context
	db    *sql.DB
	runID string
	tx    *sql.Tx
	err   error
}

// Open creates (or reuses) the database at path and returns a Store tagging
// rows with runID.
func Open(ctx context.Context, path, runID string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{ctx: ctx, db: db, runID: runID}, nil
}

func (s *Store) begin() bool {
	if s.err != nil {
		return false
	}
	if s.tx == nil {
		tx, err := s.db.BeginTx(s.ctx, nil)
		if err != nil {
			s.err = fmt.Errorf("begin: %w", err)
			return false
		}
		s.tx = tx
	}
	return true
}

func (s *Store) fail(err error) {
	s.err = err
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
}

// OnEvent implements sim.Observer.
func (s *Store) OnEvent(ev trace.Event) {
	if !s.begin() {
		return
	}
	if _, err := s.tx.ExecContext(s.ctx,
		`INSERT INTO events(run_id,patient,month,kind,detail,illness,line) VALUES(?,?,?,?,?,?,?)`,
		s.runID, ev.Patient, ev.Month, string(ev.Kind), ev.Detail, ev.Illness, ev.Line); err != nil {
		s.fail(fmt.Errorf("insert event: %w", err))
	}
}

// OnPatientEnd implements sim.Observer. It writes the summary row and
// commits the patient's transaction.
func (s *Store) OnPatientEnd(sum sim.PatientSummary) {
	if !s.begin() {
		return
	}
	if _, err := s.tx.ExecContext(s.ctx,
		`INSERT INTO summaries(run_id,patient,months,life_months,discounted_life_months,cost,discounted_cost,died,cause_of_death,infected,detected,illnesses,regimen_lines_started)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(run_id,patient) DO UPDATE SET months=excluded.months, life_months=excluded.life_months,
			discounted_life_months=excluded.discounted_life_months, cost=excluded.cost, discounted_cost=excluded.discounted_cost,
			died=excluded.died, cause_of_death=excluded.cause_of_death, infected=excluded.infected, detected=excluded.detected,
			illnesses=excluded.illnesses, regimen_lines_started=excluded.regimen_lines_started`,
		s.runID, sum.Patient, sum.Months, sum.LifeMonths, sum.DiscountedLifeMonths, sum.Cost, sum.DiscountedCost,
		sum.Died, sum.CauseOfDeath, sum.Infected, sum.Detected, sum.Illnesses, sum.RegimenLinesStarted); err != nil {
		s.fail(fmt.Errorf("upsert summary: %w", err))
		return
	}
	if err := s.tx.Commit(); err != nil {
		s.tx = nil
		s.err = fmt.Errorf("commit: %w", err)
		return
	}
	s.tx = nil
}

// Err returns the first write error, if any.
func (s *Store) Err() error {
	return s.err
}

// Close commits any pending rows and closes the database. It returns the
// first error seen during the run.
func (s *Store) Close() error {
	if s.tx != nil && s.err == nil {
		if err := s.tx.Commit(); err != nil {
			s.err = fmt.Errorf("commit: %w", err)
		}
		s.tx = nil
	}
	if err := s.db.Close(); err != nil && s.err == nil {
		s.err = fmt.Errorf("close sqlite: %w", err)
	}
	return s.err
}

// EventCounts returns the number of stored events per kind for the run.
func (s *Store) EventCounts(ctx context.Context) (map[trace.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM events WHERE run_id = ? GROUP BY kind`, s.runID)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer func() { _ = rows.Close() }()
	counts := make(map[trace.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		counts[trace.Kind(kind)] = n
	}
	return counts, rows.Err()
}

// Summaries returns the run's summary rows in patient order.
func (s *Store) Summaries(ctx context.Context) ([]sim.PatientSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT patient,months,life_months,discounted_life_months,cost,discounted_cost,
		died,cause_of_death,infected,detected,illnesses,regimen_lines_started
		FROM summaries WHERE run_id = ? ORDER BY patient`, s.runID)
	if err != nil {
		return nil, fmt.Errorf("select summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []sim.PatientSummary
	for rows.Next() {
		sum := sim.PatientSummary{RunID: s.runID}
		if err := rows.Scan(&sum.Patient, &sum.Months, &sum.LifeMonths, &sum.DiscountedLifeMonths, &sum.Cost,
			&sum.DiscountedCost, &sum.Died, &sum.CauseOfDeath, &sum.Infected, &sum.Detected, &sum.Illnesses,
			&sum.RegimenLinesStarted); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
