package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id             TEXT PRIMARY KEY,
	label              TEXT,
	target_probability REAL NOT NULL,
	scale_constant     REAL NOT NULL,
	start_value        REAL NOT NULL,
	seed_issued        REAL NOT NULL,
	options_json       TEXT NOT NULL,
	created_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trial_events (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         TEXT NOT NULL,
	seq            INTEGER NOT NULL,
	kind           TEXT NOT NULL,
	trial          INTEGER NOT NULL,
	response       INTEGER NOT NULL,
	reversal       INTEGER NOT NULL,
	reversal_count INTEGER NOT NULL,
	raw            REAL NOT NULL,
	step           REAL NOT NULL,
	issued         REAL NOT NULL,
	internal       REAL NOT NULL,
	stopped        INTEGER NOT NULL,
	removed        INTEGER NOT NULL,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS trial_events_run ON trial_events(run_id, seq);
`

// #endregion schema

// #region store-struct
// TrialLog is the SQLite audit log of staircase runs.
type TrialLog struct {
	db     *sql.DB
	logger *slog.Logger
}

// #endregion store-struct

// #region constructor
// NewTrialLog opens a SQLite database and runs migrations. Write failures
// seen by recorders are reported through logger; nil means slog.Default().
func NewTrialLog(dbPath string, logger *slog.Logger) (*TrialLog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &TrialLog{db: db, logger: logger}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (l *TrialLog) Close() error {
	return l.db.Close()
}

// DB returns the underlying *sql.DB.
func (l *TrialLog) DB() *sql.DB {
	return l.db
}

// #endregion close

// #region insert-run
// insertRun writes the runs row for rec.
func (l *TrialLog) insertRun(rec RunRecord) error {
	optsJSON, err := json.Marshal(rec.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	_, err = l.db.Exec(
		`INSERT INTO runs (run_id, label, target_probability, scale_constant, start_value,
		 seed_issued, options_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, nullIfEmpty(rec.Label), rec.TargetProbability, rec.ScaleConstant,
		rec.StartValue, rec.SeedIssued, string(optsJSON), rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func newRunID() string {
	return uuid.New().String()
}

// #endregion insert-run

// #region get-run
// GetRun retrieves a run by ID.
func (l *TrialLog) GetRun(id string) (RunRecord, error) {
	row := l.db.QueryRow(
		`SELECT run_id, label, target_probability, scale_constant, start_value, seed_issued,
		 options_json, created_at FROM runs WHERE run_id = ?`, id,
	)
	rec, err := scanRun(row)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first.
func (l *TrialLog) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := l.db.Query(
		`SELECT run_id, label, target_probability, scale_constant, start_value, seed_issued,
		 options_json, created_at FROM runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var rec RunRecord
	var label sql.NullString
	var optsJSON, createdStr string
	if err := row.Scan(&rec.RunID, &label, &rec.TargetProbability, &rec.ScaleConstant,
		&rec.StartValue, &rec.SeedIssued, &optsJSON, &createdStr); err != nil {
		return RunRecord{}, err
	}
	if label.Valid {
		rec.Label = label.String
	}
	if err := json.Unmarshal([]byte(optsJSON), &rec.Options); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal options: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// #endregion get-run

// #region events
// Events returns every event of a run in Seq order.
func (l *TrialLog) Events(runID string) ([]TrialEntry, error) {
	rows, err := l.db.Query(
		`SELECT run_id, seq, kind, trial, response, reversal, reversal_count, raw, step,
		 issued, internal, stopped, removed, created_at
		 FROM trial_events WHERE run_id = ? ORDER BY seq ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []TrialEntry
	for rows.Next() {
		var ev TrialEntry
		var kind, createdStr string
		var reversal, stopped int
		if err := rows.Scan(&ev.RunID, &ev.Seq, &kind, &ev.Trial, &ev.Response, &reversal,
			&ev.ReversalCount, &ev.Raw, &ev.Step, &ev.Issued, &ev.Internal, &stopped,
			&ev.Removed, &createdStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = EventKind(kind)
		ev.Reversal = reversal != 0
		ev.Stopped = stopped != 0
		ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// #endregion events
