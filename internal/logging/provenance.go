package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-event
// LogEvent writes one entry to the trial_events table.
func LogEvent(db *sql.DB, entry TrialEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO trial_events (run_id, seq, kind, trial, response, reversal, reversal_count,
		 raw, step, issued, internal, stopped, removed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Seq,
		string(entry.Kind),
		entry.Trial,
		entry.Response,
		boolToInt(entry.Reversal),
		entry.ReversalCount,
		entry.Raw,
		entry.Step,
		entry.Issued,
		entry.Internal,
		boolToInt(entry.Stopped),
		entry.Removed,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

// #endregion log-event

// #region final-responses
// FinalResponses rebuilds the response sequence left in the engine after
// all backsteps and resets in events, which must be in Seq order.
func FinalResponses(events []TrialEntry) []int {
	responses := []int{}
	for _, ev := range events {
		switch ev.Kind {
		case KindTrial:
			if ev.Trial-1 <= len(responses) {
				responses = append(responses[:ev.Trial-1], ev.Response)
			}
		case KindBackstep:
			if ev.Trial-1 <= len(responses) {
				responses = responses[:ev.Trial-1]
			}
		case KindReset:
			responses = responses[:0]
		}
	}
	return responses
}

// FinalIssued rebuilds the issued intensities left in the engine, starting
// from the seed intensity of the run.
func FinalIssued(seed float64, events []TrialEntry) []float64 {
	issued := []float64{seed}
	for _, ev := range events {
		switch ev.Kind {
		case KindTrial:
			if ev.Trial <= len(issued) {
				issued = append(issued[:ev.Trial], ev.Issued)
			}
		case KindBackstep:
			if ev.Trial <= len(issued) {
				issued = issued[:ev.Trial]
			}
		case KindReset:
			issued = issued[:1]
		}
	}
	return issued
}

// #endregion final-responses

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
