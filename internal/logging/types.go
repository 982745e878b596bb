package logging

import "time"

// #region event-kind
// EventKind labels a row in the trial_events table.
type EventKind string

const (
	KindTrial    EventKind = "trial"
	KindBackstep EventKind = "backstep"
	KindReset    EventKind = "reset"
)

// #endregion event-kind

// #region trial-entry
// TrialEntry is a single row in the trial_events table.
// For backstep rows Trial holds the engine's trial count afterwards and
// Removed the number of trials dropped; reset rows carry only Kind and Seq.
type TrialEntry struct {
	RunID         string    `json:"run_id"`
	Seq           int       `json:"seq"`
	Kind          EventKind `json:"kind"`
	Trial         int       `json:"trial"`
	Response      int       `json:"response"`
	Reversal      bool      `json:"reversal"`
	ReversalCount int       `json:"reversal_count"`
	Raw           float64   `json:"raw"`
	Step          float64   `json:"step"`
	Issued        float64   `json:"issued"`   // intensity for trial Trial+1
	Internal      float64   `json:"internal"` // staircase value for trial Trial+1
	Stopped       bool      `json:"stopped"`
	Removed       int       `json:"removed,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// #endregion trial-entry

// #region run-record
// RunRecord describes one staircase run: the constructor arguments and the
// name-keyed options it was built with.
type RunRecord struct {
	RunID             string         `json:"run_id"`
	Label             string         `json:"label,omitempty"`
	TargetProbability float64        `json:"target_probability"`
	ScaleConstant     float64        `json:"scale_constant"`
	StartValue        float64        `json:"start_value"`
	SeedIssued        float64        `json:"seed_issued"`
	Options           map[string]any `json:"options"`
	CreatedAt         time.Time      `json:"created_at"`
}

// #endregion run-record
