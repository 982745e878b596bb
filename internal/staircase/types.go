package staircase

import (
	"fmt"
	"math"
)

// #region stop-mode

// StopMode selects what the stop threshold counts.
type StopMode string

const (
	StopTrials    StopMode = "trials"
	StopReversals StopMode = "reversals"
)

// ParseStopMode maps a mode name to a StopMode.
func ParseStopMode(s string) (StopMode, error) {
	switch StopMode(s) {
	case StopTrials, StopReversals:
		return StopMode(s), nil
	}
	return "", fmt.Errorf("unknown stop mode %q (want %q or %q)", s, StopTrials, StopReversals)
}

// #endregion stop-mode

// #region update-rule

// UpdateRule computes the step magnitude for one trial from the target
// probability, the scale constant, the current reversal count and the
// response just recorded.
type UpdateRule func(phi, c float64, reversals, response int) float64

// Rule is the single-method form of UpdateRule, for rules that carry state
// of their own.
type Rule interface {
	Step(phi, c float64, reversals, response int) float64
}

// DefaultRule is c(response - phi)/(1 + m).
func DefaultRule(phi, c float64, reversals, response int) float64 {
	return c * (float64(response) - phi) / float64(1+reversals)
}

// #endregion update-rule

// #region config

// Config holds the parameters fixed at construction.
type Config struct {
	TargetProbability float64
	ScaleConstant     float64
	StartValue        float64
	XMax              float64
	XMin              float64
	StepBoundDown     float64 // magnitude, +Inf = unbounded
	StepBoundUp       float64 // magnitude, +Inf = unbounded
	StopMode          StopMode
	StopThreshold     int
	TruncateStaircase bool
	RoundSteps        bool
}

const defaultStopThreshold = 50

// defaultConfig returns the configuration used when no option overrides it.
func defaultConfig(phi, c, x1 float64) Config {
	return Config{
		TargetProbability: phi,
		ScaleConstant:     c,
		StartValue:        x1,
		XMax:              math.Inf(1),
		XMin:              math.Inf(-1),
		StepBoundDown:     math.Inf(1),
		StepBoundUp:       math.Inf(1),
		StopMode:          StopTrials,
		StopThreshold:     defaultStopThreshold,
		TruncateStaircase: true,
	}
}

// Seed returns the intensity issued on trial 1.
func (c Config) Seed() float64 {
	return clip(c.StartValue, c.XMin, c.XMax)
}

// #endregion config

// #region trial-event

// TrialEvent describes one accepted Update.
type TrialEvent struct {
	Trial         int     // index of the trial just recorded
	Response      int     // 0 or 1
	Reversal      bool    // response differs from the previous trial's
	ReversalCount int     // reversals after this trial
	Raw           float64 // update rule output
	Step          float64 // clamped (and possibly rounded) step
	NextIssued    float64 // intensity issued for trial Trial+1
	NextInternal  float64 // staircase value for trial Trial+1
	Stopped       bool
}

// Observer is notified synchronously about every state change. It is never
// called for a rejected operation.
type Observer interface {
	OnTrial(ev TrialEvent)
	OnReset()
	OnBackstep(removed, trialCount int)
}

// #endregion trial-event

// #region snapshot

// Snapshot is a copy of the engine's history. Slices are indexed from 0, so
// trial i lives at index i-1.
type Snapshot struct {
	TrialCount    int       `json:"trial_count"`
	Stopped       bool      `json:"stopped"`
	ReversalCount int       `json:"reversal_count"`
	Issued        []float64 `json:"issued"`
	Internal      []float64 `json:"internal"`
	Responses     []int     `json:"responses"`
	Reversals     []bool    `json:"reversals"`
}

// #endregion snapshot
