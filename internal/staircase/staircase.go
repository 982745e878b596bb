package staircase

import (
	"fmt"
	"log/slog"
	"math"
)

// #region engine

// Engine runs one staircase procedure. Create it with New; the zero value is
// not usable.
type Engine struct {
	cfg      Config
	rule     UpdateRule
	logger   *slog.Logger
	observer Observer

	hist          history
	reversalCount int
	trialCount    int // next trial while running, last trial once stopped
	stopped       bool
}

// New creates an engine targeting probability phi with scale constant c,
// starting at x1, and seeds trial 1.
func New(phi, c, x1 float64, opts ...Option) (*Engine, error) {
	if err := checkFinite("target probability", phi); err != nil {
		return nil, err
	}
	if phi < 0 || phi > 1 {
		return nil, fmt.Errorf("%w: target probability %v outside [0, 1]", ErrInvalidParameter, phi)
	}
	if err := checkFinite("scale constant", c); err != nil {
		return nil, err
	}
	if err := checkFinite("start value", x1); err != nil {
		return nil, err
	}

	s := settings{
		cfg:    defaultConfig(phi, c, x1),
		rule:   DefaultRule,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.cfg.XMin > s.cfg.XMax {
		return nil, fmt.Errorf("%w: xMin %v above xMax %v", ErrInvalidParameter, s.cfg.XMin, s.cfg.XMax)
	}

	e := &Engine{
		cfg:      s.cfg,
		rule:     s.rule,
		logger:   s.logger,
		observer: s.observer,
	}
	for _, w := range s.warnings {
		e.logger.Warn("staircase option ignored", "reason", w)
	}
	e.seed()
	return e, nil
}

func checkFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s %v is not a finite number", ErrInvalidParameter, name, v)
	}
	return nil
}

// seed resets the history to trial 1 only.
func (e *Engine) seed() {
	issued := e.cfg.Seed()
	internal := e.cfg.StartValue
	if e.cfg.TruncateStaircase {
		internal = issued
	}
	e.hist.seed(issued, internal)
	e.reversalCount = 0
	e.trialCount = 1
	e.stopped = false
}

// #endregion engine

// #region update

// Update records the response to the current trial and computes the
// intensity for the next one. Responses other than 0 and 1, and calls after
// the procedure stopped, are logged and ignored.
func (e *Engine) Update(response int) {
	if response != 0 && response != 1 {
		e.logger.Warn("staircase response ignored", "response", response, "reason", "want 0 or 1")
		return
	}
	if e.stopped {
		e.logger.Warn("staircase response ignored", "response", response, "reason", "procedure stopped",
			"trial", e.trialCount)
		return
	}

	t := e.trialCount
	prev := response
	if t > 1 {
		prev = e.hist.responses[t-2]
	}
	reversal := response != prev
	m := e.reversalCount
	if reversal {
		m++
	}

	raw := e.rule(e.cfg.TargetProbability, e.cfg.ScaleConstant, m, response)
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		e.logger.Warn("staircase response ignored", "response", response, "trial", t,
			"reason", fmt.Sprintf("update rule returned %v", raw))
		return
	}

	// The down bound is held as its negative so one clamp covers both
	// directions.
	step := clip(-raw, -e.cfg.StepBoundDown, e.cfg.StepBoundUp)
	if e.cfg.RoundSteps {
		step = math.Round(step)
	}
	nextRaw := e.hist.internal[t-1] - step
	nextIssued := clip(nextRaw, e.cfg.XMin, e.cfg.XMax)
	nextInternal := nextRaw
	if e.cfg.TruncateStaircase {
		nextInternal = nextIssued
	}

	e.hist.record(response, reversal, nextIssued, nextInternal)
	e.reversalCount = m

	switch e.cfg.StopMode {
	case StopTrials:
		e.stopped = t == e.cfg.StopThreshold
	case StopReversals:
		e.stopped = m == e.cfg.StopThreshold
	}
	if !e.stopped {
		e.trialCount++
	}

	e.logger.Debug("staircase trial recorded",
		"trial", t, "response", response, "reversal", reversal, "reversals", m,
		"step", step, "next", nextIssued, "stopped", e.stopped)

	if e.observer != nil {
		e.observer.OnTrial(TrialEvent{
			Trial:         t,
			Response:      response,
			Reversal:      reversal,
			ReversalCount: m,
			Raw:           raw,
			Step:          step,
			NextIssued:    nextIssued,
			NextInternal:  nextInternal,
			Stopped:       e.stopped,
		})
	}
}

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// #endregion update

// #region update-function

// SetUpdateFunction replaces the update rule. f may be an UpdateRule, a
// func(phi, c float64, reversals, response int) float64 or a Rule. Anything
// else is logged and the current rule is kept. It reports whether the rule
// was replaced.
func (e *Engine) SetUpdateFunction(f any) bool {
	var rule UpdateRule
	switch fn := f.(type) {
	case UpdateRule:
		rule = fn
	case func(float64, float64, int, int) float64:
		rule = fn
	case Rule:
		rule = fn.Step
	}
	if rule == nil {
		e.logger.Warn("staircase update rule rejected", "type", fmt.Sprintf("%T", f),
			"reason", "want func(phi, c float64, reversals, response int) float64")
		return false
	}
	e.rule = rule
	return true
}

// #endregion update-function

// #region reset-backstep

// Reset discards the history and seeds trial 1 again. Configuration and the
// update rule are kept.
func (e *Engine) Reset() {
	e.seed()
	e.logger.Debug("staircase reset")
	if e.observer != nil {
		e.observer.OnReset()
	}
}

// Backstep removes the last n completed trials so they can be run again.
// A stopped engine starts running again. Requests for n < 1 or for more
// trials than were completed are logged and ignored; it reports whether
// trials were removed.
func (e *Engine) Backstep(n int) bool {
	// Stopping freezes trialCount at the last completed trial instead of the
	// next pending one.
	pending := e.trialCount
	if e.stopped {
		pending++
	}
	if n < 1 || n >= pending {
		e.logger.Warn("staircase backstep ignored", "n", n, "completed", pending-1)
		return false
	}

	next := pending - n
	if next == 1 {
		e.seed()
	} else {
		e.reversalCount -= e.hist.reversalsFrom(next - 1)
		e.hist.truncate(next, next-1)
		e.trialCount = next
		e.stopped = false
	}

	e.logger.Debug("staircase backstep", "removed", n, "trial", e.trialCount)
	if e.observer != nil {
		e.observer.OnBackstep(n, e.trialCount)
	}
	return true
}

// #endregion reset-backstep

// #region accessors

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// TrialCount returns the index of the next trial, or of the last trial once
// the procedure stopped.
func (e *Engine) TrialCount() int { return e.trialCount }

// Stopped reports whether the stop criterion has been met.
func (e *Engine) Stopped() bool { return e.stopped }

// ReversalCount returns the number of reversals recorded so far.
func (e *Engine) ReversalCount() int { return e.reversalCount }

// Current returns the intensity to present next. ok is false once the
// procedure stopped.
func (e *Engine) Current() (x float64, ok bool) {
	if e.stopped {
		return 0, false
	}
	return e.hist.issued[e.trialCount-1], true
}

// IssuedValues returns a copy of the issued intensities, one per trial.
func (e *Engine) IssuedValues() []float64 {
	issued, _, _, _ := e.hist.snapshot()
	return issued
}

// InternalValues returns a copy of the unclipped staircase values.
func (e *Engine) InternalValues() []float64 {
	_, internal, _, _ := e.hist.snapshot()
	return internal
}

// Responses returns a copy of the recorded responses.
func (e *Engine) Responses() []int {
	_, _, responses, _ := e.hist.snapshot()
	return responses
}

// Reversals returns a copy of the per-trial reversal flags.
func (e *Engine) Reversals() []bool {
	_, _, _, reversals := e.hist.snapshot()
	return reversals
}

// ReversalValues returns the intensities presented on reversal trials, in
// trial order.
func (e *Engine) ReversalValues() []float64 {
	var out []float64
	for i, r := range e.hist.reversals {
		if r {
			out = append(out, e.hist.issued[i])
		}
	}
	return out
}

// Snapshot returns a copy of the full history.
func (e *Engine) Snapshot() Snapshot {
	issued, internal, responses, reversals := e.hist.snapshot()
	return Snapshot{
		TrialCount:    e.trialCount,
		Stopped:       e.stopped,
		ReversalCount: e.reversalCount,
		Issued:        issued,
		Internal:      internal,
		Responses:     responses,
		Reversals:     reversals,
	}
}

// #endregion accessors
