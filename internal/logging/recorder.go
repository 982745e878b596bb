package logging

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/sas-staircase/internal/staircase"
)

// #region recorder
// Recorder writes the events of one run to a TrialLog. It implements
// staircase.Observer, so it is passed to the engine with
// staircase.WithObserver and then started with Begin once the engine exists:
//
//	rec := trialLog.Attach("pilot")
//	eng, err := staircase.New(phi, c, x1, staircase.WithObserver(rec))
//	...
//	if err := rec.Begin(eng.Config()); err != nil { ... }
//
// Write failures never reach the engine; they are logged and kept in Err.
type Recorder struct {
	log     *TrialLog
	runID   string
	label   string
	seq     int
	started bool
	err     error
}

// Attach returns a recorder for a new run with a fresh ID.
func (l *TrialLog) Attach(label string) *Recorder {
	return &Recorder{log: l, runID: newRunID(), label: label}
}

// RunID returns the ID the run is stored under.
func (r *Recorder) RunID() string { return r.runID }

// Err returns the first write failure, if any.
func (r *Recorder) Err() error { return r.err }

// Begin stores the runs row for cfg. Events are only written after Begin.
func (r *Recorder) Begin(cfg staircase.Config) error {
	if r.started {
		return fmt.Errorf("run %s already started", r.runID)
	}
	err := r.log.insertRun(RunRecord{
		RunID:             r.runID,
		Label:             r.label,
		TargetProbability: cfg.TargetProbability,
		ScaleConstant:     cfg.ScaleConstant,
		StartValue:        cfg.StartValue,
		SeedIssued:        cfg.Seed(),
		Options:           cfg.Values(),
		CreatedAt:         time.Now().UTC(),
	})
	if err != nil {
		r.fail(err)
		return err
	}
	r.started = true
	return nil
}

// #endregion recorder

// #region observer
// OnTrial implements staircase.Observer.
func (r *Recorder) OnTrial(ev staircase.TrialEvent) {
	r.write(TrialEntry{
		Kind:          KindTrial,
		Trial:         ev.Trial,
		Response:      ev.Response,
		Reversal:      ev.Reversal,
		ReversalCount: ev.ReversalCount,
		Raw:           ev.Raw,
		Step:          ev.Step,
		Issued:        ev.NextIssued,
		Internal:      ev.NextInternal,
		Stopped:       ev.Stopped,
	})
}

// OnReset implements staircase.Observer.
func (r *Recorder) OnReset() {
	r.write(TrialEntry{Kind: KindReset, Trial: 1})
}

// OnBackstep implements staircase.Observer.
func (r *Recorder) OnBackstep(removed, trialCount int) {
	r.write(TrialEntry{Kind: KindBackstep, Trial: trialCount, Removed: removed})
}

func (r *Recorder) write(entry TrialEntry) {
	if !r.started {
		r.fail(fmt.Errorf("run %s: %s event before Begin", r.runID, entry.Kind))
		return
	}
	r.seq++
	entry.RunID = r.runID
	entry.Seq = r.seq
	if err := LogEvent(r.log.db, entry); err != nil {
		r.fail(err)
	}
}

func (r *Recorder) fail(err error) {
	r.log.logger.Error("trial log write failed", "run", r.runID, "err", err)
	if r.err == nil {
		r.err = err
	}
}

// #endregion observer
