package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/danielpatrickdp/sas-staircase/internal/staircase"
)

func tempLog(t *testing.T) (*TrialLog, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewTrialLog(filepath.Join(t.TempDir(), "trials.db"), NewLogger("debug", &buf))
	if err != nil {
		t.Fatalf("NewTrialLog: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, &buf
}

func recordedEngine(t *testing.T, l *TrialLog, label string, opts ...staircase.Option) (*staircase.Engine, *Recorder) {
	t.Helper()
	rec := l.Attach(label)
	eng, err := staircase.New(0.85, 30, 100, append(opts, staircase.WithObserver(rec))...)
	if err != nil {
		t.Fatalf("staircase.New: %v", err)
	}
	if err := rec.Begin(eng.Config()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return eng, rec
}

func TestRecorderWritesRun(t *testing.T) {
	l, _ := tempLog(t)
	eng, rec := recordedEngine(t, l, "pilot", staircase.WithXMax(120), staircase.WithStopThreshold(4))

	for _, r := range []int{1, 0, 0, 1} {
		eng.Update(r)
	}
	if rec.Err() != nil {
		t.Fatalf("recorder error: %v", rec.Err())
	}

	run, err := l.GetRun(rec.RunID())
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Label != "pilot" || run.TargetProbability != 0.85 || run.StartValue != 100 || run.SeedIssued != 100 {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Options[staircase.KeyXMax] != float64(120) {
		t.Fatalf("expected xMax option 120, got %v", run.Options[staircase.KeyXMax])
	}

	events, err := l.Events(rec.RunID())
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	issued := eng.IssuedValues()
	for i, ev := range events {
		if ev.Seq != i+1 || ev.Trial != i+1 || ev.Kind != KindTrial {
			t.Fatalf("event %d: unexpected %+v", i, ev)
		}
		if ev.Issued != issued[i+1] {
			t.Fatalf("event %d: expected issued %v, got %v", i, issued[i+1], ev.Issued)
		}
	}
	if !events[1].Reversal || events[1].ReversalCount != 1 {
		t.Fatalf("expected trial 2 reversal, got %+v", events[1])
	}
	if !events[3].Stopped {
		t.Fatal("expected last event to be stopped")
	}
}

func TestRecorderBackstepAndReset(t *testing.T) {
	l, _ := tempLog(t)
	eng, rec := recordedEngine(t, l, "")

	for _, r := range []int{1, 0, 1} {
		eng.Update(r)
	}
	eng.Backstep(2)
	eng.Update(0)
	eng.Backstep(99) // rejected, not logged

	events, err := l.Events(rec.RunID())
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	bs := events[3]
	if bs.Kind != KindBackstep || bs.Removed != 2 || bs.Trial != 2 {
		t.Fatalf("unexpected backstep event %+v", bs)
	}
	if got := FinalResponses(events); !reflect.DeepEqual(got, eng.Responses()) {
		t.Fatalf("expected %v, got %v", eng.Responses(), got)
	}
	run, err := l.GetRun(rec.RunID())
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got := FinalIssued(run.SeedIssued, events); !reflect.DeepEqual(got, eng.IssuedValues()) {
		t.Fatalf("expected issued %v, got %v", eng.IssuedValues(), got)
	}

	eng.Reset()
	events, _ = l.Events(rec.RunID())
	if events[len(events)-1].Kind != KindReset {
		t.Fatalf("expected reset event last, got %+v", events[len(events)-1])
	}
	if got := FinalResponses(events); len(got) != 0 {
		t.Fatalf("expected no responses after reset, got %v", got)
	}
	if got := FinalIssued(run.SeedIssued, events); !reflect.DeepEqual(got, []float64{100}) {
		t.Fatalf("expected only the seed after reset, got %v", got)
	}
}

func TestRecorderBeforeBegin(t *testing.T) {
	l, buf := tempLog(t)
	rec := l.Attach("early")
	rec.OnTrial(staircase.TrialEvent{Trial: 1})
	if rec.Err() == nil {
		t.Fatal("expected error for event before Begin")
	}
	if !strings.Contains(buf.String(), "trial log write failed") {
		t.Fatalf("expected logged failure, got %q", buf.String())
	}
	events, _ := l.Events(rec.RunID())
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestRecorderBeginTwice(t *testing.T) {
	l, _ := tempLog(t)
	eng, rec := recordedEngine(t, l, "")
	if err := rec.Begin(eng.Config()); err == nil {
		t.Fatal("expected error on second Begin")
	}
}

func TestListRuns(t *testing.T) {
	l, _ := tempLog(t)
	_, a := recordedEngine(t, l, "a")
	_, b := recordedEngine(t, l, "b")
	if a.RunID() == b.RunID() {
		t.Fatal("expected distinct run IDs")
	}

	runs, err := l.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}

	runs, _ = l.ListRuns(1)
	if len(runs) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(runs))
	}
}

func TestGetRunNotFound(t *testing.T) {
	l, _ := tempLog(t)
	if _, err := l.GetRun("nonexistent-id"); err == nil {
		t.Fatal("expected error for nonexistent run")
	}
}

func TestNewTrialLogInvalidPath(t *testing.T) {
	_, err := NewTrialLog(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "t.db"), nil)
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestDBAccessor(t *testing.T) {
	l, _ := tempLog(t)
	if l.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}
