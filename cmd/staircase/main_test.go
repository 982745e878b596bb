package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielpatrickdp/sas-staircase/internal/logging"
	"github.com/danielpatrickdp/sas-staircase/internal/replay"
	"github.com/danielpatrickdp/sas-staircase/internal/staircase"
)

// execute runs the root command with args and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got["version"] != version {
		t.Errorf("expected version %s, got %v", version, got)
	}
}

// simulate -> inspect -> export -> replay round trip through a trial log.
func TestSimulateExportReplay(t *testing.T) {
	t.Setenv("STAIRCASE_DB", "")
	t.Setenv("STAIRCASE_LOG_LEVEL", "")
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "trials.db")
	cfgPath := writeFile(t, dir, "staircase.yaml", `
staircase:
  target_probability: 0.75
  scale_constant: 8
  start_value: 60
  options:
    stopThreshold: 10
    xMin: 0
    xMax: 100
`)

	out, err := execute(t, "simulate", "--config", cfgPath, "--db", dbPath, "--label", "pilot",
		"--threshold", "50", "--slope", "-0.5", "--seed", "7", "--json")
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	var sim simulateOutput
	if err := json.Unmarshal([]byte(out), &sim); err != nil {
		t.Fatalf("decode simulate output: %v", err)
	}
	if sim.Trials != 10 || !sim.Stopped || sim.RunID == "" {
		t.Fatalf("unexpected simulate output %+v", sim)
	}
	if len(sim.Issued) != 11 || len(sim.Responses) != 10 {
		t.Fatalf("expected 11 intensities and 10 responses, got %d and %d", len(sim.Issued), len(sim.Responses))
	}
	for _, x := range sim.Issued {
		if x < 0 || x > 100 {
			t.Fatalf("intensity %v outside [0, 100]", x)
		}
	}

	out, err = execute(t, "inspect", "--db", dbPath, "--json")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var rows []listRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode inspect output: %v", err)
	}
	if len(rows) != 1 || rows[0].RunID != sim.RunID || rows[0].Label != "pilot" {
		t.Fatalf("unexpected runs %+v", rows)
	}
	if rows[0].Trials != 10 || !rows[0].Stopped || rows[0].Final != sim.Final || rows[0].Reversals != sim.ReversalCount {
		t.Fatalf("inspect disagrees with simulate: %+v vs %+v", rows[0], sim)
	}

	fixturePath := filepath.Join(dir, "fixture.json")
	if _, err := execute(t, "export", "--db", dbPath, "--run", sim.RunID, "--out", fixturePath); err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := replay.LoadFixture(fixturePath)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if !f.ExpectStopped || len(f.Responses) != 10 {
		t.Fatalf("unexpected fixture %+v", f)
	}

	if out, err := execute(t, "replay", "--fixture", fixturePath); err != nil {
		t.Fatalf("replay fixture: %v\n%s", err, out)
	}
	if out, err := execute(t, "replay", "--db", dbPath, "--run", sim.RunID); err != nil {
		t.Fatalf("replay run: %v\n%s", err, out)
	}
}

func TestReplayCheckedInFixture(t *testing.T) {
	out, err := execute(t, "replay", "--fixture", filepath.Join("..", "..", "internal", "replay", "testdata", "default_rule.json"))
	if err != nil {
		t.Fatalf("replay: %v\n%s", err, out)
	}
	if !strings.Contains(out, "7 total, 7 match, 0 diverge") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestReplayDivergence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.json", `{
  "description": "tampered",
  "params": {"target_probability": 0.85, "scale_constant": 30, "start_value": 100},
  "responses": [1, 0],
  "expected_issued": [100, 104.5, 90],
  "expect_stopped": false
}`)

	out, err := execute(t, "replay", "--fixture", path, "--json")
	if !errors.Is(err, errDiverged) {
		t.Fatalf("expected errDiverged, got %v", err)
	}
	var got replayOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode replay output: %v", err)
	}
	if len(got.Mismatches) != 1 || !got.Rows[1].Match || got.Rows[2].Match {
		t.Fatalf("unexpected comparison %+v", got)
	}
}

func TestReplayNeedsOneSource(t *testing.T) {
	if _, err := execute(t, "replay"); err == nil {
		t.Fatal("expected error without a source")
	}
	if _, err := execute(t, "replay", "--fixture", "a.json", "--db", "b.db"); err == nil {
		t.Fatal("expected error with two sources")
	}
}

// Backstepped trials are dropped from the exported fixture.
func TestFixtureFromLogAfterBackstep(t *testing.T) {
	trialLog, err := logging.NewTrialLog(filepath.Join(t.TempDir(), "trials.db"), logging.NewLogger("warn", &bytes.Buffer{}))
	if err != nil {
		t.Fatalf("NewTrialLog: %v", err)
	}
	defer trialLog.Close()

	rec := trialLog.Attach("")
	eng, err := staircase.New(0.85, 30, 100, staircase.WithStopThreshold(5), staircase.WithObserver(rec))
	if err != nil {
		t.Fatalf("staircase.New: %v", err)
	}
	if err := rec.Begin(eng.Config()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for _, r := range []int{1, 0, 0, 1, 1} {
		eng.Update(r)
	}
	eng.Backstep(2)
	eng.Update(0)

	f, err := fixtureFromLog(trialLog, rec.RunID())
	if err != nil {
		t.Fatalf("fixtureFromLog: %v", err)
	}
	if len(f.Responses) != 4 || f.ExpectStopped {
		t.Fatalf("unexpected fixture %+v", f)
	}
	result, err := f.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mismatches := f.Compare(result, 0); len(mismatches) != 0 {
		t.Fatalf("unexpected mismatches %v", mismatches)
	}
}

func TestSimulateRejectsBadObserver(t *testing.T) {
	if _, err := execute(t, "simulate", "--guess", "0.6", "--lapse", "0.5"); err == nil {
		t.Fatal("expected observer validation error")
	}
}
