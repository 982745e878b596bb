package replay

import (
	"os"
	"path/filepath"
	"testing"
)

// #region fixture-tests

// TestFixtures replays every fixture under testdata and compares the issued
// intensities with the recorded ones. This is the primary regression test:
// if the update, clamp or stop logic drifts, it shows up here.
func TestFixtures(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.json"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("no fixtures found")
	}

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			f, err := LoadFixture(path)
			if err != nil {
				t.Fatalf("LoadFixture: %v", err)
			}
			result, err := f.Run()
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			for _, m := range f.Compare(result, 1e-9) {
				t.Errorf("%s: %s", f.Description, m)
			}
		})
	}
}

func TestFixture_TrailingResponsesRejected(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "bounded_reversal_stop.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	result, err := f.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := Summarize(result)
	if s.Accepted != 4 || s.Rejected != 2 || !s.Stopped || s.Reversals != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestCompareReportsDivergence(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "default_rule.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	f.ExpectedIssued[2] = 90
	f.ExpectedIssued = append(f.ExpectedIssued, 1)
	f.ExpectStopped = true

	result, _ := f.Run()
	mismatches := f.Compare(result, 1e-9)
	if len(mismatches) != 3 {
		t.Fatalf("expected 3 mismatches, got %d: %v", len(mismatches), mismatches)
	}
	if mismatches[1].Trial != 3 || mismatches[1].Expected != 90 {
		t.Fatalf("unexpected trial mismatch %+v", mismatches[1])
	}
}

func TestWriteFixtureRoundTrip(t *testing.T) {
	f := &Fixture{
		Description: "written",
		RunID:       "run-1",
		Params: Params{
			TargetProbability: 0.75,
			ScaleConstant:     10,
			StartValue:        50,
			Options:           map[string]any{"xMin": 0.0, "stopThreshold": 3.0},
		},
		Responses:      []int{1, 1, 0},
		ExpectedIssued: []float64{50, 52.5, 55, 51.25},
		ExpectStopped:  true,
	}
	path := filepath.Join(t.TempDir(), "out.json")
	if err := WriteFixture(f, path); err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}
	got, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	result, err := got.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m := got.Compare(result, 1e-9); len(m) != 0 {
		t.Fatalf("unexpected mismatches %v", m)
	}
}

func TestLoadFixtureErrors(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFixture(bad); err == nil {
		t.Fatal("expected parse error")
	}
}

// #endregion fixture-tests
