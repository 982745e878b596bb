package replay

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a run's
// parameters, the responses it received, and the intensities it issued.
type Fixture struct {
	Description    string    `json:"description"`
	RunID          string    `json:"run_id,omitempty"`
	Params         Params    `json:"params"`
	Responses      []int     `json:"responses"`
	ExpectedIssued []float64 `json:"expected_issued"`
	ExpectStopped  bool      `json:"expect_stopped"`
}

// Mismatch describes one divergence between a replay and its fixture.
type Mismatch struct {
	Trial    int // 1-based; 0 for whole-run mismatches
	Expected float64
	Got      float64
	Reason   string
}

func (m Mismatch) String() string {
	if m.Trial == 0 {
		return m.Reason
	}
	return fmt.Sprintf("trial %d: expected %v, got %v", m.Trial, m.Expected, m.Got)
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(f *Fixture, path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// #endregion fixture-loader

// #region compare

// Run replays the fixture's responses.
func (f *Fixture) Run() (Result, error) {
	return Replay(f.Params, f.Responses)
}

// Compare checks a replay result against the fixture's expected intensities
// and stop state. Intensities within tol of each other match.
func (f *Fixture) Compare(r Result, tol float64) []Mismatch {
	var out []Mismatch
	got := r.Final.Issued
	if len(got) != len(f.ExpectedIssued) {
		out = append(out, Mismatch{
			Reason: fmt.Sprintf("expected %d issued values, got %d", len(f.ExpectedIssued), len(got)),
		})
	}
	for i := 0; i < len(got) && i < len(f.ExpectedIssued); i++ {
		if math.Abs(got[i]-f.ExpectedIssued[i]) > tol {
			out = append(out, Mismatch{Trial: i + 1, Expected: f.ExpectedIssued[i], Got: got[i]})
		}
	}
	if r.Final.Stopped != f.ExpectStopped {
		out = append(out, Mismatch{
			Reason: fmt.Sprintf("expected stopped=%v, got %v", f.ExpectStopped, r.Final.Stopped),
		})
	}
	return out
}

// #endregion compare
