package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/sas-staircase/internal/logging"
	"github.com/danielpatrickdp/sas-staircase/internal/replay"
	"github.com/danielpatrickdp/sas-staircase/internal/staircase"
	"github.com/spf13/cobra"
)

var errDiverged = errors.New("replay diverged from recorded intensities")

type replayRow struct {
	Trial    int      `json:"trial"`
	Expected *float64 `json:"expected"` // nil past the end of the fixture
	Replayed *float64 `json:"replayed"`
	Match    bool     `json:"match"`
}

type replayOutput struct {
	Source     string         `json:"source"`
	Rows       []replayRow    `json:"rows"`
	Summary    replay.Summary `json:"summary"`
	Mismatches []string       `json:"mismatches"`
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a fixture or logged run and compare intensities",
		Example: `  staircase replay --fixture internal/replay/testdata/default_rule.json
  staircase replay --db trials.db --run 3f2a9c1e-...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fixturePath, _ := cmd.Flags().GetString("fixture")
			dbPath, _ := cmd.Flags().GetString("db")
			runID, _ := cmd.Flags().GetString("run")
			tol, _ := cmd.Flags().GetFloat64("tolerance")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if (fixturePath == "") == (dbPath == "") {
				return fmt.Errorf("use exactly one of --fixture or --db")
			}
			logger := commandLogger(cmd, "warn")

			var f *replay.Fixture
			var source string
			if fixturePath != "" {
				loaded, err := replay.LoadFixture(fixturePath)
				if err != nil {
					return err
				}
				f, source = loaded, fixturePath
			} else {
				if runID == "" {
					return fmt.Errorf("--db needs --run")
				}
				trialLog, err := logging.NewTrialLog(dbPath, logger)
				if err != nil {
					return err
				}
				defer trialLog.Close()
				if f, err = fixtureFromLog(trialLog, runID); err != nil {
					return err
				}
				source = "run " + runID
			}

			result, err := replay.Replay(f.Params, f.Responses, staircase.WithLogger(logger))
			if err != nil {
				return err
			}
			mismatches := f.Compare(result, tol)

			out := replayOutput{
				Source:     source,
				Rows:       comparisonRows(f.ExpectedIssued, result.Final.Issued, tol),
				Summary:    replay.Summarize(result),
				Mismatches: make([]string, 0, len(mismatches)),
			}
			for _, m := range mismatches {
				out.Mismatches = append(out.Mismatches, m.String())
			}

			if jsonOut {
				if err := printJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
			} else {
				printComparison(cmd, out)
			}
			if len(mismatches) > 0 {
				return errDiverged
			}
			return nil
		},
	}

	cmd.Flags().String("fixture", "", "Path to a fixture JSON file")
	cmd.Flags().String("db", "", "Path to a trial log")
	cmd.Flags().String("run", "", "Run ID to replay from the trial log")
	cmd.Flags().Float64("tolerance", 1e-9, "Largest intensity difference treated as a match")
	return cmd
}

func comparisonRows(expected, got []float64, tol float64) []replayRow {
	n := max(len(expected), len(got))
	rows := make([]replayRow, n)
	for i := range rows {
		rows[i].Trial = i + 1
		if i < len(expected) {
			rows[i].Expected = &expected[i]
		}
		if i < len(got) {
			rows[i].Replayed = &got[i]
		}
		rows[i].Match = i < len(expected) && i < len(got) && math.Abs(expected[i]-got[i]) <= tol
	}
	return rows
}

func printComparison(cmd *cobra.Command, out replayOutput) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Replaying %s\n\n", out.Source)
	fmt.Fprintf(w, "%-6s| %-14s| %-14s| %s\n", "Trial", "Expected", "Replayed", "Match")
	fmt.Fprintf(w, "%-6s+%-15s+%-15s+%s\n", "------", "---------------", "---------------", "------")

	matches := 0
	for _, r := range out.Rows {
		match := "DIFF"
		if r.Match {
			match = "OK"
			matches++
		}
		fmt.Fprintf(w, "%-6d| %-14s| %-14s| %s\n", r.Trial, formatValue(r.Expected), formatValue(r.Replayed), match)
	}

	s := out.Summary
	fmt.Fprintf(w, "\nSummary: %d responses, %d accepted, %d rejected, %d reversals, stopped=%v\n",
		s.Responses, s.Accepted, s.Rejected, s.Reversals, s.Stopped)
	fmt.Fprintf(w, "Intensities: %d total, %d match, %d diverge\n", len(out.Rows), matches, len(out.Rows)-matches)
	for _, m := range out.Mismatches {
		fmt.Fprintf(w, "  %s\n", m)
	}
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}
