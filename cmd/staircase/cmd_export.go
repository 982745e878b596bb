package main

import (
	"fmt"

	"github.com/danielpatrickdp/sas-staircase/internal/logging"
	"github.com/danielpatrickdp/sas-staircase/internal/replay"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Write a replay fixture from a logged run",
		Example: `  staircase export --db trials.db --run 3f2a9c1e-... --out internal/replay/testdata/pilot.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			runID, _ := cmd.Flags().GetString("run")
			outPath, _ := cmd.Flags().GetString("out")
			description, _ := cmd.Flags().GetString("description")
			jsonOut, _ := cmd.Flags().GetBool("json")
			if dbPath == "" || runID == "" || outPath == "" {
				return fmt.Errorf("--db, --run and --out are required")
			}

			trialLog, err := logging.NewTrialLog(dbPath, commandLogger(cmd, "warn"))
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer trialLog.Close()

			f, err := fixtureFromLog(trialLog, runID)
			if err != nil {
				return err
			}
			if description != "" {
				f.Description = description
			}
			if err := replay.WriteFixture(f, outPath); err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"path":      outPath,
					"run_id":    runID,
					"responses": len(f.Responses),
					"stopped":   f.ExpectStopped,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d responses, %d intensities, stopped=%v\n",
				outPath, len(f.Responses), len(f.ExpectedIssued), f.ExpectStopped)
			return nil
		},
	}

	cmd.Flags().String("db", "", "Path to a trial log")
	cmd.Flags().String("run", "", "Run ID to export")
	cmd.Flags().String("out", "", "Output fixture JSON path")
	cmd.Flags().String("description", "", "Fixture description (default derived from the run)")
	return cmd
}

// fixtureFromLog rebuilds the final history of a logged run as a fixture.
// Backstepped and reset trials are dropped, so replaying the fixture's
// responses on a fresh engine reproduces the run's final state.
func fixtureFromLog(trialLog *logging.TrialLog, runID string) (*replay.Fixture, error) {
	run, err := trialLog.GetRun(runID)
	if err != nil {
		return nil, err
	}
	events, err := trialLog.Events(runID)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("run %s exported from trial log", shortID(run.RunID))
	if run.Label != "" {
		description = fmt.Sprintf("%s (%s)", description, run.Label)
	}
	return &replay.Fixture{
		Description: description,
		RunID:       run.RunID,
		Params: replay.Params{
			TargetProbability: run.TargetProbability,
			ScaleConstant:     run.ScaleConstant,
			StartValue:        run.StartValue,
			Options:           run.Options,
		},
		Responses:      logging.FinalResponses(events),
		ExpectedIssued: logging.FinalIssued(run.SeedIssued, events),
		ExpectStopped:  finalStopped(events),
	}, nil
}
