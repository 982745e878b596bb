package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/danielpatrickdp/sas-staircase/internal/logging"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List logged runs or show the events of one run",
		Example: `  staircase inspect --db trials.db --last 10
  staircase inspect --db trials.db --run 3f2a9c1e-... --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			runID, _ := cmd.Flags().GetString("run")
			last, _ := cmd.Flags().GetInt("last")
			jsonOut, _ := cmd.Flags().GetBool("json")
			if dbPath == "" {
				return fmt.Errorf("--db is required")
			}

			trialLog, err := logging.NewTrialLog(dbPath, commandLogger(cmd, "warn"))
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer trialLog.Close()

			if runID != "" {
				return runDetailMode(cmd.OutOrStdout(), trialLog, runID, jsonOut)
			}
			return runListMode(cmd.OutOrStdout(), trialLog, last, jsonOut)
		},
	}

	cmd.Flags().String("db", "", "Path to a trial log")
	cmd.Flags().String("run", "", "Show the events of a single run")
	cmd.Flags().Int("last", 20, "Show the N most recent runs")
	return cmd
}

// #region list-mode

type listRow struct {
	RunID     string  `json:"run_id"`
	Label     string  `json:"label,omitempty"`
	Phi       float64 `json:"target_probability"`
	Scale     float64 `json:"scale_constant"`
	Trials    int     `json:"trials"`
	Reversals int     `json:"reversals"`
	Final     float64 `json:"final"`
	Stopped   bool    `json:"stopped"`
	CreatedAt string  `json:"created_at"`
}

func runListMode(w io.Writer, trialLog *logging.TrialLog, last int, jsonOut bool) error {
	runs, err := trialLog.ListRuns(last)
	if err != nil {
		return err
	}

	// Store returns DESC, reverse for chronological
	rows := make([]listRow, len(runs))
	for i, run := range runs {
		events, err := trialLog.Events(run.RunID)
		if err != nil {
			return err
		}
		issued := logging.FinalIssued(run.SeedIssued, events)
		row := listRow{
			RunID:     run.RunID,
			Label:     run.Label,
			Phi:       run.TargetProbability,
			Scale:     run.ScaleConstant,
			Trials:    len(logging.FinalResponses(events)),
			Reversals: finalReversalCount(events),
			Final:     issued[len(issued)-1],
			Stopped:   finalStopped(events),
			CreatedAt: run.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		rows[len(runs)-1-i] = row
	}

	if jsonOut {
		return printJSON(w, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "no runs found")
		return nil
	}

	fmt.Fprintf(w, "%-10s  %-12s  %5s  %6s  %6s  %9s  %10s  %-7s  %s\n",
		"Run", "Label", "Phi", "C", "Trials", "Reversals", "Final", "Stopped", "Time")
	fmt.Fprintf(w, "%-10s+-%-12s+-%5s+-%6s+-%6s+-%9s+-%10s+-%-7s+-%s\n",
		"----------", "------------", "-----", "------", "------", "---------", "----------", "-------", "--------------------")
	for _, r := range rows {
		fmt.Fprintf(w, "%-10s  %-12s  %5.2f  %6.2f  %6d  %9d  %10.4f  %-7s  %s\n",
			shortID(r.RunID), r.Label, r.Phi, r.Scale, r.Trials, r.Reversals, r.Final, yesNo(r.Stopped), r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Run    logging.RunRecord    `json:"run"`
	Events []logging.TrialEntry `json:"events"`
}

func runDetailMode(w io.Writer, trialLog *logging.TrialLog, runID string, jsonOut bool) error {
	run, err := trialLog.GetRun(runID)
	if err != nil {
		return err
	}
	events, err := trialLog.Events(runID)
	if err != nil {
		return err
	}
	if events == nil {
		events = []logging.TrialEntry{}
	}

	if jsonOut {
		return printJSON(w, detailOutput{Run: run, Events: events})
	}

	fmt.Fprintf(w, "Run:        %s\n", run.RunID)
	if run.Label != "" {
		fmt.Fprintf(w, "Label:      %s\n", run.Label)
	}
	fmt.Fprintf(w, "Created:    %s\n", run.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(w, "Phi:        %v\n", run.TargetProbability)
	fmt.Fprintf(w, "Scale:      %v\n", run.ScaleConstant)
	fmt.Fprintf(w, "Start:      %v (seed %v)\n", run.StartValue, run.SeedIssued)

	fmt.Fprintf(w, "\nOptions:\n")
	keys := make([]string, 0, len(run.Options))
	for k := range run.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-18s %v\n", k, run.Options[k])
	}

	fmt.Fprintf(w, "\n%-4s  %-9s  %5s  %8s  %-8s  %9s  %10s  %10s  %s\n",
		"Seq", "Kind", "Trial", "Response", "Reversal", "Reversals", "Step", "Next", "Stopped")
	for _, ev := range events {
		switch ev.Kind {
		case logging.KindTrial:
			fmt.Fprintf(w, "%-4d  %-9s  %5d  %8d  %-8s  %9d  %10.4f  %10.4f  %s\n",
				ev.Seq, ev.Kind, ev.Trial, ev.Response, yesNo(ev.Reversal), ev.ReversalCount,
				ev.Step, ev.Issued, yesNo(ev.Stopped))
		case logging.KindBackstep:
			fmt.Fprintf(w, "%-4d  %-9s  %5d  removed %d\n", ev.Seq, ev.Kind, ev.Trial, ev.Removed)
		default:
			fmt.Fprintf(w, "%-4d  %-9s  %5d\n", ev.Seq, ev.Kind, ev.Trial)
		}
	}
	return nil
}

// #endregion detail-mode

// #region replay-state

// finalStopped reports whether the run ended stopped: backsteps and resets
// restart the engine, so only a trailing stopping trial counts.
func finalStopped(events []logging.TrialEntry) bool {
	if len(events) == 0 {
		return false
	}
	last := events[len(events)-1]
	return last.Kind == logging.KindTrial && last.Stopped
}

// finalReversalCount returns the reversal count left after the last event.
func finalReversalCount(events []logging.TrialEntry) int {
	counts := []int{}
	for _, ev := range events {
		switch ev.Kind {
		case logging.KindTrial:
			if ev.Trial-1 <= len(counts) {
				counts = append(counts[:ev.Trial-1], ev.ReversalCount)
			}
		case logging.KindBackstep:
			if ev.Trial-1 <= len(counts) {
				counts = counts[:ev.Trial-1]
			}
		case logging.KindReset:
			counts = counts[:0]
		}
	}
	if len(counts) == 0 {
		return 0
	}
	return counts[len(counts)-1]
}

// #endregion replay-state
