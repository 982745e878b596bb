package main

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/danielpatrickdp/sas-staircase/internal/config"
	"github.com/danielpatrickdp/sas-staircase/internal/logging"
	"github.com/danielpatrickdp/sas-staircase/internal/simulate"
	"github.com/danielpatrickdp/sas-staircase/internal/staircase"
	"github.com/spf13/cobra"
)

type simulateOutput struct {
	RunID         string    `json:"run_id,omitempty"`
	Trials        int       `json:"trials"`
	Stopped       bool      `json:"stopped"`
	ReversalCount int       `json:"reversal_count"`
	Final         float64   `json:"final"`
	Target        *float64  `json:"target,omitempty"`
	Issued        []float64 `json:"issued"`
	Responses     []int     `json:"responses"`
	Reversals     []bool    `json:"reversals"`
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a staircase against a synthetic observer",
		Long: `Run a staircase against a logistic observer

  p(x) = guess + (1 - guess - lapse) / (1 + exp(-slope (x - threshold)))

A positive response lowers the staircase's internal value by a negative
step, so intensities rise after positive responses. Use a negative slope
for an observer whose positive rate falls with intensity.`,
		Example: `  staircase simulate --config staircase.yaml --threshold 50 --slope -0.5 --seed 7
  staircase simulate --threshold 20 --slope -1 --db trials.db --label pilot --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dbPath, _ := cmd.Flags().GetString("db")
			label, _ := cmd.Flags().GetString("label")
			seed, _ := cmd.Flags().GetInt64("seed")
			maxTrials, _ := cmd.Flags().GetInt("max-trials")
			jsonOut, _ := cmd.Flags().GetBool("json")

			obs := simulate.Observer{}
			obs.Threshold, _ = cmd.Flags().GetFloat64("threshold")
			obs.Slope, _ = cmd.Flags().GetFloat64("slope")
			obs.Guess, _ = cmd.Flags().GetFloat64("guess")
			obs.Lapse, _ = cmd.Flags().GetFloat64("lapse")
			if err := obs.Validate(); err != nil {
				return fmt.Errorf("observer: %w", err)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Store.Path = dbPath
			}
			logger := commandLogger(cmd, cfg.Logging.Level)

			opts := []staircase.Option{staircase.WithLogger(logger)}
			var rec *logging.Recorder
			if cfg.Store.Path != "" {
				trialLog, err := logging.NewTrialLog(cfg.Store.Path, logger)
				if err != nil {
					return err
				}
				defer trialLog.Close()
				rec = trialLog.Attach(label)
				opts = append(opts, staircase.WithObserver(rec))
			}

			eng, err := cfg.NewEngine(opts...)
			if err != nil {
				return err
			}
			if rec != nil {
				if err := rec.Begin(eng.Config()); err != nil {
					return fmt.Errorf("begin run: %w", err)
				}
			}

			n := simulate.Run(eng, obs, rand.New(rand.NewSource(seed)), maxTrials)
			if rec != nil && rec.Err() != nil {
				return fmt.Errorf("trial log: %w", rec.Err())
			}
			logger.Info("simulation finished", "trials", n, "stopped", eng.Stopped(),
				"reversals", eng.ReversalCount())

			out := simulateOutput{
				Trials:        n,
				Stopped:       eng.Stopped(),
				ReversalCount: eng.ReversalCount(),
				Issued:        eng.IssuedValues(),
				Responses:     eng.Responses(),
				Reversals:     eng.Reversals(),
			}
			out.Final = out.Issued[len(out.Issued)-1]
			if target := obs.InverseP(cfg.Staircase.TargetProbability); !math.IsNaN(target) {
				out.Target = &target
			}
			if rec != nil {
				out.RunID = rec.RunID()
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), out)
			}
			printTrajectory(cmd, out)
			return nil
		},
	}

	cmd.Flags().String("config", "", "Path to a YAML config file")
	cmd.Flags().Float64("threshold", 50, "Observer threshold (midpoint of the psychometric function)")
	cmd.Flags().Float64("slope", -1, "Observer slope")
	cmd.Flags().Float64("guess", 0, "Observer guess rate")
	cmd.Flags().Float64("lapse", 0, "Observer lapse rate")
	cmd.Flags().Int64("seed", 1, "Random seed")
	cmd.Flags().Int("max-trials", 1000, "Give up after N responses (0 = until the staircase stops)")
	cmd.Flags().String("db", "", "Record the run to this trial log (overrides config and "+config.EnvDBPath+")")
	cmd.Flags().String("label", "", "Label stored with the recorded run")
	return cmd
}

func printTrajectory(cmd *cobra.Command, out simulateOutput) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-6s| %-12s| %-9s| %s\n", "Trial", "Intensity", "Response", "Reversal")
	fmt.Fprintf(w, "%-6s+%-13s+%-10s+%s\n", "------", "-------------", "----------", "--------")
	for i, r := range out.Responses {
		fmt.Fprintf(w, "%-6d| %-12.4f| %-9d| %s\n", i+1, out.Issued[i], r, yesNo(out.Reversals[i]))
	}

	fmt.Fprintf(w, "\nTrials: %d  Reversals: %d  Stopped: %s\n", out.Trials, out.ReversalCount, yesNo(out.Stopped))
	fmt.Fprintf(w, "Final intensity: %.4f\n", out.Final)
	if out.Target != nil {
		fmt.Fprintf(w, "Observer target: %.4f\n", *out.Target)
	}
	if out.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", out.RunID)
	}
}
