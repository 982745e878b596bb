package replay

import (
	"github.com/danielpatrickdp/sas-staircase/internal/staircase"
)

// #region types
// Params are the constructor arguments of a staircase run. Options uses the
// name-keyed form accepted by staircase.WithValues.
type Params struct {
	TargetProbability float64        `json:"target_probability"`
	ScaleConstant     float64        `json:"scale_constant"`
	StartValue        float64        `json:"start_value"`
	Options           map[string]any `json:"options,omitempty"`
}

// Step captures what happened to one response during a replay.
type Step struct {
	Index         int     // position in the response sequence
	Response      int
	Accepted      bool    // false for invalid responses and responses after stop
	Trial         int     // trial the response was recorded for (0 if rejected)
	Issued        float64 // intensity presented on that trial
	Reversal      bool
	ReversalCount int
	Stopped       bool // engine state after the response
}

// Result is the outcome of a replay run.
type Result struct {
	Steps []Step
	Final staircase.Snapshot
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Responses int  `json:"responses"`
	Accepted  int  `json:"accepted"`
	Rejected  int  `json:"rejected"`
	Trials    int  `json:"trials"`
	Reversals int  `json:"reversals"`
	Stopped   bool `json:"stopped"`
}

// #endregion types

// #region replay
// Replay builds a fresh engine from params and feeds it responses in order.
// Extra options (a logger, an observer) are applied after params.Options.
// Operates entirely in-memory.
func Replay(params Params, responses []int, opts ...staircase.Option) (Result, error) {
	all := append([]staircase.Option{staircase.WithValues(params.Options)}, opts...)
	eng, err := staircase.New(params.TargetProbability, params.ScaleConstant, params.StartValue, all...)
	if err != nil {
		return Result{}, err
	}

	steps := make([]Step, 0, len(responses))
	for i, r := range responses {
		step := Step{Index: i, Response: r}
		x, running := eng.Current()
		trial := eng.TrialCount()
		reversals := eng.ReversalCount()

		eng.Update(r)

		if running && (eng.Stopped() || eng.TrialCount() > trial) {
			step.Accepted = true
			step.Trial = trial
			step.Issued = x
			step.Reversal = eng.ReversalCount() > reversals
		}
		step.ReversalCount = eng.ReversalCount()
		step.Stopped = eng.Stopped()
		steps = append(steps, step)
	}

	return Result{Steps: steps, Final: eng.Snapshot()}, nil
}

// Summarize computes aggregate stats from a replay result.
func Summarize(r Result) Summary {
	s := Summary{
		Responses: len(r.Steps),
		Trials:    len(r.Final.Responses),
		Reversals: r.Final.ReversalCount,
		Stopped:   r.Final.Stopped,
	}
	for _, st := range r.Steps {
		if st.Accepted {
			s.Accepted++
		} else {
			s.Rejected++
		}
	}
	return s
}

// #endregion replay
