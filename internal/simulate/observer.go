// Package simulate drives a staircase with a synthetic observer, for tuning
// parameters offline before running a procedure with real subjects.
package simulate

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/danielpatrickdp/sas-staircase/internal/staircase"
)

// Observer is a logistic psychometric function
//
//	p(x) = guess + (1 - guess - lapse) / (1 + exp(-slope(x - threshold)))
//
// giving the probability of a positive response at intensity x.
type Observer struct {
	Threshold float64
	Slope     float64
	Guess     float64
	Lapse     float64
}

// Validate checks that the rates leave a non-empty range for p(x).
func (o Observer) Validate() error {
	if o.Guess < 0 || o.Lapse < 0 || o.Guess+o.Lapse >= 1 {
		return fmt.Errorf("guess %v and lapse %v must be non-negative and sum below 1", o.Guess, o.Lapse)
	}
	if math.IsNaN(o.Slope) || math.IsNaN(o.Threshold) {
		return fmt.Errorf("threshold and slope must be numbers")
	}
	return nil
}

// P returns the probability of a positive response at x.
func (o Observer) P(x float64) float64 {
	return o.Guess + (1-o.Guess-o.Lapse)/(1+math.Exp(-o.Slope*(x-o.Threshold)))
}

// Respond draws a response at x.
func (o Observer) Respond(x float64, rng *rand.Rand) int {
	if rng.Float64() < o.P(x) {
		return 1
	}
	return 0
}

// Run presents the engine's current intensity to obs and feeds back the
// response until the engine stops or maxTrials responses were given
// (maxTrials <= 0 means no limit). It returns the number of responses given.
func Run(eng *staircase.Engine, obs Observer, rng *rand.Rand, maxTrials int) int {
	n := 0
	for maxTrials <= 0 || n < maxTrials {
		x, ok := eng.Current()
		if !ok {
			break
		}
		eng.Update(obs.Respond(x, rng))
		n++
	}
	return n
}

// InverseP returns the intensity at which p(x) equals phi, or NaN when phi
// lies outside (guess, 1-lapse).
func (o Observer) InverseP(phi float64) float64 {
	lo, hi := o.Guess, 1-o.Lapse
	if phi <= lo || phi >= hi || o.Slope == 0 {
		return math.NaN()
	}
	return o.Threshold - math.Log((hi-lo)/(phi-lo)-1)/o.Slope
}
