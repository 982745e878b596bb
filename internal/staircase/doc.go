// Package staircase implements a Stochastic Approximation Staircase (SAS) for
// adaptive threshold estimation.
//
// An [Engine] issues a stimulus intensity, receives the binary response the
// caller observed at that intensity, and computes the next intensity from a
// pluggable update rule. The default rule is the Robbins-Monro recurrence
//
//	x(n+1) = x(n) - c(response - phi)/(1 + m)
//
// where phi is the target probability, c the scale constant and m the number
// of reversals seen so far.
//
// # Basic Usage
//
//	eng, err := staircase.New(0.85, 30, 100,
//	    staircase.WithStopMode(staircase.StopReversals),
//	    staircase.WithStopThreshold(12),
//	)
//	if err != nil {
//	    return err
//	}
//	for !eng.Stopped() {
//	    x, _ := eng.Current()
//	    eng.Update(present(x))
//	}
//
// # Error Handling
//
// Only construction can fail, with an error wrapping [ErrInvalidParameter].
// Every later misuse (an invalid response, an update after the procedure
// stopped, an oversized backstep, a malformed update rule) is logged at WARN
// and leaves the engine untouched.
//
// # Thread Safety
//
// An Engine is not safe for concurrent use. Hosts running several procedures
// in parallel use one Engine per procedure.
package staircase
