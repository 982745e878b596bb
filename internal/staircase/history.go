package staircase

import "slices"

// history is the trial-indexed record of one run. Trial i lives at index
// i-1 of every slice. Truncation only reslices, so the backing arrays act as
// an append-only log with a logical length; a later append overwrites the
// discarded tail.
type history struct {
	issued    []float64
	internal  []float64
	responses []int
	reversals []bool
}

// seed drops every trial and starts over with trial 1's values.
func (h *history) seed(issued, internal float64) {
	h.issued = append(h.issued[:0], issued)
	h.internal = append(h.internal[:0], internal)
	h.responses = h.responses[:0]
	h.reversals = h.reversals[:0]
}

// record appends the response for the current trial and the values for the
// next one.
func (h *history) record(response int, reversal bool, nextIssued, nextInternal float64) {
	h.responses = append(h.responses, response)
	h.reversals = append(h.reversals, reversal)
	h.issued = append(h.issued, nextIssued)
	h.internal = append(h.internal, nextInternal)
}

// truncate keeps the first values intensities and the first trials
// responses.
func (h *history) truncate(values, trials int) {
	h.issued = h.issued[:values]
	h.internal = h.internal[:values]
	h.responses = h.responses[:trials]
	h.reversals = h.reversals[:trials]
}

// reversalsFrom counts reversals among trials with index >= i (0-based).
func (h *history) reversalsFrom(i int) int {
	n := 0
	for _, r := range h.reversals[i:] {
		if r {
			n++
		}
	}
	return n
}

func (h *history) snapshot() (issued, internal []float64, responses []int, reversals []bool) {
	return slices.Clone(h.issued), slices.Clone(h.internal),
		slices.Clone(h.responses), slices.Clone(h.reversals)
}
