package pipeline

import "sort"

// Collect drains outcomes until ch closes, invoking observe (if non-nil)
// for each as it arrives, and returns the batch sorted back into original
// input order. Workers only append to ch; this is the single consumer, so
// no further synchronization is needed.
func Collect(ch <-chan Outcome, observe func(Outcome)) []Outcome {
	var outs []Outcome
	for o := range ch {
		if observe != nil {
			observe(o)
		}
		outs = append(outs, o)
	}
	sort.Slice(outs, func(i, j int) bool {
		return outs[i].Unit.Index < outs[j].Unit.Index
	})
	return outs
}
