package pipeline

import (
	"time"

	"github.com/backmassage/textmill/internal/transform"
)

// WorkUnit is one document scheduled for transformation. Index is its
// position in the original input list and fixes its place in the final
// report.
type WorkUnit struct {
	Index int
	Path  string
}

// Outcome is the terminal result of one WorkUnit. Exactly one of Result and
// Err is set. Attempts counts the total tries made.
type Outcome struct {
	Unit        WorkUnit
	Result      *transform.Result
	StagedPath  string // Where the worker wrote the output text (success only).
	Err         *transform.TransformError
	Attempts    int
	ProcessedAt time.Time
}

// Succeeded reports whether the unit produced output.
func (o Outcome) Succeeded() bool { return o.Err == nil }

// Partition slices paths into order-preserving batches of at most batchSize
// units: ceil(len(paths)/batchSize) batches, every path in exactly one.
func Partition(paths []string, batchSize int) [][]WorkUnit {
	if len(paths) == 0 {
		return nil
	}
	batches := make([][]WorkUnit, 0, (len(paths)+batchSize-1)/batchSize)
	var current []WorkUnit
	for i, p := range paths {
		if len(current) == 0 {
			n := batchSize
			if rest := len(paths) - i; rest < n {
				n = rest
			}
			current = make([]WorkUnit, 0, n)
		}
		current = append(current, WorkUnit{Index: i, Path: p})
		if len(current) == batchSize {
			batches = append(batches, current)
			current = nil
		}
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
