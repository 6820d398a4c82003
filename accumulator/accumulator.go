// Package accumulator is a self-contained metrics aggregation library,
// independent of the dispatch core: it shares nothing with pipelinekit
// except the observer/record side channel a caller may wire it through.
package accumulator

import "time"

// Accumulator ingests timestamped samples and reports an aggregate
// Snapshot. Implementations must be safe for concurrent Record/Snapshot
// calls.
type Accumulator interface {
	Record(value float64, timestamp time.Time)
	Snapshot() Snapshot
	Reset()
	Count() int64
}

// Snapshot is a point-in-time aggregate. Not every field applies to every
// Accumulator kind; a field left at its zero value means that kind does not
// populate it (e.g. Percentiles is nil for Basic and Counter).
type Snapshot struct {
	Count       int64
	Sum         float64
	Min         float64
	Max         float64
	Last        float64
	Mean        float64
	Rate        float64 // Counter only: delta per second since the prior sample
	Variance    float64 // EWMV only
	Percentiles map[float64]float64 // Histogram only, keyed by quantile (e.g. 0.99)
	Timestamp   time.Time
}
