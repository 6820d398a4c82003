package accumulator

import (
	"math"
	"sync"
	"time"
)

// EWMA is an exponentially weighted moving average over wall-clock time:
// the decay factor between samples is derived from the elapsed duration and
// halfLife, rather than a fixed per-sample alpha, so irregular sample
// spacing still decays correctly.
type EWMA struct {
	mu       sync.Mutex
	halfLife time.Duration
	mean     float64
	variance float64
	count    int64
	lastTS   time.Time
	hasPrior bool
}

// NewEWMA creates an EWMA/EWMV accumulator with the given half-life: the
// weight of a sample halves every halfLife of elapsed time.
func NewEWMA(halfLife time.Duration) *EWMA {
	return &EWMA{halfLife: halfLife}
}

// Record implements Accumulator.
func (e *EWMA) Record(value float64, timestamp time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count++
	if !e.hasPrior {
		e.mean = value
		e.variance = 0
		e.lastTS = timestamp
		e.hasPrior = true
		return
	}

	elapsed := timestamp.Sub(e.lastTS).Seconds()
	alpha := 1.0
	if e.halfLife > 0 && elapsed > 0 {
		alpha = 1 - math.Exp(-math.Ln2*elapsed/e.halfLife.Seconds())
	}
	delta := value - e.mean
	e.mean += alpha * delta
	e.variance = (1 - alpha) * (e.variance + alpha*delta*delta)
	e.lastTS = timestamp
}

// Snapshot implements Accumulator.
func (e *EWMA) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Count: e.count, Mean: e.mean, Last: e.mean,
		Variance: e.variance, Timestamp: e.lastTS,
	}
}

// Reset implements Accumulator.
func (e *EWMA) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mean, e.variance = 0, 0
	e.count = 0
	e.lastTS = time.Time{}
	e.hasPrior = false
}

// Count implements Accumulator.
func (e *EWMA) Count() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}
