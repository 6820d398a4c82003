package accumulator

import (
	"sync"
	"time"
)

// Counter tracks a monotonic total and derives a rate (delta per second)
// between consecutive Record calls. Record values are deltas to add, not
// absolute totals.
type Counter struct {
	mu       sync.Mutex
	total    float64
	count    int64
	rate     float64
	lastTS   time.Time
	hasPrior bool
}

// NewCounter creates an empty Counter.
func NewCounter() *Counter { return &Counter{} }

// Record implements Accumulator: value is added to the running total, and
// the rate is recomputed as (value / elapsed-seconds) against the previous
// Record call.
func (c *Counter) Record(value float64, timestamp time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total += value
	c.count++
	if c.hasPrior {
		elapsed := timestamp.Sub(c.lastTS).Seconds()
		if elapsed > 0 {
			c.rate = value / elapsed
		}
	}
	c.lastTS = timestamp
	c.hasPrior = true
}

// Snapshot implements Accumulator.
func (c *Counter) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Count: c.count, Sum: c.total, Last: c.total, Rate: c.rate, Timestamp: c.lastTS}
}

// Reset implements Accumulator.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total, c.count, c.rate = 0, 0, 0
	c.lastTS = time.Time{}
	c.hasPrior = false
}

// Count implements Accumulator.
func (c *Counter) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
