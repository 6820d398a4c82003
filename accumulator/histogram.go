package accumulator

import (
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Histogram estimates percentiles over an unbounded stream using reservoir
// sampling (Algorithm R): once the reservoir is full, each new sample
// replaces a uniformly random existing one with probability reservoirSize/n,
// giving every sample seen so far an equal chance of surviving.
type Histogram struct {
	mu          sync.Mutex
	reservoir   []float64
	size        int
	count       int64
	sum         float64
	last        float64
	ts          time.Time
	percentiles []float64
	rng         *rand.Rand
}

// NewHistogram creates a Histogram with the given reservoir size, reporting
// the given percentiles (e.g. 0.5, 0.9, 0.99) on Snapshot.
func NewHistogram(reservoirSize int, percentiles ...float64) *Histogram {
	if reservoirSize < 1 {
		reservoirSize = 1
	}
	if len(percentiles) == 0 {
		percentiles = []float64{0.5, 0.9, 0.99}
	}
	return &Histogram{
		size:        reservoirSize,
		percentiles: percentiles,
		rng:         rand.New(rand.NewSource(1)), //nolint:gosec
	}
}

// Record implements Accumulator.
func (h *Histogram) Record(value float64, timestamp time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	h.last = value
	h.ts = timestamp

	if len(h.reservoir) < h.size {
		h.reservoir = append(h.reservoir, value)
		return
	}
	j := h.rng.Int63n(h.count)
	if int(j) < h.size {
		h.reservoir[j] = value
	}
}

// Snapshot implements Accumulator.
func (h *Histogram) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	sorted := make([]float64, len(h.reservoir))
	copy(sorted, h.reservoir)
	sort.Float64s(sorted)

	pcts := make(map[float64]float64, len(h.percentiles))
	for _, p := range h.percentiles {
		pcts[p] = percentileOf(sorted, p)
	}

	mean := 0.0
	if h.count > 0 {
		mean = h.sum / float64(h.count)
	}
	min, max := 0.0, 0.0
	if len(sorted) > 0 {
		min, max = sorted[0], sorted[len(sorted)-1]
	}
	return Snapshot{
		Count: h.count, Sum: h.sum, Last: h.last, Mean: mean,
		Min: min, Max: max, Percentiles: pcts, Timestamp: h.ts,
	}
}

func percentileOf(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Reset implements Accumulator.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reservoir = nil
	h.count, h.sum, h.last = 0, 0, 0
	h.ts = time.Time{}
}

// Count implements Accumulator.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
