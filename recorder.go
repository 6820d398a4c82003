package pipelinekit

import (
	"sync"
	"time"
)

// ExecutionRecord is one entry in a Recorder's ring buffer, capturing the
// outcome of a single pipeline execution.
type ExecutionRecord struct {
	ID            string
	CorrelationID string
	PipelineName  string
	Success       bool
	Err           error
	Started       time.Time
	Finished      time.Time
}

// Duration returns how long the recorded execution took.
func (r ExecutionRecord) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// RecorderStats summarizes a Recorder's lifetime and current-window counts.
type RecorderStats struct {
	CurrentCount    int
	LifetimeTotal   int64
	LifetimeSuccess int64
	LifetimeFailure int64
}

// Recorder is a bounded, oldest-first ring buffer of ExecutionRecords,
// suitable for attaching to a Bus via RecordingMiddleware to capture a
// rolling diagnostic window without unbounded memory growth.
type Recorder struct {
	mu              sync.RWMutex
	records         []ExecutionRecord
	maxRecords      int
	head            int
	count           int
	lifetimeTotal   int64
	lifetimeSuccess int64
	lifetimeFailure int64
}

// NewRecorder creates a Recorder retaining at most maxRecords entries.
func NewRecorder(maxRecords int) *Recorder {
	if maxRecords < 1 {
		maxRecords = 1
	}
	return &Recorder{
		records:    make([]ExecutionRecord, maxRecords),
		maxRecords: maxRecords,
	}
}

// Record appends rec, evicting the oldest entry if the buffer is full.
// Lifetime counters always increase, even across Clear.
func (r *Recorder) Record(rec ExecutionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := (r.head + r.count) % r.maxRecords
	if r.count == r.maxRecords {
		idx = r.head
		r.head = (r.head + 1) % r.maxRecords
	} else {
		r.count++
	}
	r.records[idx] = rec

	r.lifetimeTotal++
	if rec.Success {
		r.lifetimeSuccess++
	} else {
		r.lifetimeFailure++
	}
}

// ordered returns the buffer's current contents oldest-first.
func (r *Recorder) ordered() []ExecutionRecord {
	out := make([]ExecutionRecord, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.records[(r.head+i)%r.maxRecords]
	}
	return out
}

// Recent returns up to limit of the most recently recorded executions,
// newest first. limit <= 0 returns every retained record.
func (r *Recorder) Recent(limit int) []ExecutionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.ordered()
	reverse(all)
	return truncate(all, limit)
}

// Failures returns up to limit of the most recent failed executions, newest
// first.
func (r *Recorder) Failures(limit int) []ExecutionRecord {
	return r.filter(limit, func(rec ExecutionRecord) bool { return !rec.Success })
}

// Successes returns up to limit of the most recent successful executions,
// newest first.
func (r *Recorder) Successes(limit int) []ExecutionRecord {
	return r.filter(limit, func(rec ExecutionRecord) bool { return rec.Success })
}

func (r *Recorder) filter(limit int, keep func(ExecutionRecord) bool) []ExecutionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.ordered()
	reverse(all)
	var out []ExecutionRecord
	for _, rec := range all {
		if keep(rec) {
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// ByCorrelationID returns every retained record sharing correlationID, in
// recording order.
func (r *Recorder) ByCorrelationID(correlationID string) []ExecutionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ExecutionRecord
	for _, rec := range r.ordered() {
		if rec.CorrelationID == correlationID {
			out = append(out, rec)
		}
	}
	return out
}

// ByTimeRange returns every retained record whose Started falls within
// [from, to], in recording order.
func (r *Recorder) ByTimeRange(from, to time.Time) []ExecutionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ExecutionRecord
	for _, rec := range r.ordered() {
		if !rec.Started.Before(from) && !rec.Started.After(to) {
			out = append(out, rec)
		}
	}
	return out
}

// ByID returns the retained record with the given execution ID, if any.
func (r *Recorder) ByID(id string) (ExecutionRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.ordered() {
		if rec.ID == id {
			return rec, true
		}
	}
	return ExecutionRecord{}, false
}

// Clear drops every currently retained record but preserves lifetime
// counters.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.count = 0
}

// Reset drops retained records and lifetime counters alike.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.count = 0
	r.lifetimeTotal = 0
	r.lifetimeSuccess = 0
	r.lifetimeFailure = 0
}

// Stats returns the current record count alongside lifetime totals.
func (r *Recorder) Stats() RecorderStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RecorderStats{
		CurrentCount:    r.count,
		LifetimeTotal:   r.lifetimeTotal,
		LifetimeSuccess: r.lifetimeSuccess,
		LifetimeFailure: r.lifetimeFailure,
	}
}

// RecordingMiddleware returns a GlobalMiddleware that records one
// ExecutionRecord per dispatched command into r, using the execution's
// Metadata for ID/CorrelationID and wall-clock time for Started/Finished.
// Attach it to a Bus with Use at a low priority so it wraps (and therefore
// times) every other global middleware.
func RecordingMiddleware(r *Recorder) GlobalMiddleware {
	return GlobalMiddlewareFunc{
		Label: "recorder",
		Prio:  PriorityPreProcessing,
		Fn: func(ctx *Context, cmd any, next GlobalNext) (any, error) {
			started := time.Now()
			result, err := next(ctx, cmd)
			meta := ctx.Metadata()
			r.Record(ExecutionRecord{
				ID:            meta.ID,
				CorrelationID: meta.CorrelationID,
				Success:       err == nil,
				Err:           err,
				Started:       started,
				Finished:      time.Now(),
			})
			return result, err
		},
	}
}

func reverse(recs []ExecutionRecord) {
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
}

func truncate(recs []ExecutionRecord, limit int) []ExecutionRecord {
	if limit <= 0 || limit >= len(recs) {
		return recs
	}
	return recs[:limit]
}
