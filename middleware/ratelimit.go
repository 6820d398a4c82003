// Package middleware provides the stock cross-cutting middleware the core
// dispatch substrate leaves as integration contracts: authentication,
// validation, rate limiting, caching, compression, encryption, logging, and
// metrics.
package middleware

import (
	"math"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"

	pk "github.com/pipelinekit/pipelinekit"
)

// Recognized rate-limiter signals and fields.
const (
	SignalRateLimitAllowed   capitan.Signal = "ratelimit.allowed"
	SignalRateLimitThrottled capitan.Signal = "ratelimit.throttled"
	SignalRateLimitRejected  capitan.Signal = "ratelimit.rejected"
)

var (
	fieldKey    = capitan.NewStringKey("key")
	fieldTokens = capitan.NewFloat64Key("tokens")
	fieldRate   = capitan.NewFloat64Key("rate")
	fieldBurst  = capitan.NewIntKey("burst")
)

// KeyFunc extracts the rate-limit bucket key for a command (e.g. a user id
// from its metadata). Commands that key to the same string share a bucket.
type KeyFunc[C pk.Command] func(ctx *pk.Context, cmd C) string

// RateLimitMode selects what happens when a bucket has no tokens available.
type RateLimitMode int

const (
	// RateLimitWait blocks the caller until a token becomes available or its
	// context is canceled.
	RateLimitWait RateLimitMode = iota
	// RateLimitReject fails immediately with rateLimitExceeded.
	RateLimitReject
)

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// RateLimitMiddleware enforces a per-key token bucket: ratePerSecond tokens
// are added steadily, capped at burst, and each admitted command consumes
// one. Buckets are created lazily per key and never evicted, so KeyFunc
// should key on a bounded identity space (user id, tenant id), not on
// unbounded per-request values.
type RateLimitMiddleware[C pk.Command, R any] struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	keyOf    KeyFunc[C]
	rate     float64
	burst    int
	mode     RateLimitMode
	clock    clockz.Clock
	priority int
}

// NewRateLimitMiddleware creates a RateLimitMiddleware admitting
// ratePerSecond tokens per key, up to burst tokens banked.
func NewRateLimitMiddleware[C pk.Command, R any](keyOf KeyFunc[C], ratePerSecond float64, burst int) *RateLimitMiddleware[C, R] {
	return &RateLimitMiddleware[C, R]{
		buckets:  make(map[string]*bucket),
		keyOf:    keyOf,
		rate:     ratePerSecond,
		burst:    burst,
		mode:     RateLimitReject,
		clock:    clockz.RealClock,
		priority: pk.PriorityTrafficControl,
	}
}

// WithMode overrides the default reject-on-empty behavior.
func (m *RateLimitMiddleware[C, R]) WithMode(mode RateLimitMode) *RateLimitMiddleware[C, R] {
	m.mode = mode
	return m
}

// WithClock overrides the clock driving refill and wait timing.
func (m *RateLimitMiddleware[C, R]) WithClock(clock clockz.Clock) *RateLimitMiddleware[C, R] {
	m.clock = clock
	return m
}

// Priority implements pk.Middleware.
func (m *RateLimitMiddleware[C, R]) Priority() int { return m.priority }

// Name implements pk.Name.
func (m *RateLimitMiddleware[C, R]) Name() string { return "ratelimit" }

// IsNextGuardSuppressing implements pk.NextGuardSuppressing: a rejected
// command deliberately never calls next.
func (m *RateLimitMiddleware[C, R]) IsNextGuardSuppressing() bool { return true }

func (m *RateLimitMiddleware[C, R]) bucketFor(key string) *bucket {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(m.burst), lastRefill: m.clock.Now()}
		m.buckets[key] = b
	}
	return b
}

// refill must be called with b.mu held.
func (m *RateLimitMiddleware[C, R]) refill(b *bucket) {
	now := m.clock.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now
	if math.IsInf(m.rate, 1) {
		b.tokens = float64(m.burst)
		return
	}
	b.tokens = math.Min(float64(m.burst), b.tokens+elapsed*m.rate)
}

// Execute implements pk.Middleware.
func (m *RateLimitMiddleware[C, R]) Execute(ctx *pk.Context, cmd C, next pk.Next[C, R]) (R, error) {
	var zero R
	key := m.keyOf(ctx, cmd)
	b := m.bucketFor(key)

	for {
		b.mu.Lock()
		m.refill(b)
		if b.tokens >= 1.0 {
			b.tokens--
			tokens := b.tokens
			b.mu.Unlock()
			capitan.Info(ctx, SignalRateLimitAllowed,
				fieldKey.Field(key), fieldTokens.Field(tokens),
				fieldRate.Field(m.rate), fieldBurst.Field(m.burst),
			)
			return next(ctx, cmd)
		}

		if m.mode == RateLimitReject {
			tokens := b.tokens
			b.mu.Unlock()
			capitan.Warn(ctx, SignalRateLimitRejected,
				fieldKey.Field(key), fieldTokens.Field(tokens), fieldRate.Field(m.rate),
			)
			return zero, pk.NewError(pk.KindRateLimitExceeded, ErrRateLimitExceeded, "ratelimit")
		}

		wait := m.waitTime(b)
		b.mu.Unlock()
		capitan.Warn(ctx, SignalRateLimitThrottled,
			fieldKey.Field(key), fieldRate.Field(m.rate),
		)
		select {
		case <-m.clock.After(wait):
		case <-ctx.Done():
			return zero, pk.CanceledError(ctx.Err(), "ratelimit")
		}
	}
}

// waitTime must be called with b.mu held, after refill.
func (m *RateLimitMiddleware[C, R]) waitTime(b *bucket) time.Duration {
	if m.rate <= 0 {
		return time.Duration(math.MaxInt64)
	}
	needed := 1.0 - b.tokens
	if needed <= 0 {
		return 0
	}
	return time.Duration(needed / m.rate * float64(time.Second))
}
