package middleware

import (
	"time"

	"github.com/zoobzio/metricz"

	pk "github.com/pipelinekit/pipelinekit"
)

// Recognized metricz keys for MetricsMiddleware's per-command registry.
const (
	MetricsExecutionsTotal = metricz.Key("middleware.executions.total")
	MetricsFailuresTotal   = metricz.Key("middleware.failures.total")
	MetricsDurationTotalMs = metricz.Key("middleware.duration.total.ms")
)

// MetricsMiddleware bridges dispatch-level execution counts into a metricz
// registry, distinct from the externally-facing accumulator library: this
// tracks internal connector health, not business-level aggregation.
type MetricsMiddleware[C pk.Command, R any] struct {
	registry *metricz.Registry
}

// NewMetricsMiddleware creates a MetricsMiddleware backed by registry. Pass
// metricz.New() for a private registry, or share one across middleware to
// aggregate multiple command types into the same counters.
func NewMetricsMiddleware[C pk.Command, R any](registry *metricz.Registry) *MetricsMiddleware[C, R] {
	registry.Counter(MetricsExecutionsTotal)
	registry.Counter(MetricsFailuresTotal)
	registry.Counter(MetricsDurationTotalMs)
	return &MetricsMiddleware[C, R]{registry: registry}
}

// Priority implements pk.Middleware.
func (m *MetricsMiddleware[C, R]) Priority() int { return pk.PriorityObservability }

// Name implements pk.Name.
func (m *MetricsMiddleware[C, R]) Name() string { return "metrics" }

// Execute implements pk.Middleware.
func (m *MetricsMiddleware[C, R]) Execute(ctx *pk.Context, cmd C, next pk.Next[C, R]) (R, error) {
	started := time.Now()
	m.registry.Counter(MetricsExecutionsTotal).Inc()
	result, err := next(ctx, cmd)
	m.registry.Counter(MetricsDurationTotalMs).Add(float64(time.Since(started).Milliseconds()))
	if err != nil {
		m.registry.Counter(MetricsFailuresTotal).Inc()
	}
	return result, err
}
