package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type curveMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	events     *prometheus.CounterVec
}

var (
	curveMetricsOnce sync.Once
	curveRegistry    *curveMetrics
)

// Curve returns the lazily-initialised metrics registry tracking bonding-curve
// operations and the events they emit.
func Curve() *curveMetrics {
	curveMetricsOnce.Do(func() {
		curveRegistry = &curveMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bancor",
				Subsystem: "curve",
				Name:      "operations_total",
				Help:      "Total curve operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "bancor",
				Subsystem: "curve",
				Name:      "operation_seconds",
				Help:      "Latency of curve operations in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bancor",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of structured events segmented by event type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(curveRegistry.operations, curveRegistry.latency, curveRegistry.events)
	})
	return curveRegistry
}

// RecordOperation increments the operation counter and observes its latency.
func (m *curveMetrics) RecordOperation(operation string, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	op := strings.TrimSpace(strings.ToLower(operation))
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(took.Seconds())
}

// RecordEvent increments the emitted-event counter for the supplied type.
func (m *curveMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		return
	}
	m.events.WithLabelValues(normalized).Inc()
}
