package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics counts what the outbox relay did with each row.
type OutboxMetrics struct {
	dispatched *prometheus.CounterVec
	drain      prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "dispatched_total",
			Help:      "Outbox rows handled by the relay, by aggregate, event type and outcome.",
		}, []string{"aggregate", "event_type", "outcome"}),
		drain: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "drain_duration_seconds",
			Help:      "Time spent draining one outbox batch.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.dispatched, m.drain)
	return m
}

// IncDispatched records one row outcome: published, retry or parked.
func (m *OutboxMetrics) IncDispatched(aggregate, eventType, outcome string) {
	if m == nil || m.dispatched == nil {
		return
	}
	m.dispatched.WithLabelValues(normalizeLabel(aggregate), normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *OutboxMetrics) ObserveDrain(d time.Duration) {
	if m == nil || m.drain == nil {
		return
	}
	m.drain.Observe(d.Seconds())
}
