package metrics

import "github.com/prometheus/client_golang/prometheus"

// SyncMetrics tracks web-order reconciliation and notifier fan-out.
type SyncMetrics struct {
	fetchAttempts  *prometheus.CounterVec
	imported       prometheus.Counter
	importFailures prometheus.Counter
	events         *prometheus.CounterVec
	handlerPanics  *prometheus.CounterVec
	transitions    *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on reg. A nil registerer yields a
// no-op recorder.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	m := &SyncMetrics{
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "web_orders",
			Name:      "fetch_attempts_total",
			Help:      "Web order feed fetch attempts by outcome.",
		}, []string{"outcome"}),
		imported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "web_orders",
			Name:      "imported_total",
			Help:      "Web orders imported into the order store.",
		}),
		importFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "web_orders",
			Name:      "import_failures_total",
			Help:      "Web orders that failed to import.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "events_total",
			Help:      "Notifier events published by type.",
		}, []string{"event"}),
		handlerPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "handler_panics_total",
			Help:      "Subscriber panics recovered during delivery.",
		}, []string{"event"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "status_transitions_total",
			Help:      "Accepted order status transitions.",
		}, []string{"from", "to"}),
	}
	reg.MustRegister(m.fetchAttempts, m.imported, m.importFailures, m.events, m.handlerPanics, m.transitions)
	return m
}

func (m *SyncMetrics) IncFetchAttempt(outcome string) {
	if m == nil || m.fetchAttempts == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *SyncMetrics) AddImported(n int) {
	if m == nil || m.imported == nil || n <= 0 {
		return
	}
	m.imported.Add(float64(n))
}

func (m *SyncMetrics) AddImportFailures(n int) {
	if m == nil || m.importFailures == nil || n <= 0 {
		return
	}
	m.importFailures.Add(float64(n))
}

func (m *SyncMetrics) IncEvent(event string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(event)).Inc()
}

func (m *SyncMetrics) IncHandlerPanic(event string) {
	if m == nil || m.handlerPanics == nil {
		return
	}
	m.handlerPanics.WithLabelValues(normalizeLabel(event)).Inc()
}

func (m *SyncMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}
