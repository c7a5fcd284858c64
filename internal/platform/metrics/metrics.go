package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application's Prometheus collectors.
type Metrics struct {
	// Backend calls, labeled by logical endpoint name and outcome code.
	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec

	// Session lifecycle as seen by this server. ActiveSessions is approximate:
	// sessions that simply expire in the browser never decrement it.
	Logins         prometheus.Counter
	Logouts        prometheus.Counter
	ActiveSessions prometheus.Gauge

	GuardDecisions *prometheus.CounterVec

	EditorInstances prometheus.Gauge
	EditorSaves     *prometheus.CounterVec
	EditorSwept     prometheus.Counter

	ContentMutations *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BackendRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_backend_requests_total",
			Help: "Backend REST calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		BackendLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inkwell_backend_latency_seconds",
			Help:    "Latency of backend REST calls in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		Logins: f.NewCounter(prometheus.CounterOpts{
			Name: "inkwell_logins_total",
			Help: "Sessions started",
		}),
		Logouts: f.NewCounter(prometheus.CounterOpts{
			Name: "inkwell_logouts_total",
			Help: "Sessions ended",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "inkwell_active_sessions",
			Help: "Logins minus logouts since start",
		}),
		GuardDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_guard_decisions_total",
			Help: "Route guard outcomes by requirement and decision",
		}, []string{"requirement", "decision"}),
		EditorInstances: f.NewGauge(prometheus.GaugeOpts{
			Name: "inkwell_editor_instances",
			Help: "Editor instances currently held",
		}),
		EditorSaves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_editor_saves_total",
			Help: "Editor save attempts by outcome",
		}, []string{"outcome"}),
		EditorSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "inkwell_editor_swept_total",
			Help: "Idle editor instances released by the janitor",
		}),
		ContentMutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_content_mutations_total",
			Help: "Content create, update and delete calls by outcome",
		}, []string{"op", "outcome"}),
	}
}

func (m *Metrics) ObserveBackendCall(endpoint, outcome string, durationSeconds float64) {
	m.BackendRequests.WithLabelValues(endpoint, outcome).Inc()
	m.BackendLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}

func (m *Metrics) IncrementLogins() {
	m.Logins.Inc()
	m.ActiveSessions.Inc()
}

func (m *Metrics) IncrementLogouts() {
	m.Logouts.Inc()
	m.ActiveSessions.Dec()
}

func (m *Metrics) IncrementGuardDecision(requirement, decision string) {
	m.GuardDecisions.WithLabelValues(requirement, decision).Inc()
}

func (m *Metrics) IncrementContentMutation(op, outcome string) {
	m.ContentMutations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) SetEditorInstances(n int) {
	m.EditorInstances.Set(float64(n))
}

func (m *Metrics) IncrementEditorSave(outcome string) {
	m.EditorSaves.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddEditorSwept(n int) {
	m.EditorSwept.Add(float64(n))
}
