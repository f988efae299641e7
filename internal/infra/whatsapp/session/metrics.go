package session

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zkeeper/internal/domain/session"
)

const (
	namespace = "zkeeper"
	subsystem = "sessions"
)

// Metrics agrupa os coletores Prometheus do supervisor
type Metrics struct {
	reg *prometheus.Registry

	Tenants       *prometheus.GaugeVec
	PendingSaves  prometheus.Gauge
	Saves         *prometheus.CounterVec
	Reconnects    *prometheus.CounterVec
	Teardowns     *prometheus.CounterVec
	LoopDuration  *prometheus.HistogramVec
	LoopPanics    *prometheus.CounterVec
	EventsApplied *prometheus.CounterVec
}

// NewMetrics cria os coletores em um registry próprio
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Tenants: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tenants",
			Help:      "Registered tenants by health",
		}, []string{"health"}),
		PendingSaves: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pending_saves",
			Help:      "Credential snapshots waiting to be retried against the store",
		}),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "saves_total",
			Help:      "Credential saves by result",
		}, []string{"result"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconnects_total",
			Help:      "Reconnect attempts by result",
		}, []string{"result"}),
		Teardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "teardowns_total",
			Help:      "Tenant teardowns by reason",
		}, []string{"reason"}),
		LoopDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "loop_duration_seconds",
			Help:      "Duration of one control loop tick",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 30.0},
		}, []string{"loop"}),
		LoopPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "loop_panics_total",
			Help:      "Recovered panics by loop",
		}, []string{"loop"}),
		EventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_total",
			Help:      "Lifecycle events applied by kind",
		}, []string{"kind"}),
	}

	m.reg.MustRegister(
		m.Tenants,
		m.PendingSaves,
		m.Saves,
		m.Reconnects,
		m.Teardowns,
		m.LoopDuration,
		m.LoopPanics,
		m.EventsApplied,
	)
	return m
}

// Registry expõe o registry para testes e composição
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serve as métricas no formato de exposição do Prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// HTTPPanics conta panics recuperados na camada HTTP, na mesma série dos loops
func (m *Metrics) HTTPPanics() prometheus.Counter {
	return m.LoopPanics.WithLabelValues("http")
}

// observeTenants recalcula o gauge de tenants por saúde
func (m *Metrics) observeTenants(infos []*session.TenantInfo, pending int) {
	counts := map[session.Health]int{
		session.HealthActive:       0,
		session.HealthDegraded:     0,
		session.HealthDisconnected: 0,
		session.HealthDead:         0,
	}
	for _, info := range infos {
		counts[info.Health]++
	}
	for health, n := range counts {
		m.Tenants.WithLabelValues(string(health)).Set(float64(n))
	}
	m.PendingSaves.Set(float64(pending))
}
