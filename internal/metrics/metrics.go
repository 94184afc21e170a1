package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the login pipeline counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	LoginsTotal         *prometheus.CounterVec
	LoginDuration       prometheus.Histogram
	ReconcileTotal      *prometheus.CounterVec
	SessionResolveTotal *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steamauth_logins_total",
				Help: "Login callbacks by result",
			},
			[]string{"provider", "result"},
		),
		LoginDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "steamauth_login_duration_seconds",
				Help:    "Time from callback to established session",
				Buckets: prometheus.DefBuckets,
			},
		),
		ReconcileTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steamauth_reconcile_total",
				Help: "Identity reconciliations by outcome",
			},
			[]string{"outcome"},
		),
		SessionResolveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steamauth_session_resolve_total",
				Help: "Session resolutions by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.LoginsTotal,
		m.LoginDuration,
		m.ReconcileTotal,
		m.SessionResolveTotal,
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Login(provider, result string, started time.Time) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(provider, result).Inc()
	if result == "success" {
		m.LoginDuration.Observe(time.Since(started).Seconds())
	}
}

func (m *Metrics) Reconcile(outcome string) {
	if m == nil {
		return
	}
	m.ReconcileTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionResolve(result string) {
	if m == nil {
		return
	}
	m.SessionResolveTotal.WithLabelValues(result).Inc()
}
