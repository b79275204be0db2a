// Package metrics exposes Prometheus instrumentation for deployment
// operations. All collectors live on a Metrics instance with its own
// registry so tests and embedders never share global state.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quayside-cd/quayside/domain"
)

var durationBuckets = []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

type Metrics struct {
	registry *prometheus.Registry

	deploymentsTotal   *prometheus.CounterVec
	deploymentDuration *prometheus.HistogramVec
	targetsAvailable   *prometheus.GaugeVec
	fallbacksTotal     prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: registry}

	m.deploymentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quayside",
		Subsystem: "deploy",
		Name:      "deployments_total",
		Help:      "Count of deployment attempts by provider and outcome",
	}, []string{"provider", "status"})

	m.deploymentDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quayside",
		Subsystem: "deploy",
		Name:      "deployment_duration_seconds",
		Help:      "Time from deployment start to terminal state or handoff",
		Buckets:   durationBuckets,
	}, []string{"provider"})

	m.targetsAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "quayside",
		Subsystem: "deploy",
		Name:      "target_available",
		Help:      "Whether a deployment target passed its last availability probe",
	}, []string{"provider"})

	m.fallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quayside",
		Subsystem: "deploy",
		Name:      "target_fallbacks_total",
		Help:      "Deployments that fell through to a lower-preference target",
	})

	registry.MustRegister(m.deploymentsTotal, m.deploymentDuration, m.targetsAvailable, m.fallbacksTotal)
	return m
}

func (m *Metrics) RecordDeployment(provider string, status domain.DeploymentState, duration time.Duration) {
	m.deploymentsTotal.WithLabelValues(provider, status.String()).Inc()
	m.deploymentDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) SetTargetAvailable(provider string, available bool) {
	value := 0.0
	if available {
		value = 1.0
	}
	m.targetsAvailable.WithLabelValues(provider).Set(value)
}

func (m *Metrics) RecordFallback() {
	m.fallbacksTotal.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
