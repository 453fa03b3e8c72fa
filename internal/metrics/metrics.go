package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bridge's Prometheus instruments.
type Metrics struct {
	// Traffic: upstream requests, labelled by operation and outcome.
	UpstreamRequests *prometheus.CounterVec

	// Latency of upstream calls, including retries.
	UpstreamDuration *prometheus.HistogramVec

	// Saturation: circuit breaker state (0=closed, 1=half-open, 2=open).
	BreakerState prometheus.Gauge

	// Current throttle level (0-5) decided by the resource monitor.
	ThrottleLevel prometheus.Gauge

	// Models currently known to the discovery registry.
	ModelsDiscovered prometheus.Gauge

	// Recovery attempts, labelled by error pattern and result.
	RecoveryAttempts *prometheus.CounterVec
}

// New registers the instruments on reg. A nil reg wires them to a
// throwaway registry so tests can pass nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		UpstreamRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_upstream_requests_total",
			Help: "Total upstream requests by operation and outcome.",
		}, []string{"operation", "outcome"}),

		UpstreamDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridge_upstream_duration_seconds",
			Help:    "Latency of upstream calls including retries.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),

		BreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "bridge_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),

		ThrottleLevel: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "bridge_throttle_level",
			Help: "Current resource throttle level (0-5).",
		}),

		ModelsDiscovered: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "bridge_models_discovered",
			Help: "Number of models in the discovery registry.",
		}),

		RecoveryAttempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_recovery_attempts_total",
			Help: "Recovery attempts by error pattern and result.",
		}, []string{"pattern", "result"}),
	}
}
