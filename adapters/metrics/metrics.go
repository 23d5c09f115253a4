// Package metrics provides Prometheus metrics collection for QuotaGate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for QuotaGate.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Auth metrics
	AuthFailures *prometheus.CounterVec

	// Stream metrics
	StreamsActive    prometheus.Gauge
	StreamBytesTotal prometheus.Counter
	FallbackSessions prometheus.Counter

	// Upstream metrics
	UpstreamErrors *prometheus.CounterVec

	// Aggregator metrics
	AggregatorDegraded prometheus.Counter
}

// New creates a new metrics collector with all metrics registered on the
// default registry.
func New() *Collector {
	return newWith(prometheus.DefaultRegisterer)
}

// NewForTesting creates a collector on a private registry so tests can run
// in parallel without duplicate registration panics.
func NewForTesting() *Collector {
	return newWith(prometheus.NewRegistry())
}

func newWith(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quotagate",
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "quotagate",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "quotagate",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quotagate",
				Name:      "auth_failures_total",
				Help:      "Total number of authentication failures",
			},
			[]string{"reason"},
		),

		StreamsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "quotagate",
				Name:      "streams_active",
				Help:      "Client stream subscriptions currently open",
			},
		),
		StreamBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "quotagate",
				Name:      "stream_bytes_total",
				Help:      "Bytes relayed from the billing authority to clients",
			},
		),
		FallbackSessions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "quotagate",
				Name:      "stream_fallback_sessions_total",
				Help:      "Stream sessions that entered synthetic heartbeat mode",
			},
		),

		UpstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quotagate",
				Name:      "upstream_errors_total",
				Help:      "Errors talking to upstream accounting services",
			},
			[]string{"service"},
		),

		AggregatorDegraded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "quotagate",
				Name:      "aggregator_degraded_total",
				Help:      "Quota reads served from defaults due to authority failure",
			},
		),
	}
}
