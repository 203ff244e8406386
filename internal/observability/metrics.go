// Package observability provides Prometheus metrics and OpenTelemetry tracing
// for the gateway.
//
// Metrics are exposed on /metrics. All operations are safe for concurrent use
// and every method tolerates a nil *Metrics, so components can be built
// without instrumentation in tests.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "mainfeed"

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	// RequestsTotal counts inbound requests.
	// Labels: route, method, status
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures inbound request latency.
	// Labels: route, method
	RequestDurationSeconds *prometheus.HistogramVec

	// UpstreamRequestsTotal counts calls to collaborators.
	// Labels: collaborator, outcome (ok, http_error, transport_error)
	UpstreamRequestsTotal *prometheus.CounterVec

	// UpstreamDurationSeconds measures collaborator latency.
	// Labels: collaborator
	UpstreamDurationSeconds *prometheus.HistogramVec

	// AuthRejectionsTotal counts requests rejected by the auth stage.
	// Labels: reason (missing, expired, invalid, scope)
	AuthRejectionsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors with reg.
// Registering twice against the same registry panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total inbound requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),

		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Inbound request latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),

		UpstreamRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Total collaborator calls by collaborator and outcome",
			},
			[]string{"collaborator", "outcome"},
		),

		UpstreamDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "upstream",
				Name:      "request_duration_seconds",
				Help:      "Collaborator call latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"collaborator"},
		),

		AuthRejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "auth",
				Name:      "rejections_total",
				Help:      "Requests rejected by the auth stage by reason",
			},
			[]string{"reason"},
		),
	}
}

func (m *Metrics) ObserveRequest(route, method, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, method, status).Inc()
	m.RequestDurationSeconds.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveUpstream(collaborator, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(collaborator, outcome).Inc()
	m.UpstreamDurationSeconds.WithLabelValues(collaborator).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordAuthRejection(reason string) {
	if m == nil {
		return
	}
	m.AuthRejectionsTotal.WithLabelValues(reason).Inc()
}
