package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names.
const (
	MetricHTTPRequestsTotal          = "hera_http_requests_total"
	MetricHTTPRequestDurationSeconds = "hera_http_request_duration_seconds"
	MetricGuardrailRejectionsTotal   = "hera_guardrail_rejections_total"
	MetricDispatchTotal              = "hera_dispatch_total"
)

// Metrics holds the Prometheus collectors exposed on /metrics.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	guardrailRejections *prometheus.CounterVec
	dispatchTotal       *prometheus.CounterVec
}

// NewMetrics creates the collectors on a dedicated registry. Process and Go
// runtime collectors are registered alongside them.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDurationSeconds,
				Help:    "HTTP request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		guardrailRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricGuardrailRejectionsTotal,
				Help: "Total number of requests rejected by a guardrail, by rejection code.",
			},
			[]string{"code"},
		),
		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricDispatchTotal,
				Help: "Total number of generic CRUD dispatches, by family, operation and outcome.",
			},
			[]string{"family", "operation", "outcome"},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.guardrailRejections,
		m.dispatchTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveHTTPRequest records one finished HTTP request
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDispatch counts one dispatch outcome
func (m *Metrics) RecordDispatch(family, operation, outcome string) {
	m.dispatchTotal.WithLabelValues(family, operation, outcome).Inc()
}

// RecordGuardrailRejection counts one guardrail rejection
func (m *Metrics) RecordGuardrailRejection(code string) {
	m.guardrailRejections.WithLabelValues(code).Inc()
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
