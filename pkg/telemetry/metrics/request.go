package metrics

import (
	"strconv"
	"time"

	"drivelogic-hq/reasoner/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks HTTP requests served by "drivelogic serve".
//
// Metrics:
//   - drivelogic_reasoner_http_requests_total: Requests by route and status code
//   - drivelogic_reasoner_http_request_duration_seconds: Request latency by route
//   - drivelogic_reasoner_http_requests_in_flight: Requests being served
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// NewRequestMetrics creates and registers request metrics with the provided
// registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "code"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests being served",
			},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.inFlight,
	)

	return rm
}

// RecordRequest records a completed request.
func (rm *RequestMetrics) RecordRequest(route string, code int, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	rm.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// InFlight adjusts the in-flight gauge by delta.
func (rm *RequestMetrics) InFlight(delta int) {
	rm.inFlight.Add(float64(delta))
}
