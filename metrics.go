package harvest

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request pipeline.
type MetricsCollector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	attemptsTotal *prometheus.CounterVec

	throttlesTotal      *prometheus.CounterVec
	throttleWaitSeconds prometheus.Histogram

	fallbacksTotal *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_requests_total",
				Help: "Total number of pipeline requests by final status code",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_request_duration_seconds",
				Help:    "Duration of pipeline requests in seconds, including throttle waits",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		attemptsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_attempts_total",
				Help: "Total number of HTTP attempts by response class",
			},
			[]string{"method", "endpoint", "class"},
		),
		throttlesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_throttles_total",
				Help: "Total number of 503 responses that caused a wait",
			},
			[]string{"endpoint"},
		),
		throttleWaitSeconds: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvest_throttle_wait_seconds",
				Help:    "Time spent waiting after 503 responses",
				Buckets: []float64{5, 6, 10, 15, 30, 60, 120, 300},
			},
		),
		fallbacksTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_transport_fallbacks_total",
				Help: "Total number of protocol fallbacks caused by redirects",
			},
			[]string{"from", "to"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_errors_total",
				Help: "Total number of terminal pipeline errors",
			},
			[]string{"type", "method", "endpoint"},
		),
	}

	if reg, ok := registry.(*prometheus.Registry); ok {
		mc.registry = reg
	}

	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordAttempt counts one HTTP exchange and how it was classified.
func (mc *MetricsCollector) RecordAttempt(method, endpoint string, class ResponseClass) {
	if mc == nil {
		return
	}

	mc.attemptsTotal.WithLabelValues(method, endpoint, class.String()).Inc()
}

// RecordThrottle counts a 503 and the wait it caused.
func (mc *MetricsCollector) RecordThrottle(endpoint string, wait time.Duration) {
	if mc == nil {
		return
	}

	mc.throttlesTotal.WithLabelValues(endpoint).Inc()
	mc.throttleWaitSeconds.Observe(wait.Seconds())
}

// RecordFallback counts a switch between protocols.
func (mc *MetricsCollector) RecordFallback(from, to Protocol) {
	if mc == nil {
		return
	}

	mc.fallbacksTotal.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// GetRegistry exposes the underlying prometheus registry, if the collector
// was built on one.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	return mc.registry
}
