package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics using Prometheus with a private registry
type PrometheusMetrics struct {
	tokenDecodes  *prometheus.CounterVec
	logins        *prometheus.CounterVec
	registrations *prometheus.CounterVec

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	activeRequests prometheus.Gauge

	rateLimitRejections *prometheus.CounterVec

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	registry *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	// Register standard Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tokenDecodes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "token_decodes_total",
			Help:      "Bearer token decodes by outcome",
		},
		[]string{"outcome"},
	)

	logins := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	registrations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "registrations_total",
			Help:      "Registration attempts by outcome",
		},
		[]string{"outcome"},
	)

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	activeRequests := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "active_requests",
			Help:      "Number of in-flight HTTP requests",
		},
	)

	rateLimitRejections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "rejections_total",
			Help:      "Requests rejected by the rate limiter by key class",
		},
		[]string{"class"},
	)

	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of catalog cache hits",
		},
	)

	cacheMisses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of catalog cache misses",
		},
	)

	registry.MustRegister(
		tokenDecodes,
		logins,
		registrations,
		httpRequests,
		httpDuration,
		activeRequests,
		rateLimitRejections,
		cacheHits,
		cacheMisses,
	)

	return &PrometheusMetrics{
		tokenDecodes:        tokenDecodes,
		logins:              logins,
		registrations:       registrations,
		httpRequests:        httpRequests,
		httpDuration:        httpDuration,
		activeRequests:      activeRequests,
		rateLimitRejections: rateLimitRejections,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		registry:            registry,
	}
}

func (p *PrometheusMetrics) RecordTokenDecode(outcome string) {
	p.tokenDecodes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusMetrics) RecordLogin(outcome string) {
	p.logins.WithLabelValues(outcome).Inc()
}

func (p *PrometheusMetrics) RecordRegistration(outcome string) {
	p.registrations.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records a finished request; route is the mux path template
func (p *PrometheusMetrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) IncActiveRequests() {
	p.activeRequests.Inc()
}

func (p *PrometheusMetrics) DecActiveRequests() {
	p.activeRequests.Dec()
}

func (p *PrometheusMetrics) RecordRateLimitRejection(keyClass string) {
	p.rateLimitRejections.WithLabelValues(keyClass).Inc()
}

func (p *PrometheusMetrics) RecordCacheHit() {
	p.cacheHits.Inc()
}

func (p *PrometheusMetrics) RecordCacheMiss() {
	p.cacheMisses.Inc()
}

// HTTPHandler returns the Prometheus HTTP handler for /metrics endpoint
func (p *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
