// Package metrics exposes Prometheus collectors for the console client pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	gatewayRequestsTotal          *prometheus.CounterVec
	gatewayRequestDurationSeconds *prometheus.HistogramVec
	gatewayRetriesTotal           *prometheus.CounterVec
	cacheLookupsTotal             *prometheus.CounterVec
	cacheEntries                  prometheus.Gauge
	healthServiceUp               *prometheus.GaugeVec
	sessionTransitionsTotal       *prometheus.CounterVec
	rateLimitDelaysSeconds        *prometheus.HistogramVec
	consoleRequestsTotal          *prometheus.CounterVec
	consoleRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		gatewayRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchconsole_gateway_requests_total",
				Help: "Total gateway calls, labeled by service, method and outcome code.",
			},
			[]string{"service", "method", "code"},
		)

		gatewayRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "searchconsole_gateway_request_duration_seconds",
				Help:    "Histogram of gateway call latencies, labeled by service.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"service"},
		)

		gatewayRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchconsole_gateway_retries_total",
				Help: "Total retried gateway attempts, labeled by service.",
			},
			[]string{"service"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchconsole_cache_lookups_total",
				Help: "Cache lookups, labeled by result (hit, miss, expired).",
			},
			[]string{"result"},
		)

		cacheEntries = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "searchconsole_cache_entries",
				Help: "Number of entries currently held by the response cache.",
			},
		)

		healthServiceUp = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "searchconsole_health_service_up",
				Help: "1 when the last probe of a backend service reported UP.",
			},
			[]string{"service"},
		)

		sessionTransitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchconsole_session_transitions_total",
				Help: "Session state transitions, labeled by target state.",
			},
			[]string{"state"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "searchconsole_rate_limit_delays_seconds",
				Help:    "Histogram of outbound rate limit wait durations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"service"},
		)

		consoleRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchconsole_http_requests_total",
				Help: "Console server requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		consoleRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "searchconsole_http_request_duration_seconds",
				Help:    "Histogram of console server latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ServiceOf extracts the backend service label from a gateway-relative path:
// the first path segment, or "gateway" for paths served by the gateway itself.
func ServiceOf(path string) string {
	trimmed := strings.TrimLeft(path, "/")
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	segment, _, _ := strings.Cut(trimmed, "/")
	switch {
	case segment == "":
		return "gateway"
	case strings.HasSuffix(segment, "-service"), strings.HasSuffix(segment, "-server"):
		return segment
	case segment == "eureka":
		return "registry"
	case segment == "actuator":
		return "gateway"
	default:
		return "query-service"
	}
}

// ObserveGatewayRequest records one finished gateway call. code is 0 when no
// response was received.
func ObserveGatewayRequest(service, method string, code int, duration time.Duration) {
	Init()
	gatewayRequestsTotal.WithLabelValues(service, method, strconv.Itoa(code)).Inc()
	gatewayRequestDurationSeconds.WithLabelValues(service).Observe(duration.Seconds())
}

// ObserveRetry increments the retry counter for a service.
func ObserveRetry(service string) {
	Init()
	gatewayRetriesTotal.WithLabelValues(service).Inc()
}

// ObserveCacheLookup records a hit, miss or expired lookup.
func ObserveCacheLookup(result string) {
	Init()
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// SetCacheEntries publishes the current cache size.
func SetCacheEntries(n int) {
	Init()
	cacheEntries.Set(float64(n))
}

// SetServiceUp publishes the last probe outcome for a service.
func SetServiceUp(service string, up bool) {
	Init()
	v := 0.0
	if up {
		v = 1
	}
	healthServiceUp.WithLabelValues(service).Set(v)
}

// ObserveSessionTransition counts a session state change.
func ObserveSessionTransition(state string) {
	Init()
	sessionTransitionsTotal.WithLabelValues(state).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(service string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(service).Observe(duration.Seconds())
}

// ObserveHTTPRequest records a console server request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	consoleRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	consoleRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
