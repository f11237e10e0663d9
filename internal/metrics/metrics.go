// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parley"

// Collector holds the service's Prometheus metrics.
type Collector struct {
	authAttempts  *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	oracleCalls   *prometheus.CounterVec
	oracleLatency *prometheus.HistogramVec
	tasks         *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Identity operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter, by route class.",
		}, []string{"class"}),
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_requests_total",
			Help:      "Calls to external verification oracles by outcome.",
		}, []string{"oracle", "outcome"}),
		oracleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_latency_seconds",
			Help:      "Latency of external verification oracles.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"oracle"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_tasks_total",
			Help:      "Completed background tasks by name and outcome.",
		}, []string{"task", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.rateLimited,
		c.oracleCalls,
		c.oracleLatency,
		c.tasks,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordAuth records the result of an identity operation.
func (c *Collector) RecordAuth(operation string, err error) {
	c.authAttempts.WithLabelValues(operation, outcome(err)).Inc()
}

// RecordRateLimited records a request rejected by the rate limiter.
func (c *Collector) RecordRateLimited(class string) {
	c.rateLimited.WithLabelValues(class).Inc()
}

// OracleObserver returns a callback recording calls to the named oracle.
func (c *Collector) OracleObserver(oracle string) func(time.Duration, error) {
	return func(d time.Duration, err error) {
		c.oracleCalls.WithLabelValues(oracle, outcome(err)).Inc()
		c.oracleLatency.WithLabelValues(oracle).Observe(d.Seconds())
	}
}

// RecordTask records the final result of a background task. Task names of
// the form "kind:detail" are grouped by kind.
func (c *Collector) RecordTask(task string, err error) {
	if i := strings.IndexByte(task, ':'); i >= 0 {
		task = task[:i]
	}
	c.tasks.WithLabelValues(task, outcome(err)).Inc()
}

// ObserveHTTP records a served HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
