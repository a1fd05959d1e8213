package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics registry for the batch extraction service. Namespaced the same
// way the pack's monitoring collector does (namespace + subsystem), but
// registered directly against the default registry rather than behind a
// MetricsCollector interface — this service has one registry, not the
// pluggable multi-backend surface that collector was built for.
var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labreport",
		Subsystem: "httpapi",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route, method, and status code.",
	}, []string{"route", "method", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "labreport",
		Subsystem: "httpapi",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	extractionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labreport",
		Subsystem: "pipeline",
		Name:      "extractions_total",
		Help:      "Extraction requests by outcome (ok, fatal).",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, extractionsTotal)
}

// ObserveExtraction records the outcome of one POST /v1/extract request.
// Called directly by handlers since the outcome is only known after the
// pipeline runs, unlike per-route HTTP status which the middleware below
// sees itself.
func ObserveExtraction(outcome string) {
	extractionsTotal.WithLabelValues(outcome).Inc()
}

// Metrics records per-request counters and latency for every route. The
// teacher's own equivalent is a hand-rolled atomic-counter pair described as
// "a lightweight alternative to Prometheus"; this service uses the genuine
// Prometheus client library instead (this file is its only user).
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		requestsTotal.WithLabelValues(route, c.Request.Method, status).Inc()
		requestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registered collectors for scraping at GET /metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
