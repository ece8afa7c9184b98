// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mappool_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mappool_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	PoolTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mappool_pool_transitions_total",
			Help: "Map pool status transitions by resulting status",
		},
		[]string{"status"},
	)

	OutboxPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mappool_outbox_published_total",
			Help: "Outbox events published to Kafka",
		},
	)

	OutboxPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mappool_outbox_publish_errors_total",
			Help: "Outbox events that failed to publish",
		},
	)
)

// RecordHTTPRequest records one finished request. route is the matched
// pattern, not the raw path.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
