// Package metrics holds the Prometheus collectors exported by the GraphQL
// server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the server's collectors.
type Metrics struct {
	requestCount      *prometheus.CounterVec
	operationCount    *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. Registering twice
// on the same registry returns the registration error.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		operationCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphql_operations_total",
				Help: "Total number of GraphQL operations by type and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graphql_operation_duration_seconds",
				Help:    "Time spent validating and executing GraphQL operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}

	for _, c := range []prometheus.Collector{m.requestCount, m.operationCount, m.operationDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveRequest counts one HTTP request. A nil receiver is a no-op.
func (m *Metrics) ObserveRequest(method, path string, status int) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// ObserveOperation records one GraphQL operation. operation is "query",
// "mutation", "subscription", or empty when the request was rejected before
// an operation was chosen.
func (m *Metrics) ObserveOperation(operation string, failed bool, d time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "invalid"
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.operationCount.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Handler serves the collectors of g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
