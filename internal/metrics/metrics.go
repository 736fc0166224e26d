// Package metrics holds Prometheus instruments that are used across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, by method, route pattern, and status.",
		}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency, by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_operations_total",
			Help: "Document store calls, by backend, operation, and outcome.",
		}, []string{"backend", "op", "outcome"})

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docstore_operation_duration_seconds",
			Help:    "Document store call latency, by backend and operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "op"})

	ContentMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_mutations_total",
			Help: "Successful content mutations, by entity and action.",
		}, []string{"entity", "action"})

	PageViewsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "page_views_total",
			Help: "Cumulative number of counted page views.",
		})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		StoreOperationsTotal,
		StoreOperationDuration,
		ContentMutationsTotal,
		PageViewsTotal,
	)
}

// Mutation records one successful content change.
func Mutation(entity, action string) {
	ContentMutationsTotal.WithLabelValues(entity, action).Inc()
}
