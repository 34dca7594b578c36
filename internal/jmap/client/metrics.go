package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	methodCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jmap_client_method_calls_total",
		Help: "Total number of JMAP method calls sent.",
	}, []string{"method"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jmap_client_http_errors_total",
		Help: "Total number of failed HTTP exchanges by kind.",
	}, []string{"kind"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jmap_client_request_duration_seconds",
		Help:    "Histogram of HTTP request latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	tokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jmap_client_token_refreshes_total",
		Help: "Total number of bearer token refreshes by result.",
	}, []string{"result"})

	stateChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jmap_client_state_changes_total",
		Help: "Total number of state changes delivered by source.",
	}, []string{"source"})
)
