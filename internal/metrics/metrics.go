package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instagrid_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "instagrid_http_request_duration_seconds",
			Help:    "HTTP request latency by method and path.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PublishAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instagrid_publish_attempts_total",
			Help: "Publish orchestrator runs by outcome.",
		},
		[]string{"outcome"},
	)

	ContainerPollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "instagrid_container_polls_total",
			Help: "Media container status polls issued.",
		},
	)
)
