package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotagate_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotagate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RateLimitChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotagate_ratelimit_checks_total",
			Help: "Total number of admission checks by outcome and deny reason.",
		},
		[]string{"outcome", "reason"},
	)

	UsageRecordingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotagate_usage_recordings_total",
			Help: "Total number of recorded requests by quota mode (single or dual).",
		},
		[]string{"mode"},
	)

	CounterCoercionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotagate_counter_coercions_total",
			Help: "Total number of corrupted stored counters coerced to zero.",
		},
		[]string{"window"},
	)

	EdgeThrottledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quotagate_edge_throttled_total",
			Help: "Total number of requests rejected by the per-IP edge limiter.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RateLimitChecksTotal,
		UsageRecordingsTotal,
		CounterCoercionsTotal,
		EdgeThrottledTotal,
	)
}
