package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPRequestsTotal counts handled requests by route, method and status
var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "botrelay_http_requests_total",
		Help: "Total number of HTTP requests handled",
	},
	[]string{"path", "method", "status"},
)

// HTTPRequestDuration records request latency by route and method
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "botrelay_http_request_duration_seconds",
		Help:    "Latency in seconds of HTTP requests",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"path", "method"},
)

// UpstreamCalls counts calls to external services (supabase, telegram, openai, gemini, postgres)
var UpstreamCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "botrelay_upstream_calls_total",
		Help: "Total number of calls made to external services",
	},
	[]string{"service", "outcome"},
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration, UpstreamCalls)
}

// ObserveUpstream records the outcome of one external call.
func ObserveUpstream(service string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	UpstreamCalls.WithLabelValues(service, outcome).Inc()
}
