// Package metrics exposes prometheus instrumentation for the dispatcher,
// rate limiter, and transformer adapters. Additive only: nothing in the
// protocol path depends on metrics being scraped.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks end-to-end handling time for each LSP method.
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lspai",
		Name:      "request_duration_seconds",
		Help:      "Time spent handling a dispatched LSP request, by method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	// RateLimitWait tracks how long a caller waited on a model's token
	// bucket before acquiring.
	RateLimitWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lspai",
		Name:      "rate_limit_wait_seconds",
		Help:      "Time spent waiting to acquire a rate-limit token, by model.",
		Buckets:   []float64{0, .01, .05, .1, .5, 1, 2, 5, 10},
	}, []string{"model"})

	// AdapterAttempts counts each attempt (including retries) a
	// transformer adapter makes against its backend.
	AdapterAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lspai",
		Name:      "adapter_attempts_total",
		Help:      "Transformer adapter call attempts, by model and outcome.",
	}, []string{"model", "outcome"})
)

// Registry is the collector registry the metrics above are registered
// against; callers that enable the optional metrics_addr listener serve
// this registry's handler.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(RequestDuration, RateLimitWait, AdapterAttempts)
}
