// Package metrics exposes prometheus collectors for the relay pipeline.
//
// Collectors are owned by a Metrics value rather than registered on the
// package-level default registry, so tests can construct isolated instances.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's prometheus collectors.
type Metrics struct {
	CompletionAttempts *prometheus.CounterVec
	CompletionFailures *prometheus.CounterVec
	CompletionCostUSD  prometheus.Counter
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	SearchesExecuted   prometheus.Counter
	InvokeSeconds      prometheus.Histogram
	QueueWaitSeconds   prometheus.Histogram
}

// New creates the collectors and registers them on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CompletionAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatrelay_completion_attempts_total",
			Help: "Completion API attempts by model tier.",
		}, []string{"tier"}),
		CompletionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatrelay_completion_failures_total",
			Help: "Terminal completion failures by error kind.",
		}, []string{"kind"}),
		CompletionCostUSD: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_completion_cost_usd_total",
			Help: "Cumulative estimated completion cost in USD.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_search_cache_hits_total",
			Help: "Web search cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_search_cache_misses_total",
			Help: "Web search cache misses.",
		}),
		SearchesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_searches_executed_total",
			Help: "Web searches that reached an external provider.",
		}),
		InvokeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatrelay_completion_invoke_seconds",
			Help:    "Completion API invocation latency.",
			Buckets: prometheus.DefBuckets,
		}),
		QueueWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatrelay_completion_queue_wait_seconds",
			Help:    "Time spent waiting on the completion semaphore.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.CompletionAttempts,
			m.CompletionFailures,
			m.CompletionCostUSD,
			m.CacheHits,
			m.CacheMisses,
			m.SearchesExecuted,
			m.InvokeSeconds,
			m.QueueWaitSeconds,
		)
	}
	return m
}

// NewNop creates unregistered collectors, suitable for tests.
func NewNop() *Metrics {
	return New(nil)
}
