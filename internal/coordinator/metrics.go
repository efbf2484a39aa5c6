package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks coordinator-level counters. A nil registerer produces
// unregistered metrics, which tests use freely.
type Metrics struct {
	Stores          prometheus.Counter
	DedupHits       prometheus.Counter
	Searches        prometheus.Counter
	CacheHits       prometheus.Counter
	BackendFailures *prometheus.CounterVec
}

// NewMetrics builds the counter set, registering with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Stores: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mnemo",
			Name:      "stores_total",
			Help:      "Chunks durably written to the primary store.",
		}),
		DedupHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mnemo",
			Name:      "dedup_hits_total",
			Help:      "Store calls resolved to an existing chunk by content hash.",
		}),
		Searches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mnemo",
			Name:      "searches_total",
			Help:      "Search calls accepted by the coordinator.",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mnemo",
			Name:      "search_cache_hits_total",
			Help:      "Searches served entirely from the result cache.",
		}),
		BackendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mnemo",
			Name:      "backend_failures_total",
			Help:      "Backend operation failures, including timeouts.",
		}, []string{"backend", "op"}),
	}
}
