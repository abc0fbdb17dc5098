// Package metrics exposes prometheus counters for the repository layer:
// cache hit/miss ratios per entity type and store call volume per operation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the counter families. A nil *Recorder is a valid no-op, so
// repositories can run unmetered.
type Recorder struct {
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	storeCalls  *prometheus.CounterVec
}

// New registers the counter families on the given registerer.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "repository_cache_hits_total",
			Help: "Cache hits per entity type.",
		}, []string{"entity"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "repository_cache_misses_total",
			Help: "Cache misses per entity type.",
		}, []string{"entity"}),
		storeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "repository_store_calls_total",
			Help: "Store calls per entity type and operation.",
		}, []string{"entity", "op"}),
	}
	reg.MustRegister(r.cacheHits, r.cacheMisses, r.storeCalls)
	return r
}

// CacheHit counts a cache hit.
func (r *Recorder) CacheHit(entity string) {
	if r == nil {
		return
	}
	r.cacheHits.WithLabelValues(entity).Inc()
}

// CacheMiss counts a cache miss.
func (r *Recorder) CacheMiss(entity string) {
	if r == nil {
		return
	}
	r.cacheMisses.WithLabelValues(entity).Inc()
}

// StoreCall counts one round-trip to the store.
func (r *Recorder) StoreCall(entity, op string) {
	if r == nil {
		return
	}
	r.storeCalls.WithLabelValues(entity, op).Inc()
}
