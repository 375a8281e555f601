package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instruments this cache updates on every
// lookup and insert. The field names mirror the same hit/miss/eviction
// counters a plain-struct cache stats type would track; they're exported as
// Prometheus instruments here instead so they compose with the rest of the
// proxy's metrics registry.
type Metrics struct {
	hits           prometheus.Counter
	misses         prometheus.Counter
	insertions     prometheus.Counter
	insertFailures prometheus.Counter
	evictions      prometheus.Counter
	entries        prometheus.Gauge
	bytesUsed      prometheus.Gauge
}

// NewMetrics creates the cache's Prometheus instruments and registers them
// against reg. Passing a fresh prometheus.NewRegistry() (as the tests do)
// keeps repeated Store construction from colliding on metric names; a
// running proxy passes its single process-wide registry instead.
// Time Complexity: O(1) - fixed number of instrument registrations.
// Space Complexity: O(1) - fixed metric storage.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_cache_hits_total",
			Help: "Total number of cache lookups that found a matching entry.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_cache_misses_total",
			Help: "Total number of cache lookups that found no matching entry.",
		}),
		insertions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_cache_insertions_total",
			Help: "Total number of entries successfully written into the cache.",
		}),
		insertFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_cache_insert_failures_total",
			Help: "Total number of inserts that could not free enough budget to proceed.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_cache_evictions_total",
			Help: "Total number of entries evicted to make room for a new insert.",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxy_cache_entries",
			Help: "Current number of entries held by the cache.",
		}),
		bytesUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxy_cache_bytes_used",
			Help: "Current number of bytes held by the cache against its capacity.",
		}),
	}

	reg.MustRegister(
		m.hits, m.misses, m.insertions, m.insertFailures,
		m.evictions, m.entries, m.bytesUsed,
	)
	return m
}

// recordHit increments the cache-hit counter.
// Time Complexity: O(1) - atomic counter increment.
// Space Complexity: O(1) - no allocations.
func (m *Metrics) recordHit() { m.hits.Inc() }

// recordMiss increments the cache-miss counter.
// Time Complexity: O(1) - atomic counter increment.
// Space Complexity: O(1) - no allocations.
func (m *Metrics) recordMiss() { m.misses.Inc() }

// recordInsertion increments the successful-insertion counter.
// Time Complexity: O(1) - atomic counter increment.
// Space Complexity: O(1) - no allocations.
func (m *Metrics) recordInsertion() { m.insertions.Inc() }

// recordInsertFailure increments the failed-insertion counter.
// Time Complexity: O(1) - atomic counter increment.
// Space Complexity: O(1) - no allocations.
func (m *Metrics) recordInsertFailure() { m.insertFailures.Inc() }

// recordEviction increments the eviction counter.
// Time Complexity: O(1) - atomic counter increment.
// Space Complexity: O(1) - no allocations.
func (m *Metrics) recordEviction() { m.evictions.Inc() }

// setOccupancy updates the entry-count and bytes-used gauges to the given
// values.
// Time Complexity: O(1) - two gauge sets.
// Space Complexity: O(1) - no allocations.
func (m *Metrics) setOccupancy(entries, bytesUsed int64) {
	m.entries.Set(float64(entries))
	m.bytesUsed.Set(float64(bytesUsed))
}
