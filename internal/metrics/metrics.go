// Package metrics registers the process's Prometheus collectors: sync
// tick outcomes, cache lookups, bulk admission rejections, and rows
// ingested. Handler returns the /metrics endpoint handler; other packages
// call the package-level recording functions directly rather than holding
// a reference to a registry. Only RecordSyncTick has callers:
// RecordCacheLookup and RecordBulkRejection are never called, so the
// cache-lookup and bulk-rejection counters stay at zero.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	syncTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "river_sync_ticks_total",
		Help: "Sync scheduler ticks by stream and outcome.",
	}, []string{"stream", "outcome"})

	syncRowsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "river_sync_rows_ingested_total",
		Help: "Rows inserted by the sync engine, by stream.",
	}, []string{"stream"})

	syncTickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "river_sync_tick_duration_seconds",
		Help:    "Sync scheduler tick duration, by stream.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stream"})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "river_cache_lookups_total",
		Help: "Response cache lookups by outcome (hit/miss/stale).",
	}, []string{"outcome"})

	bulkRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "river_bulk_admission_rejections_total",
		Help: "Bulk CSV/NDJSON requests rejected for exceeding BULK_CONCURRENT_LIMIT.",
	})
)

// RecordSyncTick records the outcome and duration of one scheduler tick.
func RecordSyncTick(stream, outcome string, rows int, durationSeconds float64) {
	syncTicksTotal.WithLabelValues(stream, outcome).Inc()
	syncTickDuration.WithLabelValues(stream).Observe(durationSeconds)
	if rows > 0 {
		syncRowsIngested.WithLabelValues(stream).Add(float64(rows))
	}
}

// RecordCacheLookup records one response-cache lookup outcome.
func RecordCacheLookup(outcome string) {
	cacheLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordBulkRejection records a bulk CSV/NDJSON query request rejected by
// the admission semaphore.
func RecordBulkRejection() {
	bulkRejectionsTotal.Inc()
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
