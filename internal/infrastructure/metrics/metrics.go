package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scheduler metrics
var (
	TranscodesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mydia_transcodes_active",
			Help: "Number of encoder processes currently running",
		},
	)

	TranscodesQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mydia_transcodes_queued",
			Help: "Number of transcode requests waiting for a free slot",
		},
	)

	TranscodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mydia_transcodes_total",
			Help: "Total transcode jobs by terminal outcome",
		},
		[]string{"outcome"}, // "completed", "failed", "cancelled"
	)

	TranscodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mydia_transcode_duration_seconds",
			Help:    "Wall-clock duration of completed transcodes",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 3600, 7200},
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mydia_transcode_cache_lookups_total",
			Help: "Transcode cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss"
	)
)

// Store metrics
var (
	StoreQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mydia_store_queries_total",
			Help: "Total job store operations",
		},
		[]string{"operation", "status"},
	)
)

// ObserveStoreQuery records one job store operation outcome.
func ObserveStoreQuery(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreQueriesTotal.WithLabelValues(operation, status).Inc()
}
