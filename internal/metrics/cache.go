// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_cache_operations_total",
		Help: "Cache operations by cache name and result (hit, miss, set, eviction)",
	}, []string{"cache", "result"})

	cacheSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sentinel_cache_size",
		Help: "Current number of entries held by a named cache",
	}, []string{"cache"})
)

// RecordCacheOp increments the operation counter for a named cache
// (e.g. "sponsorblock_segments" for the segment-skip cache).
func RecordCacheOp(name, result string) {
	cacheOperations.WithLabelValues(name, result).Inc()
}

// SetCacheSize records a named cache's current entry count.
func SetCacheSize(name string, size int) {
	cacheSize.WithLabelValues(name).Set(float64(size))
}
