// Package metrics provides Prometheus instrumentation for the image-viewer application.
//
// All metrics are registered with the default registry through promauto and are
// prefixed with "image_viewer_".
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of requests by method, route, and status
//   - HTTPRequestDuration: Histogram of request duration by method and route
//   - SSEConnectionsActive: Gauge of connected event-stream clients
//
// ## Cache Metrics
//
//   - CacheHits / CacheMisses: Counters by resolution (thumbnail/full)
//   - CacheNegativeHits: Lookups answered from a remembered decode failure
//   - CacheEvictions: Counter by reason (budget/invalidate/epoch)
//   - CacheSizeBytes, CacheEntries, CacheBudgetBytes: Gauges
//   - CacheDiscardedResults: Decode results dropped because their epoch was stale
//
// ## Decode Pool Metrics
//
//   - DecodeTotal: Counter by resolution and status
//   - DecodeDuration: Histogram by resolution
//   - DecodeByFormat: Counter by detected format
//   - PoolQueueDepth, PoolInFlight, PoolWorkers: Gauges
//   - PoolCanceled: Queued requests removed before a worker picked them up
//   - PoolDeduplicated: Submissions that attached to an existing request
//
// ## Scanner and Watcher Metrics
//
//   - ScannerOperationsTotal, ScannerOperationDuration, ScannerEntriesReturned,
//     ScannerEntriesSkipped
//   - WatcherEventsTotal by op, WatcherErrors, WatcherRescans
//   - ListingEntries: Gauge of images in the open directory
//
// ## Filesystem, Memory and Edit Metrics
//
//   - Filesystem*: operation durations, errors and stale-handle retries
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses
//   - EditOperationsTotal by op and status
//
// # Usage
//
//	mux.Handle("/metrics", promhttp.Handler())
//
//	metrics.CacheHits.WithLabelValues("full").Inc()
//
// # Collector
//
// [Collector] periodically reads a [StatsProvider] snapshot and updates the
// cache, pool and listing gauges:
//
//	collector := metrics.NewCollector(viewer, 15*time.Second)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Full-resolution cache hit rate:
//
//	rate(image_viewer_cache_hits_total{resolution="full"}[5m]) /
//	(rate(image_viewer_cache_hits_total{resolution="full"}[5m]) + rate(image_viewer_cache_misses_total{resolution="full"}[5m]))
//
// P95 decode latency:
//
//	histogram_quantile(0.95, sum(rate(image_viewer_decode_duration_seconds_bucket[5m])) by (le, resolution))
package metrics
