package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics for the inspection front end
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_viewer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_viewer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_viewer_sse_connections_active",
			Help: "Number of connected event stream clients",
		},
	)
)

// Image cache metrics
var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_viewer_cache_hits_total",
			Help: "Total number of image cache hits",
		},
		[]string{"resolution"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_viewer_cache_misses_total",
			Help: "Total number of image cache misses",
		},
		[]string{"resolution"},
	)

	CacheNegativeHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_viewer_cache_negative_hits_total",
			Help: "Lookups answered from the decode-failure cache",
		},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_viewer_cache_evictions_total",
			Help: "Total number of evicted cache entries",
		},
		[]string{"reason"}, // "budget", "invalidate", "shrink"
	)

	CacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_viewer_cache_size_bytes",
			Help: "Resident bitmap bytes held by the image cache",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_viewer_cache_entries",
			Help: "Number of bitmaps held by the image cache",
		},
	)

	CacheBudgetBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_viewer_cache_budget_bytes",
			Help: "Configured image cache byte budget",
		},
	)

	CacheDiscardedResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_viewer_cache_discarded_results_total",
			Help: "Decode results dropped on arrival because their epoch was obsolete",
		},
	)
)

// Decode pool metrics
var (
	DecodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_viewer_decode_total",
			Help: "Total number of decode operations",
		},
		[]string{"resolution", "status"},
	)

	DecodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_viewer_decode_duration_seconds",
			Help:    "Decode duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"resolution"},
	)

	DecodeByFormat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_viewer_decode_by_format_total",
			Help: "Decoded images by detected format",
		},
		[]string{"format"},
	)

	PoolQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_viewer_pool_queue_depth",
			Help: "Decode requests waiting for a worker",
		},
	)

	PoolInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_viewer_pool_in_flight",
			Help: "Decode requests currently executing",
		},
	)

	PoolWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_viewer_pool_workers",
			Help: "Number of decode workers",
		},
	)

	PoolCanceled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_viewer_pool_canceled_total",
			Help: "Queued decode requests dropped before execution",
		},
	)

	PoolDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_viewer_pool_deduplicated_total",
			Help: "Requests attached to an existing in-flight decode",
		},
	)
)

// Scanner and watcher metrics
var (
	ScannerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_viewer_scanner_operations_total",
			Help: "Total number of directory scans",
		},
		[]string{"status"},
	)

	ScannerOperationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_viewer_scanner_operation_duration_seconds",
			Help:    "Directory scan duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	ScannerEntriesReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_viewer_scanner_entries_returned",
			Help:    "Number of image entries returned by a scan",
			Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 10000},
		},
	)

	ScannerEntriesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_viewer_scanner_entries_skipped_total",
			Help: "Entries excluded because their metadata could not be read",
		},
	)

	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_viewer_watcher_events_total",
			Help: "Normalized filesystem events",
		},
		[]string{"op"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_viewer_watcher_errors_total",
			Help: "Total number of watcher errors",
		},
	)

	WatcherRescans = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_viewer_watcher_rescans_total",
			Help: "Full rescans triggered by watcher failures",
		},
	)

	ListingEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_viewer_listing_entries",
			Help: "Number of entries in the active directory listing",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_viewer_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_viewer_filesystem_operation_errors_total",
			Help: "Filesystem operations that failed",
		},
		[]string{"operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_viewer_filesystem_retry_attempts_total",
			Help: "Retries after a stale file handle",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_viewer_filesystem_retry_success_total",
			Help: "Operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_viewer_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_viewer_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_viewer_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_viewer_memory_paused",
			Help: "Whether decoding is paused by memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_viewer_memory_gc_pauses_total",
			Help: "Times decoding was paused for memory pressure",
		},
	)
)

// Edit metrics
var (
	EditOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_viewer_edit_operations_total",
			Help: "Edit session operations",
		},
		[]string{"op", "status"},
	)
)
