package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	resolutions := []string{"thumbnail", "full"}

	for _, r := range resolutions {
		CacheHits.WithLabelValues(r)
		CacheMisses.WithLabelValues(r)
		DecodeDuration.WithLabelValues(r)
		for _, status := range []string{"success", "unsupported_format", "corrupt_data", "io_error", "canceled"} {
			DecodeTotal.WithLabelValues(r, status)
		}
	}

	for _, reason := range []string{"budget", "invalidate", "shrink"} {
		CacheEvictions.WithLabelValues(reason)
	}

	for _, format := range []string{"jpeg", "png", "gif", "webp", "bmp", "tiff", "heif", "avif", "jxl", "unknown"} {
		DecodeByFormat.WithLabelValues(format)
	}

	for _, op := range []string{"created", "removed", "modified", "renamed"} {
		WatcherEventsTotal.WithLabelValues(op)
	}

	for _, op := range []string{"stat", "open", "read", "readdir", "write"} {
		FilesystemOperationDuration.WithLabelValues(op)
		FilesystemOperationErrors.WithLabelValues(op)
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}

	for _, status := range []string{"success", "error"} {
		ScannerOperationsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"rotate90", "rotate180", "rotate270", "flip_h", "flip_v", "crop", "undo", "save", "discard"} {
		EditOperationsTotal.WithLabelValues(op, "success")
		EditOperationsTotal.WithLabelValues(op, "error")
	}
}
