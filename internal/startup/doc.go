// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables by [Load], or by
// [LoadConfig], which also prints the banner and logs every setting.
// Command-line flags override the environment afterwards.
//
//   - IMAGE_DIR: Directory opened at startup (default: .)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_ENABLED: Serve /metrics (default: true)
//   - CACHE_BUDGET: Decoded-image cache budget, humanized like "512MiB"
//     (default: CACHE_MEMORY_RATIO of GOMEMLIMIT, or 512MiB without a limit)
//   - CACHE_MEMORY_RATIO: Share of GOMEMLIMIT for the cache (default: 0.25)
//   - THUMBNAIL_SIZE: Thumbnail bounding box in pixels (default: 256)
//   - DECODE_WORKERS: Decode pool size (default: GOMAXPROCS)
//   - PREFETCH_WINDOW: Thumbnails kept queued on each side of the cursor (default: 8)
//   - DECODE_FAILURE_TTL: How long a failed decode is remembered (default: 10s)
//   - MAX_IMAGE_PIXELS: Downscale larger full decodes, 0 for no limit (default: 0)
//   - NAV_OVERFLOW: clamp or wrap at the ends of the listing (default: clamp)
//   - SORT_BY, SORT_ORDER: name, date or size; asc or desc (default: name, asc)
//   - SHOW_HIDDEN: Include dot-files (default: false)
//   - VIPS_ENABLED: Register libvips codecs for HEIF, AVIF and JXL (default: false)
//   - WATCH_ENABLED: Follow directory changes (default: true)
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: false)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogMemoryConfig]: Memory limit configuration
//   - [LogCodecInit]: libvips status and decodable formats
//   - [LogViewerInit]: Decode pool, cache budget and watcher
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
//
// # Example Usage
//
//	cfg, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//	startup.LogViewerInit(cfg.DecodeWorkers, cfg.ResolveCacheBudget(), cfg.WatchEnabled)
package startup
