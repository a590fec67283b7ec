package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"

	"image-viewer/internal/cache"
	"image-viewer/internal/logging"
	"image-viewer/internal/media"
	"image-viewer/internal/memory"
	"image-viewer/internal/navigation"
	"image-viewer/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	ImageDir        string
	Port            string
	MetricsEnabled  bool
	LogHealthChecks bool

	// CacheBudget is the decoded-image byte budget. Zero means derive it from
	// GOMEMLIMIT with CacheRatio.
	CacheBudget    int64
	CacheRatio     float64
	ThumbnailSize  int
	DecodeWorkers  int
	PrefetchWindow int
	FailureTTL     time.Duration
	MaxImagePixels int

	Overflow   navigation.Overflow
	SortField  media.SortField
	SortOrder  media.SortOrder
	ShowHidden bool

	VipsEnabled  bool
	WatchEnabled bool
}

// Load reads configuration from environment variables without logging it.
// Malformed numbers fall back to their defaults with a warning; malformed
// enumerations are errors.
func Load() (*Config, error) {
	cfg := &Config{
		ImageDir:        getEnv("IMAGE_DIR", "."),
		Port:            getEnv("PORT", "8080"),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", false),
		CacheRatio:      getEnvFloat("CACHE_MEMORY_RATIO", memory.DefaultCacheRatio),
		ThumbnailSize:   getEnvInt("THUMBNAIL_SIZE", media.DefaultThumbnailSize),
		DecodeWorkers:   getEnvInt("DECODE_WORKERS", 0),
		PrefetchWindow:  getEnvInt("PREFETCH_WINDOW", 8),
		FailureTTL:      getEnvDuration("DECODE_FAILURE_TTL", cache.DefaultFailureTTL),
		MaxImagePixels:  getEnvInt("MAX_IMAGE_PIXELS", 0),
		ShowHidden:      getEnvBool("SHOW_HIDDEN", false),
		VipsEnabled:     getEnvBool("VIPS_ENABLED", false),
		WatchEnabled:    getEnvBool("WATCH_ENABLED", true),
	}

	var err error
	if cfg.CacheBudget, err = getEnvBytes("CACHE_BUDGET"); err != nil {
		return nil, err
	}
	if cfg.Overflow, err = navigation.ParseOverflow(os.Getenv("NAV_OVERFLOW")); err != nil {
		return nil, fmt.Errorf("NAV_OVERFLOW: %w", err)
	}
	if cfg.SortField, err = media.ParseSortField(os.Getenv("SORT_BY")); err != nil {
		return nil, fmt.Errorf("SORT_BY: %w", err)
	}
	if cfg.SortOrder, err = media.ParseSortOrder(os.Getenv("SORT_ORDER")); err != nil {
		return nil, fmt.Errorf("SORT_ORDER: %w", err)
	}

	if cfg.ThumbnailSize <= 0 {
		logging.Warn("THUMBNAIL_SIZE must be positive, using default: %d", media.DefaultThumbnailSize)
		cfg.ThumbnailSize = media.DefaultThumbnailSize
	}
	if cfg.PrefetchWindow < 0 {
		logging.Warn("PREFETCH_WINDOW must not be negative, using 0")
		cfg.PrefetchWindow = 0
	}
	if cfg.DecodeWorkers <= 0 {
		cfg.DecodeWorkers = workers.ForCPU(0)
	}

	if cfg.ImageDir, err = filepath.Abs(cfg.ImageDir); err != nil {
		return nil, fmt.Errorf("failed to resolve image directory path: %w", err)
	}
	return cfg, nil
}

// ResolveCacheBudget returns CacheBudget, or the share of GOMEMLIMIT given
// by CacheRatio when no explicit budget is set.
func (c *Config) ResolveCacheBudget() int64 {
	if c.CacheBudget > 0 {
		return c.CacheBudget
	}
	return memory.CacheBudget(c.CacheRatio)
}

// LoadConfig prints the banner, loads configuration, applies overrides such
// as command-line flags, and logs the result.
func LoadConfig(overrides ...func(*Config) error) (*Config, error) {
	printBanner()
	logSystemInfo()

	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	for _, apply := range overrides {
		if err := apply(cfg); err != nil {
			return nil, err
		}
	}
	LogConfig(cfg)

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Image directory (absolute): %s", cfg.ImageDir)
	if err := checkDirectory(cfg.ImageDir); err != nil {
		logging.Warn("  Image directory issue: %v", err)
	}
	return cfg, nil
}

// LogConfig logs every setting.
func LogConfig(cfg *Config) {
	budget := "derived " + humanize.IBytes(uint64(cfg.ResolveCacheBudget()))
	if cfg.CacheBudget > 0 {
		budget = humanize.IBytes(uint64(cfg.CacheBudget))
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  IMAGE_DIR:           %s", cfg.ImageDir)
	logging.Info("  PORT:                %s", cfg.Port)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  CACHE_BUDGET:        %s", budget)
	logging.Info("  THUMBNAIL_SIZE:      %d", cfg.ThumbnailSize)
	logging.Info("  DECODE_WORKERS:      %d", cfg.DecodeWorkers)
	logging.Info("  PREFETCH_WINDOW:     %d", cfg.PrefetchWindow)
	logging.Info("  DECODE_FAILURE_TTL:  %s", cfg.FailureTTL)
	logging.Info("  MAX_IMAGE_PIXELS:    %s", maxPixelsString(cfg.MaxImagePixels))
	logging.Info("  NAV_OVERFLOW:        %s", cfg.Overflow)
	logging.Info("  SORT_BY/SORT_ORDER:  %s/%s", cfg.SortField, cfg.SortOrder)
	logging.Info("  SHOW_HIDDEN:         %v", cfg.ShowHidden)
	logging.Info("  VIPS_ENABLED:        %v", cfg.VipsEnabled)
	logging.Info("  WATCH_ENABLED:       %v", cfg.WatchEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
}

func maxPixelsString(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return humanize.SIWithDigits(float64(n), 1, "px")
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogMemoryConfig logs how GOMEMLIMIT was configured.
func LogMemoryConfig(result memory.ConfigResult) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	switch result.Source {
	case "GOMEMLIMIT":
		logging.Info("  GOMEMLIMIT:      %s (from environment)", humanize.IBytes(uint64(result.GoMemLimit)))
	case "MEMORY_LIMIT":
		logging.Info("  Container limit: %s", humanize.IBytes(uint64(result.ContainerLimit)))
		logging.Info("  GOMEMLIMIT:      %s (%.0f%%)", humanize.IBytes(uint64(result.GoMemLimit)), result.Ratio*100)
	default:
		logging.Info("  No memory limit configured")
		logging.Info("  Decode backpressure: DISABLED")
	}
}

// LogCodecInit logs which formats can be decoded.
func LogCodecInit(vipsEnabled bool, vipsErr error) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CODEC INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if vipsEnabled {
		if vipsErr != nil {
			logging.Warn("  libvips initialization failed: %v", vipsErr)
			logging.Warn("  HEIF/AVIF/JXL images will show as unsupported")
		} else {
			logging.Info("  [OK] libvips codecs registered")
		}
	}

	formats := make([]string, 0, len(media.AllFormats))
	for _, f := range media.AllFormats {
		if media.HasDecoder(f) {
			formats = append(formats, string(f))
		}
	}
	logging.Info("  Decodable formats: %s", strings.Join(formats, ", "))
}

// LogViewerInit logs the viewer components once they are running.
func LogViewerInit(workerCount int, budget int64, watching bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("VIEWER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Decode workers:  %d", workerCount)
	logging.Info("  Cache budget:    %s", humanize.IBytes(uint64(budget)))
	logging.Info("  Watcher:         %s", enabledString(watching))
}

// LogDirectoryOpened logs the initial listing.
func LogDirectoryOpened(dir string, count int, duration time.Duration) {
	logging.Info("  [OK] Opened %s: %s images in %v", dir, humanize.Comma(int64(count)), duration)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if !logging.IsDebugEnabled() {
		return
	}

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}
	logging.Debug("  Registered routes (%d total):", len(routes))

	groups := make(map[string][]RouteInfo)
	for _, route := range routes {
		prefix := getRouteGroup(route.Path)
		groups[prefix] = append(groups[prefix], route)
	}
	groupKeys := make([]string, 0, len(groups))
	for k := range groups {
		groupKeys = append(groupKeys, k)
	}
	sort.Strings(groupKeys)

	for _, group := range groupKeys {
		if group != "" {
			logging.Debug("  [%s]", group)
		} else {
			logging.Debug("  [root]")
		}
		for _, route := range groups[group] {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// LogServerStarted logs successful server start
func LogServerStarted(port string, metricsEnabled bool, startupDuration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", startupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://localhost:%s", port)
	logging.Info("    Events:        http://localhost:%s/api/events", port)
	if metricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", port)
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
   ___                            __     ___
  |_ _|_ __ ___   __ _  __ _  ___ \ \   / (_) _____      _____ _ __
   | || '_ ' _ \ / _' |/ _' |/ _ \ \ \ / /| |/ _ \ \ /\ / / _ \ '__|
   | || | | | | | (_| | (_| |  __/  \ V / | |  __/\ V  V /  __/ |
  |___|_| |_| |_|\__,_|\__, |\___|   \_/  |_|\___| \_/\_/ \___|_|
                       |___/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
	logging.Info("")
}

// checkDirectory verifies that path is a readable directory. Unlike a cache
// directory it is never created.
func checkDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("directory is not readable: %w", err)
	}
	logging.Debug("    [OK] Directory readable, %d entries (top level)", len(entries))
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 || parsed > 1 {
		logging.Warn("Invalid ratio for %s: %q, using default: %.2f", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvBytes parses a humanized size such as "512MiB". Unset means zero.
func getEnvBytes(key string) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("%s: %q is too large", key, value)
	}
	return int64(n), nil
}
