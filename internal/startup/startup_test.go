package startup

import (
	"net/http"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"image-viewer/internal/media"
	"image-viewer/internal/navigation"
)

var configKeys = []string{
	"IMAGE_DIR", "PORT", "METRICS_ENABLED", "LOG_HEALTH_CHECKS",
	"CACHE_BUDGET", "CACHE_MEMORY_RATIO", "THUMBNAIL_SIZE", "DECODE_WORKERS",
	"PREFETCH_WINDOW", "DECODE_FAILURE_TTL", "MAX_IMAGE_PIXELS", "NAV_OVERFLOW",
	"SORT_BY", "SORT_ORDER", "SHOW_HIDDEN", "VIPS_ENABLED", "WATCH_ENABLED",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
	if info.OS != runtime.GOOS || info.Arch != runtime.GOARCH {
		t.Errorf("Expected %s/%s, got %s/%s", runtime.GOOS, runtime.GOARCH, info.OS, info.Arch)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	abs, _ := filepath.Abs(".")
	if cfg.ImageDir != abs {
		t.Errorf("ImageDir = %q, want %q", cfg.ImageDir, abs)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.CacheBudget != 0 {
		t.Errorf("CacheBudget = %d, want 0 (derived)", cfg.CacheBudget)
	}
	if cfg.ThumbnailSize != media.DefaultThumbnailSize {
		t.Errorf("ThumbnailSize = %d", cfg.ThumbnailSize)
	}
	if cfg.DecodeWorkers != runtime.GOMAXPROCS(0) {
		t.Errorf("DecodeWorkers = %d, want %d", cfg.DecodeWorkers, runtime.GOMAXPROCS(0))
	}
	if cfg.PrefetchWindow != 8 {
		t.Errorf("PrefetchWindow = %d, want 8", cfg.PrefetchWindow)
	}
	if cfg.FailureTTL != 10*time.Second {
		t.Errorf("FailureTTL = %v, want 10s", cfg.FailureTTL)
	}
	if cfg.Overflow != navigation.Clamp || cfg.SortField != media.SortByName || cfg.SortOrder != media.SortAsc {
		t.Errorf("navigation defaults = %v %s %s", cfg.Overflow, cfg.SortField, cfg.SortOrder)
	}
	if !cfg.WatchEnabled || !cfg.MetricsEnabled || cfg.VipsEnabled || cfg.ShowHidden {
		t.Errorf("feature defaults = %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("IMAGE_DIR", dir)
	t.Setenv("PORT", "9000")
	t.Setenv("CACHE_BUDGET", "64MiB")
	t.Setenv("THUMBNAIL_SIZE", "128")
	t.Setenv("DECODE_WORKERS", "3")
	t.Setenv("PREFETCH_WINDOW", "4")
	t.Setenv("DECODE_FAILURE_TTL", "1m")
	t.Setenv("MAX_IMAGE_PIXELS", "1000000")
	t.Setenv("NAV_OVERFLOW", "wrap")
	t.Setenv("SORT_BY", "date")
	t.Setenv("SORT_ORDER", "desc")
	t.Setenv("SHOW_HIDDEN", "true")
	t.Setenv("WATCH_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ImageDir != dir || cfg.Port != "9000" {
		t.Errorf("ImageDir/Port = %q/%q", cfg.ImageDir, cfg.Port)
	}
	if cfg.CacheBudget != 64<<20 {
		t.Errorf("CacheBudget = %d, want %d", cfg.CacheBudget, 64<<20)
	}
	if cfg.ResolveCacheBudget() != 64<<20 {
		t.Errorf("ResolveCacheBudget() = %d, want explicit budget", cfg.ResolveCacheBudget())
	}
	if cfg.ThumbnailSize != 128 || cfg.DecodeWorkers != 3 || cfg.PrefetchWindow != 4 {
		t.Errorf("sizes = %d/%d/%d", cfg.ThumbnailSize, cfg.DecodeWorkers, cfg.PrefetchWindow)
	}
	if cfg.FailureTTL != time.Minute || cfg.MaxImagePixels != 1000000 {
		t.Errorf("FailureTTL/MaxImagePixels = %v/%d", cfg.FailureTTL, cfg.MaxImagePixels)
	}
	if cfg.Overflow != navigation.Wrap || cfg.SortField != media.SortByDate || cfg.SortOrder != media.SortDesc {
		t.Errorf("navigation = %v %s %s", cfg.Overflow, cfg.SortField, cfg.SortOrder)
	}
	if !cfg.ShowHidden || cfg.WatchEnabled {
		t.Errorf("ShowHidden/WatchEnabled = %v/%v", cfg.ShowHidden, cfg.WatchEnabled)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	t.Run("malformed numbers fall back", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("THUMBNAIL_SIZE", "big")
		t.Setenv("PREFETCH_WINDOW", "-2")
		t.Setenv("DECODE_FAILURE_TTL", "soon")
		t.Setenv("CACHE_MEMORY_RATIO", "3")
		t.Setenv("SHOW_HIDDEN", "maybe")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.ThumbnailSize != media.DefaultThumbnailSize {
			t.Errorf("ThumbnailSize = %d", cfg.ThumbnailSize)
		}
		if cfg.PrefetchWindow != 0 {
			t.Errorf("PrefetchWindow = %d, want 0", cfg.PrefetchWindow)
		}
		if cfg.FailureTTL != 10*time.Second {
			t.Errorf("FailureTTL = %v", cfg.FailureTTL)
		}
		if cfg.CacheRatio != 0.25 {
			t.Errorf("CacheRatio = %v", cfg.CacheRatio)
		}
		if cfg.ShowHidden {
			t.Error("ShowHidden should fall back to false")
		}
	})

	errorCases := []struct {
		key   string
		value string
	}{
		{"NAV_OVERFLOW", "bounce"},
		{"SORT_BY", "color"},
		{"SORT_ORDER", "sideways"},
		{"CACHE_BUDGET", "plenty"},
	}
	for _, tt := range errorCases {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q should fail", tt.key, tt.value)
			}
		})
	}
}

func TestResolveCacheBudgetFromMemoryLimit(t *testing.T) {
	old := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(old) })
	debug.SetMemoryLimit(1 << 30)

	cfg := &Config{CacheRatio: 0.5}
	if got := cfg.ResolveCacheBudget(); got != 512<<20 {
		t.Errorf("ResolveCacheBudget() = %d, want %d", got, 512<<20)
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "healthz"},
		{"/api/image/{index}", "api/image"},
		{"/api/edit/rotate", "api/edit"},
		{"/api", "api"},
		{"/", ""},
	}
	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestGetRoutes(t *testing.T) {
	noop := func(http.ResponseWriter, *http.Request) {}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", noop).Methods("GET").Name("health")
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/nav/{action}", noop).Methods("POST")

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}

	found := map[string]RouteInfo{}
	for _, route := range routes {
		found[route.Method+" "+route.Path] = route
	}
	if found["GET /healthz"].Name != "health" {
		t.Errorf("health route missing: %+v", routes)
	}
	if _, ok := found["POST /api/nav/{action}"]; !ok {
		t.Errorf("nav route missing: %+v", routes)
	}
}
