package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"image-viewer/internal/filesystem"
	"image-viewer/internal/handlers"
	"image-viewer/internal/logging"
	"image-viewer/internal/media"
	"image-viewer/internal/media/vips"
	"image-viewer/internal/memory"
	"image-viewer/internal/metrics"
	"image-viewer/internal/middleware"
	"image-viewer/internal/navigation"
	"image-viewer/internal/startup"
	"image-viewer/internal/viewer"
	"image-viewer/internal/workers"
)

const metricsInterval = 15 * time.Second

// serveFlags hold command-line overrides. Only flags the user set replace
// the environment configuration.
type serveFlags struct {
	port       string
	budget     string
	workers    int
	prefetch   int
	overflow   string
	sortField  string
	sortOrder  string
	showHidden bool
	vips       bool
	watch      bool
	metrics    bool
}

func newServeCmd() *cobra.Command {
	f := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Open a directory and serve the viewer over HTTP",
		Long: `Open a directory and serve the viewer over HTTP.

Configuration comes from the environment (IMAGE_DIR, PORT, CACHE_BUDGET, ...);
flags given on the command line take precedence.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := startup.LoadConfig(func(cfg *startup.Config) error {
				return f.apply(cmd, args, cfg)
			})
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			return runServe(cfg)
		},
	}

	f.bind(cmd)
	return cmd
}

// bind registers the flags on cmd.
func (f *serveFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.port, "port", "p", "8080", "HTTP listen port")
	fl.StringVar(&f.budget, "cache-budget", "", "decoded image cache budget, e.g. 512MiB")
	fl.IntVar(&f.workers, "workers", 0, "decode worker count")
	fl.IntVar(&f.prefetch, "prefetch", 8, "entries on each side of the cursor to prefetch")
	fl.StringVar(&f.overflow, "overflow", "clamp", "navigation at the listing ends: clamp or wrap")
	fl.StringVar(&f.sortField, "sort", "name", "sort field: name, date or size")
	fl.StringVar(&f.sortOrder, "order", "asc", "sort order: asc or desc")
	fl.BoolVar(&f.showHidden, "show-hidden", false, "include dot files")
	fl.BoolVar(&f.vips, "vips", false, "decode HEIF, AVIF and JPEG XL with libvips")
	fl.BoolVar(&f.watch, "watch", true, "follow directory changes")
	fl.BoolVar(&f.metrics, "metrics", true, "serve /metrics")
}

// apply copies the flags the user set onto cfg.
func (f *serveFlags) apply(cmd *cobra.Command, args []string, cfg *startup.Config) error {
	changed := cmd.Flags().Changed
	var err error

	if len(args) == 1 {
		if cfg.ImageDir, err = filepath.Abs(args[0]); err != nil {
			return fmt.Errorf("failed to resolve image directory path: %w", err)
		}
	}
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("cache-budget") {
		n, err := humanize.ParseBytes(f.budget)
		if err != nil {
			return fmt.Errorf("--cache-budget: %w", err)
		}
		cfg.CacheBudget = int64(n)
	}
	if changed("workers") && f.workers > 0 {
		cfg.DecodeWorkers = f.workers
	}
	if changed("prefetch") {
		if f.prefetch < 0 {
			return fmt.Errorf("--prefetch must not be negative")
		}
		cfg.PrefetchWindow = f.prefetch
	}
	if changed("overflow") {
		if cfg.Overflow, err = navigation.ParseOverflow(f.overflow); err != nil {
			return fmt.Errorf("--overflow: %w", err)
		}
	}
	if changed("sort") {
		if cfg.SortField, err = media.ParseSortField(f.sortField); err != nil {
			return fmt.Errorf("--sort: %w", err)
		}
	}
	if changed("order") {
		if cfg.SortOrder, err = media.ParseSortOrder(f.sortOrder); err != nil {
			return fmt.Errorf("--order: %w", err)
		}
	}
	if changed("show-hidden") {
		cfg.ShowHidden = f.showHidden
	}
	if changed("vips") {
		cfg.VipsEnabled = f.vips
	}
	if changed("watch") {
		cfg.WatchEnabled = f.watch
	}
	if changed("metrics") {
		cfg.MetricsEnabled = f.metrics
	}
	return nil
}

// viewerConfig maps the application configuration onto the viewer.
func viewerConfig(cfg *startup.Config, throttle workers.Throttle) viewer.Config {
	vc := viewer.DefaultConfig()
	vc.ThumbnailSize = cfg.ThumbnailSize
	vc.PrefetchWindow = cfg.PrefetchWindow
	vc.Overflow = cfg.Overflow
	vc.SortField = cfg.SortField
	vc.SortOrder = cfg.SortOrder
	vc.ShowHidden = cfg.ShowHidden
	vc.MaxImagePixels = cfg.MaxImagePixels
	vc.CacheBudget = cfg.ResolveCacheBudget()
	vc.FailureTTL = cfg.FailureTTL
	vc.Workers = cfg.DecodeWorkers
	vc.Throttle = throttle
	vc.DisableWatcher = !cfg.WatchEnabled
	return vc
}

func runServe(cfg *startup.Config) error {
	startTime := time.Now()

	// GOMEMLIMIT first so the cache budget can be derived from it
	startup.LogMemoryConfig(memory.ConfigureFromEnv())

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	metrics.InitializeMetrics()

	var vipsErr error
	if cfg.VipsEnabled {
		vipsErr = vips.Init()
	}
	startup.LogCodecInit(cfg.VipsEnabled, vipsErr)

	// The monitor is created before the viewer because it throttles the
	// decode pool; OnCritical reaches the viewer through the closure.
	var v *viewer.Viewer
	memConfig := memory.DefaultConfig()
	memConfig.OnCritical = func(usage float64) {
		if v == nil {
			return
		}
		c := v.Cache()
		evicted := c.Shrink(c.Budget() / 2)
		logging.Warn("Memory usage at %.0f%%, shrank image cache (%d entries evicted)", usage*100, evicted)
	}
	monitor := memory.NewMonitor(memConfig)

	vc := viewerConfig(cfg, monitor)
	var err error
	if v, err = viewer.New(vc); err != nil {
		return fmt.Errorf("failed to start viewer: %w", err)
	}
	monitor.Start()
	startup.LogViewerInit(vc.Workers, vc.CacheBudget, cfg.WatchEnabled)

	openStart := time.Now()
	if listing, err := v.OpenDirectory(cfg.ImageDir); err != nil {
		// keep serving so a client can open another directory
		logging.Error("Failed to open %s: %v", cfg.ImageDir, err)
	} else {
		startup.LogDirectoryOpened(listing.Dir, listing.Len(), time.Since(openStart))
	}

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.NewCollector(v, metricsInterval)
		collector.Start()
	}

	h := handlers.New(v, monitor)
	router := h.Router(cfg.MetricsEnabled)
	startup.LogHTTPRoutes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = cfg.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		// event streams and ?wait=true stay open, so no write timeout
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, v, monitor, collector)
		close(done)
	}()

	startup.LogServerStarted(cfg.Port, cfg.MetricsEnabled, time.Since(startTime))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		v.Close()
		monitor.Stop()
		return fmt.Errorf("server error: %w", err)
	}
	<-done
	return nil
}

func handleShutdown(srv *http.Server, v *viewer.Viewer, monitor *memory.Monitor, collector *metrics.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Closing the viewer first ends event streams and waiting image requests.
	startup.LogShutdownStep("Closing viewer")
	if err := v.Close(); err != nil {
		logging.Warn("Viewer close error: %v", err)
	}
	startup.LogShutdownStepComplete("Viewer closed")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if collector != nil {
		collector.Stop()
	}
	monitor.Stop()
	vips.Shutdown()

	startup.LogShutdownComplete()
}
