package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"

	"image-viewer/internal/memory"
	"image-viewer/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	Directory   string `json:"directory,omitempty"`
	ListingSize int    `json:"listingSize"`

	CacheBytes   string `json:"cacheBytes"`
	CacheBudget  string `json:"cacheBudget"`
	CacheEntries int    `json:"cacheEntries"`
	QueueDepth   int    `json:"queueDepth"`
	InFlight     int    `json:"inFlight"`

	Memory *memory.Status `json:"memory,omitempty"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports the viewer state. It answers 503 until a directory is
// open and reports degraded while decoding is paused for memory.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	stats := h.viewer.GetStats()
	listing, err := h.viewer.Listing()

	response := HealthResponse{
		Version:      startup.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		ListingSize:  stats.ListingSize,
		CacheBytes:   humanize.IBytes(uint64(stats.CacheBytes)),
		CacheBudget:  humanize.IBytes(uint64(stats.CacheBudget)),
		CacheEntries: stats.CacheEntries,
		QueueDepth:   stats.QueueDepth,
		InFlight:     stats.InFlight,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if listing != nil {
		response.Directory = listing.Dir
	}
	response.Ready = err == nil && response.Directory != ""

	response.Status = statusHealthy
	if !response.Ready {
		response.Status = statusStarting
	}
	if h.monitor != nil {
		ms := h.monitor.Status()
		response.Memory = &ms
		if ms.Paused && response.Ready {
			response.Status = statusDegraded
		}
	}

	status := http.StatusOK
	if !response.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, status, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 once a directory is open
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	listing, err := h.viewer.Listing()
	if err != nil || listing == nil || listing.Dir == "" {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ready"})
}
