package memory

import (
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"image-viewer/internal/logging"
	"image-viewer/internal/metrics"
)

// Config holds memory management configuration
type Config struct {
	// MemoryLimitBytes is the soft memory limit (0 = use GOMEMLIMIT or no limit)
	MemoryLimitBytes int64

	// HighWaterMark is the usage ratio below which paused decoding resumes (0.0-1.0)
	HighWaterMark float64

	// CriticalWaterMark is the usage ratio at which decoding pauses (0.0-1.0)
	CriticalWaterMark float64

	// CheckInterval is how often to check memory usage
	CheckInterval time.Duration

	// OnCritical runs once each time usage crosses the critical mark, outside
	// the monitor's lock. The viewer uses it to shrink the image cache.
	OnCritical func(usage float64)
}

// DefaultConfig returns sensible defaults for memory management
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     2 * time.Second,
	}
}

// Monitor samples heap usage against the limit. Above the critical mark it
// pauses decode workers, which call WaitIfPaused before each request, until
// usage falls below the high water mark.
type Monitor struct {
	config Config
	limit  int64
	alloc  func() uint64

	mu        sync.RWMutex
	current   uint64
	isPaused  bool
	pauseChan chan struct{}

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a new memory monitor
func NewMonitor(config Config) *Monitor {
	limit := config.MemoryLimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < math.MaxInt64 {
			limit = goMemLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %s", humanize.IBytes(uint64(limit)))
		}
	}
	if limit == 0 {
		logging.Warn("Memory monitor: no memory limit configured, decode backpressure disabled")
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		alloc:     heapAlloc,
		stopChan:  make(chan struct{}),
		pauseChan: make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Start begins monitoring memory usage
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.monitorLoop()
}

// Stop stops the monitor and releases any worker blocked in WaitIfPaused.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.checkMemory()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) checkMemory() {
	alloc := m.alloc()

	m.mu.Lock()
	m.current = alloc
	if m.limit <= 0 {
		m.mu.Unlock()
		return
	}

	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	var critical bool
	switch {
	case usage >= m.config.CriticalWaterMark && !m.isPaused:
		logging.Warn("Memory critical (%.1f%% of limit), pausing decodes", usage*100)
		m.isPaused = true
		critical = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
	case usage < m.config.HighWaterMark && m.isPaused:
		logging.Info("Memory recovered (%.1f%% of limit), resuming decodes", usage*100)
		m.isPaused = false
		metrics.MemoryPaused.Set(0)
		close(m.pauseChan)
		m.pauseChan = make(chan struct{})
	}
	m.mu.Unlock()

	if critical {
		if m.config.OnCritical != nil {
			m.config.OnCritical(usage)
		}
		go runtime.GC()
	}
}

// WaitIfPaused blocks while memory usage is critical. It returns false if
// the monitor was stopped while waiting.
func (m *Monitor) WaitIfPaused() bool {
	m.mu.RLock()
	if !m.isPaused {
		m.mu.RUnlock()
		return true
	}
	pauseChan := m.pauseChan
	m.mu.RUnlock()

	select {
	case <-pauseChan:
		return true
	case <-m.stopChan:
		return false
	}
}

// IsPaused returns true if decoding is paused
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// Status is a snapshot for health reporting.
type Status struct {
	Alloc  int64   `json:"alloc"`
	Limit  int64   `json:"limit"`
	Usage  float64 `json:"usage"`
	Paused bool    `json:"paused"`
}

// Status returns the last sample. Usage is 0 without a limit.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{Limit: m.limit, Paused: m.isPaused}
	if m.current > math.MaxInt64 {
		s.Alloc = math.MaxInt64
	} else {
		s.Alloc = int64(m.current)
	}
	if m.limit > 0 {
		s.Usage = float64(m.current) / float64(m.limit)
	}
	return s
}
