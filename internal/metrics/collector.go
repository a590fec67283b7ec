package metrics

import (
	"sync"
	"time"

	"image-viewer/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds a point-in-time snapshot of the acquisition subsystem
type Stats struct {
	CacheBytes   int64
	CacheEntries int
	CacheBudget  int64
	QueueDepth   int
	InFlight     int
	ListingSize  int
}

// Collector periodically collects and updates gauge metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	CacheSizeBytes.Set(float64(stats.CacheBytes))
	CacheEntries.Set(float64(stats.CacheEntries))
	CacheBudgetBytes.Set(float64(stats.CacheBudget))
	PoolQueueDepth.Set(float64(stats.QueueDepth))
	PoolInFlight.Set(float64(stats.InFlight))
	ListingEntries.Set(float64(stats.ListingSize))

	logging.Debug("Metrics collected: cache=%d bytes/%d entries, queue=%d, in-flight=%d, listing=%d",
		stats.CacheBytes, stats.CacheEntries, stats.QueueDepth, stats.InFlight, stats.ListingSize)
}
