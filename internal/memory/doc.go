// Package memory configures the Go memory limit from the container
// environment and applies backpressure to image decoding when the heap
// approaches it.
//
// # Configuration
//
// Call [ConfigureFromEnv] early in main, before any image is decoded:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ... rest of application
//	}
//
// # Environment Variables
//
//   - GOMEMLIMIT: Standard Go environment variable. If set, takes precedence
//     over all other configuration. Accepts values like "400MiB" or "1GiB".
//
//   - MEMORY_LIMIT: Container memory limit, as a byte count (Kubernetes
//     Downward API) or a humanized size such as "2GiB".
//
//   - MEMORY_RATIO: Share of MEMORY_LIMIT given to the Go heap, between 0.0
//     and 1.0. Default is 0.85. Lower it when libvips is enabled, since its
//     allocations happen outside the Go heap.
//
// # Kubernetes Configuration
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.75"
//
// # Cache Budget
//
// [CacheBudget] derives the decoded-image cache budget as a share of
// GOMEMLIMIT, so a single limit sizes both the heap and the cache.
//
// # Backpressure
//
// A [Monitor] samples heap usage. When it reaches the critical water mark,
// decode workers block in [Monitor.WaitIfPaused] before taking their next
// request and [Config.OnCritical] runs once, which the viewer uses to shrink
// the image cache. Decoding resumes when usage drops below the high water
// mark.
//
//	monitor := memory.NewMonitor(memory.Config{
//	    HighWaterMark:     0.7,
//	    CriticalWaterMark: 0.85,
//	    CheckInterval:     2 * time.Second,
//	    OnCritical: func(float64) {
//	        c.Shrink(c.Budget() / 2)
//	    },
//	})
//	monitor.Start()
//	defer monitor.Stop()
//
// GOMEMLIMIT is a soft limit and only covers the Go heap; libvips and other
// CGO allocations are not counted.
package memory
