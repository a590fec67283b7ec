/*
Package workers runs image decodes off the interactive path.

# Sizing

Count and ForCPU size worker sets from GOMAXPROCS, which Go 1.19+ sets from the
container CPU limit, rather than runtime.NumCPU(). DECODE_WORKERS overrides the
calculation:

	env:
	- name: DECODE_WORKERS
	  value: "4"

# Pool

[Pool] executes [Request]s on a fixed set of goroutines fed by a priority
queue. Focused requests run before neighbor prefetches, which run before
background thumbnail generation; equal priorities run in submission order.

	pool := workers.NewPool(workers.Options{
	    Workers: workers.ForCPU(0),
	    Decode:  decodeFn,
	    Store:   imageCache,
	})
	h := pool.Submit(workers.Request{Key: k, Priority: workers.PriorityFocused})
	bmp, err := h.Wait(ctx)

At most one task exists per cache key while it is queued or running; later
submitters share its [Handle]. [Pool.Cancel] drops queued requests only. A
decode that has started always runs to completion and its result is written
to the [ResultStore] before the handle resolves. Submit stamps each request
with the store's generation for its path; the store uses it to drop results
for files invalidated while they were decoding.

When a [Throttle] (the memory monitor) is configured, each worker calls
WaitIfPaused before taking the next request, so memory pressure stalls new
decodes without interrupting running ones.
*/
package workers
