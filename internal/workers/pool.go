package workers

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"image-viewer/internal/logging"
	"image-viewer/internal/media"
	"image-viewer/internal/metrics"
)

var (
	// ErrCanceled resolves handles whose request was removed from the queue
	// before a worker started it.
	ErrCanceled = errors.New("decode request canceled")
	// ErrStopped resolves handles submitted to, or still queued in, a stopped pool.
	ErrStopped = errors.New("decode pool stopped")
)

// Priority orders queued requests. Higher values run first.
type Priority int

const (
	PriorityBackground Priority = iota
	PriorityNeighbor
	PriorityFocused
)

func (p Priority) String() string {
	switch p {
	case PriorityFocused:
		return "focused"
	case PriorityNeighbor:
		return "neighbor"
	default:
		return "background"
	}
}

// Request asks for one decoded artifact. Epoch and Generation are handed back
// to the ResultStore so it can drop results that belong to a previous
// directory, or to a file invalidated while its decode was running.
// Generation is stamped by Submit from the store.
type Request struct {
	Key        media.CacheKey
	Priority   Priority
	Epoch      uint64
	Generation uint64
}

// DecodeFunc produces the bitmap for a request. ctx is canceled when the pool
// stops; a running decode is otherwise never interrupted.
type DecodeFunc func(ctx context.Context, req Request) (*media.Bitmap, error)

// ResultStore receives finished work. The image cache implements it.
type ResultStore interface {
	Peek(key media.CacheKey) (*media.Bitmap, bool)
	PeekFailure(key media.CacheKey) error
	// Generation is the invalidation count of path.
	Generation(path string) uint64
	// Store publishes a finished request: bmp on success, err otherwise.
	Store(req Request, bmp *media.Bitmap, err error)
}

// Throttle lets a memory monitor hold workers back before they pick up the
// next request.
type Throttle interface {
	WaitIfPaused() bool
}

// Handle is the future for a submitted request. Every submitter of the same
// key while it is queued or running shares one Handle.
type Handle struct {
	key  media.CacheKey
	done chan struct{}
	bmp  *media.Bitmap
	err  error
}

func newHandle(key media.CacheKey) *Handle {
	return &Handle{key: key, done: make(chan struct{})}
}

// ResolvedHandle returns a handle that is already complete.
func ResolvedHandle(key media.CacheKey, bmp *media.Bitmap, err error) *Handle {
	h := newHandle(key)
	h.resolve(bmp, err)
	return h
}

func (h *Handle) resolve(bmp *media.Bitmap, err error) {
	h.bmp, h.err = bmp, err
	close(h.done)
}

// Key returns the requested cache key.
func (h *Handle) Key() media.CacheKey { return h.key }

// Done is closed once the result is available.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Ready reports whether Done is closed.
func (h *Handle) Ready() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome. Only meaningful once Ready.
func (h *Handle) Result() (*media.Bitmap, error) {
	if !h.Ready() {
		return nil, fmt.Errorf("result for %s not ready", h.key)
	}
	return h.bmp, h.err
}

// Wait blocks until the result is available or ctx ends.
func (h *Handle) Wait(ctx context.Context) (*media.Bitmap, error) {
	select {
	case <-h.done:
		return h.bmp, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Canceled reports whether the request was dropped from the queue.
func (h *Handle) Canceled() bool {
	return h.Ready() && errors.Is(h.err, ErrCanceled)
}

type task struct {
	req     Request
	handle  *Handle
	seq     uint64
	index   int
	running bool
}

// Options configures a Pool.
type Options struct {
	Workers  int
	Decode   DecodeFunc
	Store    ResultStore
	Throttle Throttle
}

// Pool runs decode requests on a fixed set of goroutines, highest priority
// first, with at most one queued-or-running task per cache key.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    taskQueue
	inflight map[media.CacheKey]*task
	seq      uint64
	running  int
	stopped  bool

	decode   DecodeFunc
	store    ResultStore
	throttle Throttle
	workers  int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool starts opts.Workers goroutines (ForCPU when zero).
func NewPool(opts Options) *Pool {
	n := opts.Workers
	if n <= 0 {
		n = ForCPU(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		inflight: make(map[media.CacheKey]*task),
		decode:   opts.Decode,
		store:    opts.Store,
		throttle: opts.Throttle,
		workers:  n,
		ctx:      ctx,
		cancel:   cancel,
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}

	metrics.PoolWorkers.Set(float64(n))
	logging.Debug("Decode pool started with %d workers", n)
	return p
}

// Submit enqueues req and returns its handle without blocking. A request for
// a key already queued or running attaches to that task, raising its
// priority if needed. A key already resident in the store, or remembered as
// failed, resolves at once.
func (p *Pool) Submit(req Request) *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ResolvedHandle(req.Key, nil, ErrStopped)
	}

	if p.store != nil {
		req.Generation = p.store.Generation(req.Key.Path)
	}

	if t, ok := p.inflight[req.Key]; ok {
		metrics.PoolDeduplicated.Inc()
		if req.Epoch > t.req.Epoch {
			t.req.Epoch = req.Epoch
		}
		// a running decode may have read the file before the invalidation
		if !t.running && req.Generation > t.req.Generation {
			t.req.Generation = req.Generation
		}
		if !t.running && req.Priority > t.req.Priority {
			t.req.Priority = req.Priority
			heap.Fix(&p.queue, t.index)
		}
		return t.handle
	}

	if p.store != nil {
		if bmp, ok := p.store.Peek(req.Key); ok {
			return ResolvedHandle(req.Key, bmp, nil)
		}
		if err := p.store.PeekFailure(req.Key); err != nil {
			return ResolvedHandle(req.Key, nil, err)
		}
	}

	p.seq++
	t := &task{req: req, handle: newHandle(req.Key), seq: p.seq}
	heap.Push(&p.queue, t)
	p.inflight[req.Key] = t
	metrics.PoolQueueDepth.Set(float64(p.queue.Len()))
	p.cond.Signal()

	return t.handle
}

// Cancel removes every queued request matching pred and resolves its handle
// with ErrCanceled. Running requests are never affected. Returns the number
// of requests removed.
func (p *Pool) Cancel(pred func(Request) bool) int {
	p.mu.Lock()
	var canceled []*task
	for _, t := range p.queue {
		if pred(t.req) {
			canceled = append(canceled, t)
		}
	}
	for _, t := range canceled {
		heap.Remove(&p.queue, t.index)
		delete(p.inflight, t.req.Key)
	}
	metrics.PoolQueueDepth.Set(float64(p.queue.Len()))
	p.mu.Unlock()

	for _, t := range canceled {
		t.handle.resolve(nil, ErrCanceled)
	}
	if len(canceled) > 0 {
		metrics.PoolCanceled.Add(float64(len(canceled)))
		logging.Debug("Canceled %d queued decode requests", len(canceled))
	}
	return len(canceled)
}

// Reprioritize recomputes the priority of every queued request.
func (p *Pool) Reprioritize(fn func(Request) Priority) {
	p.mu.Lock()
	defer p.mu.Unlock()

	changed := false
	for _, t := range p.queue {
		if np := fn(t.req); np != t.req.Priority {
			t.req.Priority = np
			changed = true
		}
	}
	if changed {
		heap.Init(&p.queue)
	}
}

// QueueDepth returns the number of requests waiting for a worker.
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// InFlight returns the number of requests currently being decoded.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Pending reports whether key is queued or running.
func (p *Pool) Pending(key media.CacheKey) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[key]
	return ok
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Stop resolves queued requests with ErrStopped, cancels the decode context
// and waits for running decodes to return.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	queued := make([]*task, len(p.queue))
	copy(queued, p.queue)
	p.queue = nil
	for _, t := range queued {
		delete(p.inflight, t.req.Key)
	}
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, t := range queued {
		t.handle.resolve(nil, ErrStopped)
	}

	p.cancel()
	p.wg.Wait()
	metrics.PoolQueueDepth.Set(0)
	metrics.PoolInFlight.Set(0)
	logging.Debug("Decode pool stopped")
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		if p.throttle != nil {
			p.throttle.WaitIfPaused()
		}

		p.mu.Lock()
		for p.queue.Len() == 0 && !p.stopped {
			p.cond.Wait()
		}
		if p.stopped {
			p.mu.Unlock()
			return
		}
		t := heap.Pop(&p.queue).(*task)
		t.running = true
		p.running++
		req := t.req
		metrics.PoolQueueDepth.Set(float64(p.queue.Len()))
		metrics.PoolInFlight.Set(float64(p.running))
		p.mu.Unlock()

		bmp, err := p.run(req)

		p.mu.Lock()
		req.Epoch = t.req.Epoch
		p.mu.Unlock()

		// Publish before unregistering: a concurrent Submit for this key
		// either attaches to t or finds the result in the store.
		if p.store != nil {
			p.store.Store(req, bmp, err)
		}

		p.mu.Lock()
		delete(p.inflight, req.Key)
		p.running--
		metrics.PoolInFlight.Set(float64(p.running))
		p.mu.Unlock()

		t.handle.resolve(bmp, err)
	}
}

func (p *Pool) run(req Request) (bmp *media.Bitmap, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Decode of %s panicked: %v", req.Key.Path, r)
			bmp, err = nil, fmt.Errorf("%w: decoder panic: %v", media.ErrCorruptData, r)
		}

		status := "success"
		if err != nil {
			status = string(media.KindOf(err))
		}
		res := string(req.Key.Resolution)
		metrics.DecodeTotal.WithLabelValues(res, status).Inc()
		metrics.DecodeDuration.WithLabelValues(res).Observe(time.Since(start).Seconds())
	}()

	if p.decode == nil {
		return nil, fmt.Errorf("no decode function configured")
	}
	return p.decode(p.ctx, req)
}
