package cache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"time"

	"image-viewer/internal/logging"
	"image-viewer/internal/media"
	"image-viewer/internal/metrics"
	"image-viewer/internal/workers"

	"github.com/dustin/go-humanize"
)

// DefaultFailureTTL is how long a decode failure is remembered.
const DefaultFailureTTL = 10 * time.Second

// Submitter enqueues decode work. *workers.Pool implements it.
type Submitter interface {
	Submit(req workers.Request) *workers.Handle
}

// Status is the outcome of GetOrDecode.
type Status int

const (
	// StatusReady means Bitmap is set.
	StatusReady Status = iota
	// StatusPending means Handle resolves when the decode finishes.
	StatusPending
	// StatusFailed means Err is set.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusPending:
		return "pending"
	default:
		return "failed"
	}
}

// Lookup is the result of GetOrDecode.
type Lookup struct {
	Status Status
	Bitmap *media.Bitmap
	Err    error
	Handle *workers.Handle
}

// Stats is a point-in-time snapshot.
type Stats struct {
	Bytes      int64
	Budget     int64
	Entries    int
	Referenced int
	Failures   int
	Epoch      uint64
}

type entry struct {
	key  media.CacheKey
	bmp  *media.Bitmap
	size int64
	refs int
	elem *list.Element
}

type failure struct {
	err     error
	expires time.Time
}

// Options configures a Cache.
type Options struct {
	Budget     int64
	FailureTTL time.Duration
	// Now is the clock used for failure expiry; time.Now when nil.
	Now func() time.Time
}

// Cache is a byte-budgeted LRU of decoded bitmaps. Thumbnails and full
// images share one budget and one recency order. Entries referenced through
// Acquire or Reserve are never evicted; the budget may then be exceeded until
// the reference is released.
type Cache struct {
	mu       sync.Mutex
	budget   int64
	size     int64
	lru      *list.List // front is most recently used
	entries  map[media.CacheKey]*entry
	byPath   map[string]map[media.CacheKey]struct{}
	failures map[media.CacheKey]failure
	reserved map[media.CacheKey]int
	gens     map[string]uint64 // per-path invalidation count, reset each epoch
	ttl      time.Duration
	epoch    uint64
	now      func() time.Time

	pool Submitter
}

// New creates an empty cache.
func New(opts Options) *Cache {
	ttl := opts.FailureTTL
	if ttl <= 0 {
		ttl = DefaultFailureTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	metrics.CacheBudgetBytes.Set(float64(opts.Budget))

	return &Cache{
		budget:   opts.Budget,
		lru:      list.New(),
		entries:  make(map[media.CacheKey]*entry),
		byPath:   make(map[string]map[media.CacheKey]struct{}),
		failures: make(map[media.CacheKey]failure),
		reserved: make(map[media.CacheKey]int),
		gens:     make(map[string]uint64),
		ttl:      ttl,
		now:      now,
	}
}

// SetPool wires the decoder used by GetOrDecode. The pool usually has this
// cache as its ResultStore, so it is created afterwards.
func (c *Cache) SetPool(p Submitter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pool = p
}

// Get returns a resident bitmap and marks it most recently used.
func (c *Cache) Get(key media.CacheKey) (*media.Bitmap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		metrics.CacheMisses.WithLabelValues(string(key.Resolution)).Inc()
		return nil, false
	}
	c.lru.MoveToFront(e.elem)
	metrics.CacheHits.WithLabelValues(string(key.Resolution)).Inc()
	return e.bmp, true
}

// Peek returns a resident bitmap without touching recency or metrics.
func (c *Cache) Peek(key media.CacheKey) (*media.Bitmap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		return e.bmp, true
	}
	return nil, false
}

// Failure returns the remembered decode error for key, if it has not expired.
func (c *Cache) Failure(key media.CacheKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.failureLocked(key)
	if err != nil {
		metrics.CacheNegativeHits.Inc()
	}
	return err
}

// PeekFailure is Failure without metrics.
func (c *Cache) PeekFailure(key media.CacheKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failureLocked(key)
}

func (c *Cache) failureLocked(key media.CacheKey) error {
	f, ok := c.failures[key]
	if !ok {
		return nil
	}
	if !c.now().Before(f.expires) {
		delete(c.failures, key)
		return nil
	}
	return f.err
}

// Put publishes a decoded bitmap. Results from an epoch older than the
// current one are discarded.
func (c *Cache) Put(key media.CacheKey, bmp *media.Bitmap, epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, bmp, epoch)
}

func (c *Cache) putLocked(key media.CacheKey, bmp *media.Bitmap, epoch uint64) {
	if epoch < c.epoch {
		metrics.CacheDiscardedResults.Inc()
		logging.Debug("Discarding stale result for %s (epoch %d < %d)", key, epoch, c.epoch)
		return
	}

	delete(c.failures, key)

	if e, ok := c.entries[key]; ok {
		c.size += bmp.ByteSize() - e.size
		e.bmp, e.size = bmp, bmp.ByteSize()
		c.lru.MoveToFront(e.elem)
	} else {
		e := &entry{key: key, bmp: bmp, size: bmp.ByteSize()}
		e.elem = c.lru.PushFront(e)
		c.entries[key] = e
		keys := c.byPath[key.Path]
		if keys == nil {
			keys = make(map[media.CacheKey]struct{})
			c.byPath[key.Path] = keys
		}
		keys[key] = struct{}{}
		c.size += e.size
	}

	c.evictLocked(c.budget, "budget")
	c.updateGaugesLocked()
}

// PutFailure remembers a decode error for the failure TTL so a broken file
// is not decoded again on every request.
func (c *Cache) PutFailure(key media.CacheKey, err error, epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putFailureLocked(key, err, epoch)
}

func (c *Cache) putFailureLocked(key media.CacheKey, err error, epoch uint64) {
	if err == nil || errors.Is(err, workers.ErrCanceled) || errors.Is(err, workers.ErrStopped) {
		return
	}
	if epoch < c.epoch {
		metrics.CacheDiscardedResults.Inc()
		return
	}
	c.failures[key] = failure{err: err, expires: c.now().Add(c.ttl)}
}

// Generation returns how many times path has been invalidated in the
// current epoch. The decode pool stamps it into each request.
func (c *Cache) Generation(path string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[path]
}

// Store publishes a finished decode. Results for a path invalidated after
// the request was stamped are dropped, so a decode that was running when its
// file changed or disappeared cannot bring the old pixels back.
func (c *Cache) Store(req workers.Request, bmp *media.Bitmap, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req.Generation < c.gens[req.Key.Path] {
		metrics.CacheDiscardedResults.Inc()
		logging.Debug("Discarding result for invalidated %s", req.Key)
		return
	}
	if err != nil {
		c.putFailureLocked(req.Key, err, req.Epoch)
		return
	}
	c.putLocked(req.Key, bmp, req.Epoch)
}

// Reserve protects key against eviction whether or not it is resident yet:
// a decode that lands for it stays until release is called, even when it
// alone exceeds the budget. release is safe to call more than once.
func (c *Cache) Reserve(key media.CacheKey) (release func()) {
	c.mu.Lock()
	c.reserved[key]++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.unreserve(key) })
	}
}

func (c *Cache) unreserve(key media.CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reserved[key]--; c.reserved[key] <= 0 {
		delete(c.reserved, key)
	}
	c.evictLocked(c.budget, "budget")
	c.updateGaugesLocked()
}

// Acquire pins a resident entry against eviction. The returned release
// function is safe to call more than once.
func (c *Cache) Acquire(key media.CacheKey) (*media.Bitmap, func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, func() {}, false
	}
	e.refs++
	c.lru.MoveToFront(e.elem)

	var once sync.Once
	release := func() {
		once.Do(func() { c.release(e) })
	}
	return e.bmp, release, true
}

func (c *Cache) release(e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.refs--
	if c.entries[e.key] == e {
		c.evictLocked(c.budget, "budget")
		c.updateGaugesLocked()
	}
}

// GetOrDecode answers from the cache, from a remembered failure, or by
// submitting req to the pool. It never blocks on a decode.
func (c *Cache) GetOrDecode(req workers.Request) Lookup {
	if bmp, ok := c.Get(req.Key); ok {
		return Lookup{Status: StatusReady, Bitmap: bmp}
	}
	if err := c.Failure(req.Key); err != nil {
		return Lookup{Status: StatusFailed, Err: err}
	}

	c.mu.Lock()
	pool := c.pool
	c.mu.Unlock()
	if pool == nil {
		return Lookup{Status: StatusFailed, Err: fmt.Errorf("no decoder attached to cache")}
	}

	// Submit takes the pool lock and then Peeks this cache, so the cache
	// lock must not be held here.
	h := pool.Submit(req)
	if h.Ready() {
		bmp, err := h.Result()
		if err != nil {
			return Lookup{Status: StatusFailed, Err: err, Handle: h}
		}
		return Lookup{Status: StatusReady, Bitmap: bmp, Handle: h}
	}
	return Lookup{Status: StatusPending, Handle: h}
}

// Invalidate drops every entry and remembered failure for path. Holders of
// an acquired bitmap keep their pixels; the entry just stops being served.
// Decodes of path already queued or running are discarded when they finish.
func (c *Cache) Invalidate(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[path]++
	n := 0
	for key := range c.byPath[path] {
		if e, ok := c.entries[key]; ok {
			c.removeLocked(e)
			n++
		}
	}
	for key := range c.failures {
		if key.Path == path {
			delete(c.failures, key)
		}
	}
	if n > 0 {
		metrics.CacheEvictions.WithLabelValues("invalidate").Add(float64(n))
		c.updateGaugesLocked()
		logging.Debug("Invalidated %d cache entries for %s", n, path)
	}
	return n
}

// NextEpoch starts a new epoch. Results submitted under earlier epochs are
// discarded when they arrive.
func (c *Cache) NextEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	clear(c.gens)
	return c.epoch
}

// Epoch returns the current epoch.
func (c *Cache) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// SetBudget changes the byte budget and evicts down to it.
func (c *Cache) SetBudget(budget int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.budget = budget
	metrics.CacheBudgetBytes.Set(float64(budget))
	c.evictLocked(budget, "budget")
	c.updateGaugesLocked()
}

// Shrink evicts unreferenced entries until resident bytes are at or below
// target, without changing the budget. Used under memory pressure.
func (c *Cache) Shrink(target int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.entries)
	c.evictLocked(target, "shrink")
	c.updateGaugesLocked()
	evicted := before - len(c.entries)
	if evicted > 0 {
		logging.Info("Cache shrunk to %s (%d entries evicted)", humanize.IBytes(uint64(c.size)), evicted)
	}
	return evicted
}

// Budget returns the configured byte budget.
func (c *Cache) Budget() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.budget
}

// Stats returns a snapshot of cache occupancy.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Bytes:    c.size,
		Budget:   c.budget,
		Entries:  len(c.entries),
		Failures: len(c.failures),
		Epoch:    c.epoch,
	}
	for _, e := range c.entries {
		if c.pinnedLocked(e) {
			s.Referenced++
		}
	}
	return s
}

func (c *Cache) pinnedLocked(e *entry) bool {
	return e.refs > 0 || c.reserved[e.key] > 0
}

// evictLocked removes least recently used unreferenced entries until size is
// at or below limit. Acquired and reserved entries are skipped, never evicted.
func (c *Cache) evictLocked(limit int64, reason string) {
	for el := c.lru.Back(); el != nil && c.size > limit; {
		prev := el.Prev()
		e := el.Value.(*entry)
		if !c.pinnedLocked(e) {
			c.removeLocked(e)
			metrics.CacheEvictions.WithLabelValues(reason).Inc()
		}
		el = prev
	}
	if c.size > limit {
		logging.Debug("Cache over %s limit (%s) with only referenced entries left",
			humanize.IBytes(uint64(max(limit, 0))), humanize.IBytes(uint64(c.size)))
	}
}

func (c *Cache) removeLocked(e *entry) {
	c.lru.Remove(e.elem)
	delete(c.entries, e.key)
	if keys := c.byPath[e.key.Path]; keys != nil {
		delete(keys, e.key)
		if len(keys) == 0 {
			delete(c.byPath, e.key.Path)
		}
	}
	c.size -= e.size
}

func (c *Cache) updateGaugesLocked() {
	metrics.CacheSizeBytes.Set(float64(c.size))
	metrics.CacheEntries.Set(float64(len(c.entries)))
}
