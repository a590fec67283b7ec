package viewer

import (
	"context"
	"errors"
	"sync"
	"time"

	"image-viewer/internal/cache"
	"image-viewer/internal/edit"
	"image-viewer/internal/filesystem"
	"image-viewer/internal/logging"
	"image-viewer/internal/media"
	"image-viewer/internal/metrics"
	"image-viewer/internal/navigation"
	"image-viewer/internal/watcher"
	"image-viewer/internal/workers"
)

var (
	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("viewer closed")
	// ErrNoDirectory is returned when no directory is open.
	ErrNoDirectory = errors.New("no directory open")
	// ErrNoSession is returned by edit commands that need an open session.
	ErrNoSession = errors.New("no edit session")
	// ErrImageNotReady is returned by BeginEdit while the focused image is
	// still decoding.
	ErrImageNotReady = errors.New("image not decoded yet")
)

// Config controls the viewer and the components it owns.
type Config struct {
	ThumbnailSize  int
	PrefetchWindow int
	Overflow       navigation.Overflow
	SortField      media.SortField
	SortOrder      media.SortOrder
	ShowHidden     bool
	MaxImagePixels int
	CacheBudget    int64
	FailureTTL     time.Duration
	Workers        int
	Retry          filesystem.RetryConfig
	// Throttle holds decode workers back under memory pressure.
	Throttle workers.Throttle
	// DisableWatcher skips directory watching; listings then only change
	// through explicit commands.
	DisableWatcher bool

	decode workers.DecodeFunc
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		ThumbnailSize:  media.DefaultThumbnailSize,
		PrefetchWindow: 8,
		Overflow:       navigation.Clamp,
		SortField:      media.SortByName,
		SortOrder:      media.SortAsc,
		CacheBudget:    512 << 20,
		FailureTTL:     cache.DefaultFailureTTL,
		Retry:          filesystem.DefaultRetryConfig(),
	}
}

// Viewer is the boundary the front end talks to. All listing, cursor and
// edit state is owned by a single control goroutine; public methods post
// commands to it and wait for the answer. Watcher events and decode
// completions go through the same loop, so they never race user commands.
type Viewer struct {
	cfg     Config
	cache   *cache.Cache
	pool    *workers.Pool
	scanner *media.Scanner
	watcher *watcher.Watcher

	// owned by the control loop
	nav           *navigation.State
	session       *edit.Session
	releaseEdit   func()
	displayKey    media.CacheKey
	releaseShown  func()
	waiting       map[media.CacheKey]*workers.Handle
	watchFailures int

	cmds  chan func()
	done  chan struct{}
	wg    sync.WaitGroup
	close sync.Once

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New builds the cache, decode pool and watcher and starts the control loop.
func New(cfg Config) (*Viewer, error) {
	def := DefaultConfig()
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = def.ThumbnailSize
	}
	if cfg.PrefetchWindow < 0 {
		cfg.PrefetchWindow = 0
	}
	if cfg.CacheBudget <= 0 {
		cfg.CacheBudget = def.CacheBudget
	}
	if cfg.SortField == "" {
		cfg.SortField = def.SortField
	}
	if cfg.SortOrder == "" {
		cfg.SortOrder = def.SortOrder
	}
	if cfg.Retry == (filesystem.RetryConfig{}) {
		cfg.Retry = def.Retry
	}

	v := &Viewer{
		cfg:     cfg,
		scanner: media.NewScanner(cfg.Retry),
		nav:     navigation.New(cfg.Overflow),
		waiting: make(map[media.CacheKey]*workers.Handle),
		cmds:    make(chan func()),
		done:    make(chan struct{}),
		subs:    make(map[int]chan Event),
	}

	v.cache = cache.New(cache.Options{Budget: cfg.CacheBudget, FailureTTL: cfg.FailureTTL})

	decode := cfg.decode
	if decode == nil {
		decode = v.decode
	}
	v.pool = workers.NewPool(workers.Options{
		Workers:  cfg.Workers,
		Decode:   decode,
		Store:    v.cache,
		Throttle: cfg.Throttle,
	})
	v.cache.SetPool(v.pool)

	if !cfg.DisableWatcher {
		w, err := watcher.New(watcher.Options{ShowHidden: cfg.ShowHidden})
		if err != nil {
			logging.Warn("Directory watching unavailable: %v", err)
		} else {
			v.watcher = w
		}
	}

	v.nav.OnMove(v.onMove)

	v.wg.Add(1)
	go v.loop()
	return v, nil
}

// Cache exposes the image cache, for memory-pressure wiring.
func (v *Viewer) Cache() *cache.Cache { return v.cache }

// Pool exposes the decode pool.
func (v *Viewer) Pool() *workers.Pool { return v.pool }

// Config returns the effective configuration.
func (v *Viewer) Config() Config { return v.cfg }

// Close stops the control loop, the watcher and the decode pool. Subscriber
// channels are closed.
func (v *Viewer) Close() error {
	var err error
	v.close.Do(func() {
		close(v.done)
		v.wg.Wait()

		if v.watcher != nil {
			err = v.watcher.Close()
		}
		v.pool.Stop()
		v.releaseDisplay()
		v.endSession()

		v.subMu.Lock()
		for id, ch := range v.subs {
			close(ch)
			delete(v.subs, id)
		}
		v.subMu.Unlock()
		logging.Debug("Viewer closed")
	})
	return err
}

func (v *Viewer) loop() {
	defer v.wg.Done()

	var events <-chan watcher.Event
	var errs <-chan error
	if v.watcher != nil {
		events, errs = v.watcher.Events(), v.watcher.Errors()
	}

	for {
		select {
		case <-v.done:
			return
		case fn := <-v.cmds:
			fn()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			v.applyEvent(ev)
		case err := <-errs:
			v.recoverWatcher(err)
		}
	}
}

// do runs fn on the control loop and waits for it.
func (v *Viewer) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case v.cmds <- func() { defer close(finished); fn() }:
	case <-v.done:
		return ErrClosed
	}
	<-finished
	return nil
}

// post queues fn on the control loop without waiting.
func (v *Viewer) post(fn func()) {
	select {
	case v.cmds <- fn:
	case <-v.done:
	}
}

// decode is the pool's DecodeFunc. Thumbnails are derived from a resident
// full bitmap when there is one.
func (v *Viewer) decode(ctx context.Context, req workers.Request) (*media.Bitmap, error) {
	if ctx.Err() != nil {
		return nil, workers.ErrStopped
	}

	if req.Key.Resolution == media.Thumbnail {
		full := req.Key
		full.Resolution = media.Full
		if bmp, ok := v.cache.Peek(full); ok {
			return media.GenerateThumbnail(bmp, v.cfg.ThumbnailSize), nil
		}
	}

	bmp, _, err := media.DecodeFile(req.Key.Path, v.cfg.Retry)
	if err != nil {
		logging.Debug("Decode of %s failed: %v", req.Key.Path, err)
		return nil, err
	}

	if req.Key.Resolution == media.Thumbnail {
		return media.GenerateThumbnail(bmp, v.cfg.ThumbnailSize), nil
	}
	return media.Constrain(bmp, v.cfg.MaxImagePixels), nil
}

// GetStats implements metrics.StatsProvider.
func (v *Viewer) GetStats() metrics.Stats {
	cs := v.cache.Stats()
	s := metrics.Stats{
		CacheBytes:   cs.Bytes,
		CacheEntries: cs.Entries,
		CacheBudget:  cs.Budget,
		QueueDepth:   v.pool.QueueDepth(),
		InFlight:     v.pool.InFlight(),
	}
	_ = v.do(func() { s.ListingSize = v.nav.Len() })
	return s
}
