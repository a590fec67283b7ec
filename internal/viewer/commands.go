package viewer

import (
	"errors"
	"fmt"

	"image-viewer/internal/cache"
	"image-viewer/internal/logging"
	"image-viewer/internal/media"
	"image-viewer/internal/metrics"
	"image-viewer/internal/navigation"
	"image-viewer/internal/workers"
)

// Result is the answer to GetDisplayImage and GetThumbnail. With
// StatusPending, Handle resolves when the decode finishes and an EventImage
// is published.
type Result struct {
	Index  int
	Entry  media.ImageEntry
	Status cache.Status
	Bitmap *media.Bitmap
	Err    error
	Handle *workers.Handle
}

// Kind classifies Err.
func (r Result) Kind() media.ErrorKind { return media.KindOf(r.Err) }

// OpenDirectory subscribes to dir, scans it and focuses the first entry.
// Work queued for the previous directory is canceled and results still
// running for it are discarded on arrival.
func (v *Viewer) OpenDirectory(dir string) (*media.DirectoryListing, error) {
	var listing *media.DirectoryListing
	var err error
	if derr := v.do(func() { listing, err = v.openDirectory(dir) }); derr != nil {
		return nil, derr
	}
	return listing, err
}

func (v *Viewer) openDirectory(dir string) (*media.DirectoryListing, error) {
	prev := v.nav.Listing().Dir

	// Subscribe before scanning so that nothing happening after the scan
	// is missed; duplicates are absorbed by idempotent event handling.
	watchErr := v.watch(dir)

	listing, err := v.scanner.Scan(dir, v.scanOptions())
	if err != nil {
		if prev != "" && watchErr == nil {
			if rerr := v.watch(prev); rerr != nil {
				logging.Warn("Could not resume watching %s: %v", prev, rerr)
			}
		}
		return nil, err
	}
	if watchErr != nil {
		logging.Warn("Watching %s failed, changes will not be picked up: %v", listing.Dir, watchErr)
	}

	canceled := v.pool.Cancel(func(workers.Request) bool { return true })
	epoch := v.cache.NextEpoch()
	v.releaseDisplay()
	v.endSession()
	clear(v.waiting)

	v.nav.SetListing(listing, "")
	metrics.ListingEntries.Set(float64(listing.Len()))

	logging.Info("Opened %s: %d images (epoch %d, %d queued decodes canceled)", listing.Dir, listing.Len(), epoch, canceled)
	v.publish(Event{Kind: EventListing, Op: OpReset, Version: v.nav.Version(), Index: v.nav.Index(), Path: listing.Dir})
	return listing.Clone(), nil
}

func (v *Viewer) watch(dir string) error {
	if v.watcher == nil {
		return nil
	}
	return v.watcher.Watch(dir)
}

func (v *Viewer) scanOptions() media.ScanOptions {
	return media.ScanOptions{
		SortField:  v.cfg.SortField,
		SortOrder:  v.cfg.SortOrder,
		ShowHidden: v.cfg.ShowHidden,
	}
}

// Listing returns a copy of the current listing.
func (v *Viewer) Listing() (*media.DirectoryListing, error) {
	var l *media.DirectoryListing
	if err := v.do(func() { l = v.nav.Listing().Clone() }); err != nil {
		return nil, err
	}
	return l, nil
}

// Snapshot is a consistent view of the listing, cursor and error overlay.
type Snapshot struct {
	Listing *media.DirectoryListing
	Cursor  navigation.Cursor
	Errors  map[string]error
}

// Snapshot returns the listing, cursor and overlay taken at one instant.
func (v *Viewer) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := v.do(func() {
		s = Snapshot{Listing: v.nav.Listing().Clone(), Cursor: v.nav.Cursor(), Errors: v.nav.Errors()}
	})
	return s, err
}

// Cursor returns the focused index and listing version.
func (v *Viewer) Cursor() (navigation.Cursor, error) {
	var c navigation.Cursor
	err := v.do(func() { c = v.nav.Cursor() })
	return c, err
}

// EntryError returns the decode error overlay for index, if any. err is set
// when index is not in the listing.
func (v *Viewer) EntryError(index int) (overlay, err error) {
	if derr := v.do(func() {
		e, ok := v.nav.Entry(index)
		if !ok {
			err = fmt.Errorf("%w: %d", navigation.ErrIndexOutOfRange, index)
			return
		}
		overlay = v.nav.Error(e.Path)
	}); derr != nil {
		return nil, derr
	}
	return overlay, err
}

func (v *Viewer) move(fn func() bool) (navigation.Cursor, error) {
	var c navigation.Cursor
	err := v.do(func() {
		fn()
		c = v.nav.Cursor()
	})
	return c, err
}

// Next focuses the following entry.
func (v *Viewer) Next() (navigation.Cursor, error) { return v.move(v.nav.Next) }

// Prev focuses the preceding entry.
func (v *Viewer) Prev() (navigation.Cursor, error) { return v.move(v.nav.Prev) }

// First focuses the first entry.
func (v *Viewer) First() (navigation.Cursor, error) { return v.move(v.nav.First) }

// Last focuses the last entry.
func (v *Viewer) Last() (navigation.Cursor, error) { return v.move(v.nav.Last) }

// JumpTo focuses index i.
func (v *Viewer) JumpTo(i int) (navigation.Cursor, error) {
	var c navigation.Cursor
	var err error
	if derr := v.do(func() {
		err = v.nav.JumpTo(i)
		c = v.nav.Cursor()
	}); derr != nil {
		return c, derr
	}
	return c, err
}

// Resort reorders the listing, keeping the focused path.
func (v *Viewer) Resort(field media.SortField, order media.SortOrder) (navigation.Cursor, error) {
	var c navigation.Cursor
	err := v.do(func() {
		v.cfg.SortField, v.cfg.SortOrder = field, order
		v.nav.Resort(field, order)
		c = v.nav.Cursor()
		v.publish(Event{Kind: EventListing, Op: OpReorder, Version: c.Version, Index: c.Index})
	})
	return c, err
}

// GetDisplayImage returns the full-resolution bitmap for index, or a pending
// handle. The focused image is pinned in the cache while it is displayed.
// While an edit session is open on that image its working bitmap is returned.
func (v *Viewer) GetDisplayImage(index int) (Result, error) {
	var r Result
	var err error
	if derr := v.do(func() { r, err = v.get(index, media.Full) }); derr != nil {
		return Result{}, derr
	}
	return r, err
}

// GetThumbnail returns the thumbnail for index, or a pending handle. The
// request is background work and is canceled if index leaves the prefetch
// window before a worker starts it.
func (v *Viewer) GetThumbnail(index int) (Result, error) {
	var r Result
	var err error
	if derr := v.do(func() { r, err = v.get(index, media.Thumbnail) }); derr != nil {
		return Result{}, derr
	}
	return r, err
}

func (v *Viewer) get(index int, res media.Resolution) (Result, error) {
	entry, ok := v.nav.Entry(index)
	if !ok {
		if v.nav.Listing().Dir == "" {
			return Result{}, ErrNoDirectory
		}
		return Result{}, fmt.Errorf("%w: %d", navigation.ErrIndexOutOfRange, index)
	}
	r := Result{Index: index, Entry: entry}

	if res == media.Full && v.session != nil && v.session.Path() == entry.Path {
		r.Status, r.Bitmap = cache.StatusReady, v.session.Bitmap()
		return r, nil
	}

	key := entry.Key(res)
	focused := res == media.Full && index == v.nav.Index()
	if focused {
		v.holdDisplay(key)
	}
	lookup := v.cache.GetOrDecode(workers.Request{
		Key:      key,
		Priority: v.priorityFor(key),
		Epoch:    v.cache.Epoch(),
	})
	r.Status, r.Bitmap, r.Err, r.Handle = lookup.Status, lookup.Bitmap, lookup.Err, lookup.Handle

	switch lookup.Status {
	case cache.StatusFailed:
		v.nav.SetError(entry.Path, lookup.Err)
	case cache.StatusPending:
		v.track(lookup.Handle)
	}
	return r, nil
}

// priorityFor ranks a request against the current cursor: the focused full
// image first, then its immediate neighbors, then everything else.
func (v *Viewer) priorityFor(key media.CacheKey) workers.Priority {
	if key.Resolution != media.Full {
		return workers.PriorityBackground
	}
	cur, ok := v.nav.Current()
	if !ok {
		return workers.PriorityBackground
	}
	if key.Path == cur.Path {
		return workers.PriorityFocused
	}
	if i := v.nav.Listing().IndexOf(key.Path); i >= 0 && v.nav.InWindow(i, 1) {
		return workers.PriorityNeighbor
	}
	return workers.PriorityBackground
}

// onMove is the display-intent hook: it runs on every cursor change.
func (v *Viewer) onMove(c navigation.Cursor) {
	if v.session != nil && v.session.Path() != c.Path {
		logging.Info("Discarding edit session for %s after navigating away", v.session.Path())
		v.session.Discard()
		v.endSession()
		v.publish(Event{Kind: EventEdit, Op: OpDiscard, Version: c.Version, Index: c.Index})
	}
	if v.displayKey.Path != "" && v.displayKey.Path != c.Path {
		v.releaseDisplay()
	}
	v.publish(Event{Kind: EventCursor, Version: c.Version, Index: c.Index, Path: c.Path})
	v.prefetch()
}

// prefetch reprioritizes queued work around the cursor, cancels background
// requests that fell outside the prefetch window, and queues the focused
// image, its neighbors and the thumbnails in the window.
func (v *Viewer) prefetch() {
	cur, ok := v.nav.Current()
	if !ok {
		return
	}

	window := v.nav.Window(v.cfg.PrefetchWindow)
	keep := make(map[string]bool, len(window))
	for _, i := range window {
		e, _ := v.nav.Entry(i)
		keep[e.Path] = true
	}

	v.pool.Reprioritize(func(r workers.Request) workers.Priority { return v.priorityFor(r.Key) })
	v.pool.Cancel(func(r workers.Request) bool {
		return r.Priority == workers.PriorityBackground && !keep[r.Key.Path]
	})

	epoch := v.cache.Epoch()
	submit := func(key media.CacheKey) {
		h := v.pool.Submit(workers.Request{Key: key, Priority: v.priorityFor(key), Epoch: epoch})
		if !h.Ready() {
			v.track(h)
		}
	}

	if v.nav.Error(cur.Path) == nil {
		v.holdDisplay(cur.Key(media.Full))
		submit(cur.Key(media.Full))
	}
	for _, i := range v.nav.Window(1)[1:] {
		if e, ok := v.nav.Entry(i); ok && v.nav.Error(e.Path) == nil {
			submit(e.Key(media.Full))
		}
	}
	for _, i := range window {
		if e, ok := v.nav.Entry(i); ok && v.nav.Error(e.Path) == nil {
			submit(e.Key(media.Thumbnail))
		}
	}
}

// track publishes an EventImage once h resolves.
func (v *Viewer) track(h *workers.Handle) {
	if h == nil || v.waiting[h.Key()] == h {
		return
	}
	v.waiting[h.Key()] = h
	go func() {
		select {
		case <-h.Done():
		case <-v.done:
			return
		}
		v.post(func() { v.resolved(h) })
	}()
}

func (v *Viewer) resolved(h *workers.Handle) {
	key := h.Key()
	if v.waiting[key] == h {
		delete(v.waiting, key)
	}

	_, err := h.Result()
	if errors.Is(err, workers.ErrCanceled) || errors.Is(err, workers.ErrStopped) {
		return
	}

	i := v.nav.Listing().IndexOf(key.Path)
	if i < 0 {
		return
	}
	if e, _ := v.nav.Entry(i); e.Key(key.Resolution) != key {
		// the file changed since this decode was requested
		return
	}

	ev := Event{Kind: EventImage, Version: v.nav.Version(), Index: i, Path: key.Path, Resolution: key.Resolution}
	if err != nil {
		v.nav.SetError(key.Path, err)
		ev.Error, ev.ErrorKind = err.Error(), media.KindOf(err)
	}
	v.publish(ev)
}

// holdDisplay reserves the focused full image in the cache before its decode
// is requested, so the result survives eviction for as long as it is on
// screen, even when it alone exceeds the budget.
func (v *Viewer) holdDisplay(key media.CacheKey) {
	if v.displayKey == key && v.releaseShown != nil {
		return
	}
	v.releaseDisplay()
	v.displayKey, v.releaseShown = key, v.cache.Reserve(key)
}

func (v *Viewer) releaseDisplay() {
	if v.releaseShown != nil {
		v.releaseShown()
	}
	v.displayKey, v.releaseShown = media.CacheKey{}, nil
}
