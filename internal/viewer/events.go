package viewer

import (
	"errors"
	"os"
	"path/filepath"

	"image-viewer/internal/logging"
	"image-viewer/internal/media"
	"image-viewer/internal/metrics"
	"image-viewer/internal/watcher"
	"image-viewer/internal/workers"
)

// EventKind groups notifications for the front end.
type EventKind string

const (
	// EventListing reports an insert, remove, update, reorder or reset.
	EventListing EventKind = "listing"
	// EventCursor reports a focus change.
	EventCursor EventKind = "cursor"
	// EventImage reports that a pending decode finished, successfully or not.
	EventImage EventKind = "image"
	// EventEdit reports an edit session change.
	EventEdit EventKind = "edit"
	// EventError reports a failure not tied to one command, such as a lost
	// directory subscription.
	EventError EventKind = "error"
)

// Listing and edit operations carried in Event.Op.
const (
	OpInsert  = "insert"
	OpRemove  = "remove"
	OpUpdate  = "update"
	OpReorder = "reorder"
	OpReset   = "reset"

	OpBegin     = "begin"
	OpTransform = "transform"
	OpUndo      = "undo"
	OpSave      = "save"
	OpDiscard   = "discard"
)

// Event is a notification for subscribers. Index refers to the listing at
// Version.
type Event struct {
	Kind       EventKind        `json:"kind"`
	Op         string           `json:"op,omitempty"`
	Version    uint64           `json:"version"`
	Index      int              `json:"index"`
	Path       string           `json:"path,omitempty"`
	Resolution media.Resolution `json:"resolution,omitempty"`
	Error      string           `json:"error,omitempty"`
	ErrorKind  media.ErrorKind  `json:"errorKind,omitempty"`
}

// Subscribe registers for notifications. Events are dropped for a
// subscriber whose buffer is full, so a slow consumer should resynchronize
// from Listing on the next event it does receive. The returned function
// unsubscribes and closes the channel.
func (v *Viewer) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	v.subMu.Lock()
	select {
	case <-v.done:
		v.subMu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	id := v.nextSub
	v.nextSub++
	v.subs[id] = ch
	v.subMu.Unlock()

	return ch, func() {
		v.subMu.Lock()
		defer v.subMu.Unlock()
		if c, ok := v.subs[id]; ok {
			delete(v.subs, id)
			close(c)
		}
	}
}

func (v *Viewer) publish(ev Event) {
	v.subMu.Lock()
	defer v.subMu.Unlock()
	for id, ch := range v.subs {
		select {
		case ch <- ev:
		default:
			logging.Debug("Subscriber %d is slow, dropped %s event", id, ev.Kind)
		}
	}
}

// applyEvent patches the listing from a watcher event. Every case is
// idempotent: events may repeat or describe a state a scan already shows.
func (v *Viewer) applyEvent(ev watcher.Event) {
	if v.nav.Listing().Dir == "" {
		return
	}
	switch ev.Op {
	case watcher.Created, watcher.Modified:
		v.upsert(ev.Path)
	case watcher.Removed:
		v.remove(ev.Path)
	case watcher.Renamed:
		v.remove(ev.OldPath)
		v.upsert(ev.Path)
	}
}

// upsert inserts path or refreshes its entry. A file whose size and mtime
// match the listed entry is left alone, which absorbs the events caused by
// this process's own saves.
func (v *Viewer) upsert(path string) {
	if filepath.Dir(path) != v.nav.Listing().Dir {
		return
	}

	entry, ok, err := v.scanner.EntryFor(path, v.cfg.ShowHidden)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			v.remove(path)
			return
		}
		logging.Warn("Cannot read %s after change: %v", path, err)
		return
	}
	if !ok {
		v.remove(path)
		return
	}

	if i := v.nav.Listing().IndexOf(path); i >= 0 {
		old, _ := v.nav.Entry(i)
		if old.ModTime.Equal(entry.ModTime) && old.Size == entry.Size {
			return
		}
		v.cache.Invalidate(path)
		v.pool.Cancel(func(r workers.Request) bool { return r.Key.Path == path })
	}
	v.place(entry)
}

// place inserts or replaces entry in the listing and refreshes decodes when
// it is near the cursor.
func (v *Viewer) place(entry media.ImageEntry) {
	op := OpUpdate
	i := v.nav.Listing().IndexOf(entry.Path)
	if i < 0 {
		op = OpInsert
		i = v.nav.Insert(entry)
		metrics.ListingEntries.Set(float64(v.nav.Len()))
	} else {
		i = v.nav.Replace(entry)
	}
	v.publish(Event{Kind: EventListing, Op: op, Version: v.nav.Version(), Index: i, Path: entry.Path})

	if op == OpUpdate && v.nav.InWindow(i, v.cfg.PrefetchWindow) {
		v.prefetch()
	}
}

// remove drops path from the listing and the cache.
func (v *Viewer) remove(path string) {
	v.cache.Invalidate(path)
	v.pool.Cancel(func(r workers.Request) bool { return r.Key.Path == path })
	if v.displayKey.Path == path {
		v.releaseDisplay()
	}

	i := v.nav.Remove(path)
	if i < 0 {
		return
	}
	metrics.ListingEntries.Set(float64(v.nav.Len()))
	v.publish(Event{Kind: EventListing, Op: OpRemove, Version: v.nav.Version(), Index: i, Path: path})
}

// recoverWatcher handles a lost or overflowed subscription: it warns once,
// resubscribes and rescans, keeping the focused path.
func (v *Viewer) recoverWatcher(err error) {
	// Coalesce a burst of failures into one rescan.
	for drained := false; !drained; {
		select {
		case <-v.watcher.Errors():
		default:
			drained = true
		}
	}

	v.watchFailures++
	metrics.WatcherRescans.Inc()
	dir := v.nav.Listing().Dir
	logging.Warn("Directory watch failed (%v); rescanning %s", err, dir)
	v.publish(Event{Kind: EventError, Version: v.nav.Version(), Index: v.nav.Index(), Path: dir, Error: err.Error()})

	if dir == "" {
		return
	}
	v.rescan(dir)
}

func (v *Viewer) rescan(dir string) {
	if werr := v.watch(dir); werr != nil {
		logging.Warn("Resubscribing to %s failed: %v", dir, werr)
	}

	keep := v.nav.Cursor().Path
	listing, err := v.scanner.Scan(dir, v.scanOptions())
	if err != nil {
		logging.Error("Rescan of %s failed: %v", dir, err)
		if errors.Is(err, media.ErrDirectoryNotFound) {
			v.nav.SetListing(&media.DirectoryListing{Dir: dir, SortField: v.cfg.SortField, SortOrder: v.cfg.SortOrder}, "")
			v.publish(Event{Kind: EventListing, Op: OpReset, Version: v.nav.Version(), Index: v.nav.Index(), Path: dir})
		}
		return
	}

	// Entries whose mtime changed have new cache keys; the old ones age out.
	v.nav.SetListing(listing, keep)
	metrics.ListingEntries.Set(float64(listing.Len()))
	v.publish(Event{Kind: EventListing, Op: OpReset, Version: v.nav.Version(), Index: v.nav.Index(), Path: dir})
}

// Rescan re-reads the open directory, keeping the focused path.
func (v *Viewer) Rescan() error {
	var err error
	if derr := v.do(func() {
		dir := v.nav.Listing().Dir
		if dir == "" {
			err = ErrNoDirectory
			return
		}
		v.rescan(dir)
	}); derr != nil {
		return derr
	}
	return err
}
