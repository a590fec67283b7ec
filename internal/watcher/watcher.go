package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"image-viewer/internal/logging"
	"image-viewer/internal/media"
	"image-viewer/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// DefaultRenameWindow is how long a Rename waits for its matching Create.
const DefaultRenameWindow = 100 * time.Millisecond

// Op is a normalized change.
type Op int

const (
	Created Op = iota + 1
	Removed
	Modified
	Renamed
)

func (o Op) String() string {
	switch o {
	case Created:
		return "created"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is a change to a direct child of the watched directory. OldPath is
// set for Renamed only.
type Event struct {
	Op      Op
	Path    string
	OldPath string
}

func (e Event) String() string {
	if e.Op == Renamed {
		return fmt.Sprintf("%s %s -> %s", e.Op, e.OldPath, e.Path)
	}
	return fmt.Sprintf("%s %s", e.Op, e.Path)
}

// Options configures a Watcher.
type Options struct {
	ShowHidden   bool
	RenameWindow time.Duration
	// Buffer is the capacity of the Events channel.
	Buffer int
}

type pendingRename struct {
	path     string
	deadline time.Time
}

// Watcher observes exactly one directory at a time. Delivery is
// at-least-once; consumers must treat events idempotently.
type Watcher struct {
	fs *fsnotify.Watcher

	mu         sync.Mutex
	dir        string
	showHidden bool

	renameWindow time.Duration
	pending      []pendingRename

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
	closed sync.Once
}

// New starts a watcher that observes nothing until Watch is called.
func New(opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	window := opts.RenameWindow
	if window <= 0 {
		window = DefaultRenameWindow
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 256
	}

	w := &Watcher{
		fs:           fw,
		showHidden:   opts.ShowHidden,
		renameWindow: window,
		events:       make(chan Event, buffer),
		errors:       make(chan error, 8),
		done:         make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Events delivers normalized changes. Closed by Close.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors delivers subscription failures such as queue overflow. A consumer
// should treat any value as "the listing may be stale" and rescan.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Dir returns the directory currently watched.
func (w *Watcher) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

// SetShowHidden changes whether dot-files produce events.
func (w *Watcher) SetShowHidden(show bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.showHidden = show
}

// Watch switches to dir. The previous directory is unsubscribed first.
// Events racing the switch may be lost, so callers rescan dir after Watch
// returns rather than relying on events for its initial state.
func (w *Watcher) Watch(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dir != "" {
		if err := w.fs.Remove(w.dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
			logging.Debug("Unwatching %s: %v", w.dir, err)
		}
		w.dir = ""
		w.pending = nil
	}

	if err := w.fs.Add(abs); err != nil {
		metrics.WatcherErrors.Inc()
		return fmt.Errorf("watch %s: %w", abs, err)
	}
	w.dir = abs
	logging.Debug("Watching %s", abs)
	return nil
}

// Close stops the watcher and closes the Events channel.
func (w *Watcher) Close() error {
	var err error
	w.closed.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()
		close(w.events)
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		if timer == nil {
			if d, ok := w.nextDeadline(); ok {
				timer = time.NewTimer(d)
				timerC = timer.C
			}
		}

		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.reportError(err)

		case <-timerC:
			timer, timerC = nil, nil
			w.expireRenames(time.Now())
			continue
		}

		// Pending renames may have changed; rearm on the next iteration.
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
}

func (w *Watcher) nextDeadline() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return 0, false
	}
	return max(time.Until(w.pending[0].deadline), 0), true
}

func (w *Watcher) handle(ev fsnotify.Event) {
	w.mu.Lock()
	dir, showHidden := w.dir, w.showHidden
	w.mu.Unlock()

	path := filepath.Clean(ev.Name)
	if dir == "" || filepath.Dir(path) != dir {
		return
	}
	if !showHidden && media.IsHidden(filepath.Base(path)) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return
		}
		if old, ok := w.takeRename(); ok {
			w.emit(Event{Op: Renamed, Path: path, OldPath: old})
			return
		}
		w.emit(Event{Op: Created, Path: path})

	case ev.Has(fsnotify.Write):
		w.emit(Event{Op: Modified, Path: path})

	case ev.Has(fsnotify.Remove):
		w.emit(Event{Op: Removed, Path: path})

	case ev.Has(fsnotify.Rename):
		w.mu.Lock()
		w.pending = append(w.pending, pendingRename{path: path, deadline: time.Now().Add(w.renameWindow)})
		w.mu.Unlock()
	}
}

// takeRename pops the oldest rename still waiting for its destination.
func (w *Watcher) takeRename() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return "", false
	}
	old := w.pending[0].path
	w.pending = w.pending[1:]
	return old, true
}

// expireRenames turns renames whose destination never appeared (moved out of
// the directory) into removals.
func (w *Watcher) expireRenames(now time.Time) {
	w.mu.Lock()
	var expired []string
	for len(w.pending) > 0 && !now.Before(w.pending[0].deadline) {
		expired = append(expired, w.pending[0].path)
		w.pending = w.pending[1:]
	}
	w.mu.Unlock()

	for _, p := range expired {
		w.emit(Event{Op: Removed, Path: p})
	}
}

func (w *Watcher) emit(ev Event) {
	metrics.WatcherEventsTotal.WithLabelValues(ev.Op.String()).Inc()
	logging.Debug("Watcher event: %s", ev)

	select {
	case w.events <- ev:
	case <-w.done:
	}
}

func (w *Watcher) reportError(err error) {
	metrics.WatcherErrors.Inc()
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		logging.Warn("Watcher event queue overflowed; changes were lost")
	} else {
		logging.Error("Watcher error: %v", err)
	}

	select {
	case w.errors <- err:
	default:
		// a rescan is already owed
	}
}
