/*
Package viewer ties the scanner, decode pool, image cache, directory watcher,
navigation state and edit session together behind one command surface.

A Viewer owns a single control goroutine. Every public method is a command
executed on it, and watcher events and decode completions are fed through the
same loop, so listing, cursor and edit state never need their own locks.

# Usage

	v, err := viewer.New(viewer.DefaultConfig())
	if err != nil {
		return err
	}
	defer v.Close()

	events, unsubscribe := v.Subscribe(0)
	defer unsubscribe()

	if _, err := v.OpenDirectory("/photos"); err != nil {
		return err
	}
	r, _ := v.GetDisplayImage(0)
	if r.Status == cache.StatusPending {
		// an EventImage follows on events once the decode finishes
	}

# Prefetch

Each cursor move reprioritizes queued decodes, cancels background work for
entries that left the prefetch window, and queues the focused image, its
immediate neighbors and the thumbnails inside the window.

# Editing

Transforms open an edit session on the focused image when none exists. While
the session is open, GetDisplayImage returns its working bitmap. Moving the
cursor to another image discards the session. Save writes the file
atomically and seeds the cache with the saved pixels.
*/
package viewer
