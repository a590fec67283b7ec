// Package watcher turns fsnotify events for one directory into listing
// deltas.
//
// A Watcher observes a single directory at a time. Raw fsnotify operations
// are normalized into four kinds:
//
//   - Created: a file appeared in the directory
//   - Removed: a file was deleted, or moved out of the directory
//   - Modified: a file's contents were written
//   - Renamed: a file was renamed within the directory
//
// fsnotify reports a rename as Rename on the old name followed by Create on
// the new one. The watcher holds the Rename for a short window (100ms by
// default) and pairs it with the next Create; an unpaired Rename becomes
// Removed. A wrong pairing is harmless because consumers handle Renamed as
// Removed followed by Created.
//
// Subdirectories, hidden files (unless enabled) and Chmod events are ignored.
//
// # Errors
//
// Kernel queue overflows and other subscription failures are sent on
// Errors. The listing may then be stale and should be rescanned.
//
// # Usage
//
//	w, err := watcher.New(watcher.Options{})
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	if err := w.Watch(dir); err != nil {
//	    return err
//	}
//	for ev := range w.Events() {
//	    // apply ev to the listing
//	}
package watcher
