// Package navigation holds the directory listing and the cursor into it.
//
// State is single-owner: the viewer's control loop applies user commands
// and watcher deltas to it one at a time, so listing mutations from the two
// sources never race.
//
// Boundary behavior is an Overflow policy fixed by configuration. Clamp
// makes Advance a no-op at either end; Wrap continues from the opposite end.
//
// Every cursor change invokes the OnMove callback with the new Cursor. The
// viewer uses it to reprioritize decodes around the focused entry. Listing
// changes that keep the focused path in place (inserting or removing other
// entries) do not invoke it.
//
// Decode failures are attached per path with SetError so the front end can
// show an error placeholder for that entry only. Overlays are cleared when
// the entry is inserted again, replaced or removed.
package navigation
