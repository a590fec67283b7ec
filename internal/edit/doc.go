// Package edit implements the per-image transform stack behind edit mode.
//
// A Session starts Clean over a decoded bitmap, which it never modifies.
// The first transform moves it to Editing. Every transform pushes a record
// onto the undo stack: rotations and flips are reversed by applying their
// inverse, and a crop restores the bitmap it replaced. Undoing the last
// record returns to Clean with the original bitmap.
//
// Save and SaveAs encode the working bitmap by file extension (JPEG, PNG,
// BMP and TIFF can be written) and replace the target atomically through
// filesystem.WriteFileAtomic. A successful save closes the session as Saved;
// Discard closes it as Discarded. A failed save leaves the session Editing
// with its undo stack intact.
//
// The session shares nothing with the image cache. Committing a save back
// into the cache is the caller's job.
package edit
