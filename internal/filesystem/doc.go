/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

# Purpose

Image directories are frequently network mounts. This package wraps the reads the
viewer performs (stat, open, whole-file read, header sniff, directory listing) with
retry logic for ESTALE, and provides an atomic write used when saving edits.

# Usage

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

	data, err := filesystem.ReadFileWithRetry(path, filesystem.DefaultRetryConfig())

	dirents, err := filesystem.ReadDirentsWithRetry(dir, filesystem.DefaultRetryConfig())

	err := filesystem.WriteFileAtomic(path, func(w io.Writer) error {
	    return png.Encode(w, img)
	})

# Retry Behavior

Defaults: 3 retries, 50ms initial backoff doubling up to 500ms. Only ESTALE
triggers a retry; every other error is returned immediately.

# Metrics

Operations report to the package-level [Observer], installed at startup with
[SetObserver]. The metrics package provides the Prometheus implementation.
Without an observer nothing is recorded.
*/
package filesystem
