// Package filesystem provides filesystem access with retry logic for network mounts
package filesystem

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"image-viewer/internal/logging"

	"github.com/karrick/godirwalk"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isNFSStaleError checks if an error is an NFS stale file handle error
func isNFSStaleError(err error) bool {
	if err == nil {
		return false
	}

	// ESTALE is errno 116 on Linux
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}

	return false
}

// withRetry runs fn, retrying only on stale file handle errors with
// exponential backoff capped at MaxBackoff.
func withRetry(op, path string, config RetryConfig, fn func() error) error {
	start := time.Now()
	obs := observe()
	backoff := config.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("Filesystem %s succeeded on retry %d for %s", op, attempt, path)
				obs.ObserveRetrySuccess(op)
			}
			obs.ObserveOperation(op, time.Since(start).Seconds(), nil)
			return nil
		}

		lastErr = err

		if !isNFSStaleError(err) {
			obs.ObserveOperation(op, time.Since(start).Seconds(), err)
			return err
		}

		obs.ObserveStaleError(op)

		if attempt < config.MaxRetries {
			obs.ObserveRetryAttempt(op)
			logging.Debug("Filesystem %s stale file handle for %s, retrying in %v (attempt %d/%d)",
				op, path, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("Filesystem %s failed after %d retries for %s: %v", op, config.MaxRetries, path, lastErr)
	obs.ObserveRetryFailure(op)
	obs.ObserveOperation(op, time.Since(start).Seconds(), lastErr)
	return lastErr
}

// StatWithRetry performs os.Stat with retry logic for NFS stale file handle errors
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := withRetry("stat", path, config, func() error {
		var err error
		info, err = os.Stat(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// OpenWithRetry performs os.Open with retry logic for NFS stale file handle errors
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	var file *os.File
	err := withRetry("open", path, config, func() error {
		var err error
		file, err = os.Open(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// ReadFileWithRetry reads a whole file, retrying on stale file handles
func ReadFileWithRetry(path string, config RetryConfig) ([]byte, error) {
	var data []byte
	err := withRetry("read", path, config, func() error {
		var err error
		data, err = os.ReadFile(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ReadHeaderWithRetry reads at most n bytes from the start of a file.
// A file shorter than n yields the bytes that exist.
func ReadHeaderWithRetry(path string, n int, config RetryConfig) ([]byte, error) {
	f, err := OpenWithRetry(path, config)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close %s: %v", path, err)
		}
	}()

	header := make([]byte, n)
	read, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return header[:read], nil
}

// ReadDirentsWithRetry lists the immediate children of a directory
func ReadDirentsWithRetry(dir string, config RetryConfig) (godirwalk.Dirents, error) {
	var dirents godirwalk.Dirents
	err := withRetry("readdir", dir, config, func() error {
		var err error
		dirents, err = godirwalk.ReadDirents(dir, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dirents, nil
}

// WriteFileAtomic writes data produced by write into a temporary file next to
// path and renames it into place, so readers never observe a partial file.
func WriteFileAtomic(path string, write func(io.Writer) error) error {
	start := time.Now()
	obs := observe()

	err := writeFileAtomic(path, write)
	obs.ObserveOperation("write", time.Since(start).Seconds(), err)
	return err
}

func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if info, err := os.Stat(path); err == nil {
		if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
			logging.Debug("failed to copy permissions onto %s: %v", tmpPath, err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
