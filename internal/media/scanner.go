package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"image-viewer/internal/filesystem"
	"image-viewer/internal/logging"
	"image-viewer/internal/metrics"
)

// ScanOptions controls which entries a scan returns and in what order.
type ScanOptions struct {
	SortField  SortField
	SortOrder  SortOrder
	ShowHidden bool
}

// Scanner lists directories of images. The zero value is not usable; use
// NewScanner.
type Scanner struct {
	retry filesystem.RetryConfig
}

// NewScanner creates a new Scanner instance.
func NewScanner(retry filesystem.RetryConfig) *Scanner {
	return &Scanner{retry: retry}
}

// IsHidden reports whether a file name is hidden by convention.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Scan enumerates the images directly inside dir. Entries whose metadata
// cannot be read are skipped; only a failure to read the directory itself
// fails the scan.
func (s *Scanner) Scan(dir string, opts ScanOptions) (*DirectoryListing, error) {
	start := time.Now()
	var scanErr error
	defer func() {
		status := "success"
		if scanErr != nil {
			status = "error"
		}
		metrics.ScannerOperationsTotal.WithLabelValues(status).Inc()
		metrics.ScannerOperationDuration.Observe(time.Since(start).Seconds())
	}()

	dir, scanErr = filepath.Abs(dir)
	if scanErr != nil {
		return nil, scanErr
	}

	info, err := filesystem.StatWithRetry(dir, s.retry)
	if err != nil {
		scanErr = classifyDirError(dir, err)
		return nil, scanErr
	}
	if !info.IsDir() {
		scanErr = fmt.Errorf("%w: %s", ErrNotADirectory, dir)
		return nil, scanErr
	}

	dirents, err := filesystem.ReadDirentsWithRetry(dir, s.retry)
	if err != nil {
		scanErr = classifyDirError(dir, err)
		return nil, scanErr
	}

	listing := &DirectoryListing{Dir: dir, Entries: make([]ImageEntry, 0, len(dirents))}
	skipped := 0
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		if !opts.ShowHidden && IsHidden(de.Name()) {
			continue
		}

		entry, ok, err := s.EntryFor(filepath.Join(dir, de.Name()), opts.ShowHidden)
		if err != nil {
			logging.Debug("Skipping %s: %v", de.Name(), err)
			skipped++
			continue
		}
		if ok {
			listing.Entries = append(listing.Entries, entry)
		}
	}

	listing.Sort(opts.SortField, opts.SortOrder)

	if skipped > 0 {
		metrics.ScannerEntriesSkipped.Add(float64(skipped))
		logging.Warn("Scan of %s skipped %d unreadable entries", dir, skipped)
	}
	metrics.ScannerEntriesReturned.Observe(float64(len(listing.Entries)))
	logging.Debug("Scanned %s: %d images in %v", dir, len(listing.Entries), time.Since(start))

	return listing, nil
}

// EntryFor builds the listing entry for a single file. ok is false when the
// file exists but is not eligible (directory, hidden, not an image). A file
// is eligible when its extension is recognized or its header sniffs as a
// known image format, so mislabeled files still appear in the listing.
func (s *Scanner) EntryFor(path string, showHidden bool) (ImageEntry, bool, error) {
	name := filepath.Base(path)
	if !showHidden && IsHidden(name) {
		return ImageEntry{}, false, nil
	}

	info, err := filesystem.StatWithRetry(path, s.retry)
	if err != nil {
		return ImageEntry{}, false, err
	}
	if !info.Mode().IsRegular() {
		return ImageEntry{}, false, nil
	}

	format := FormatFromPath(path)
	if format == FormatUnknown {
		header, err := filesystem.ReadHeaderWithRetry(path, SniffLen, s.retry)
		if err != nil {
			return ImageEntry{}, false, err
		}
		format = Sniff(header)
		if format == FormatUnknown {
			return ImageEntry{}, false, nil
		}
	}

	return ImageEntry{
		Path:    path,
		Name:    name,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Format:  format,
	}, true, nil
}

func classifyDirError(dir string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, dir)
	default:
		return ioError(dir, err)
	}
}
