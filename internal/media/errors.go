package media

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match with errors.Is; wrapped errors carry the
// path or underlying cause.
var (
	ErrDirectoryNotFound = errors.New("directory not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrCorruptData       = errors.New("corrupt image data")
	ErrIO                = errors.New("i/o error")
	ErrInvalidCropRegion = errors.New("invalid crop region")
	ErrSaveFailed        = errors.New("save failed")
	ErrNotADirectory     = errors.New("not a directory")
	ErrImageNotInListing = errors.New("image not in listing")
)

// ErrorKind is the stable, serializable name of an error category.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindDirectoryNotFound ErrorKind = "directory_not_found"
	KindPermissionDenied  ErrorKind = "permission_denied"
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	KindCorruptData       ErrorKind = "corrupt_data"
	KindIO                ErrorKind = "io_error"
	KindInvalidCropRegion ErrorKind = "invalid_crop_region"
	KindSaveFailed        ErrorKind = "save_failed"
	KindCanceled          ErrorKind = "canceled"
	KindOther             ErrorKind = "other"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrDirectoryNotFound, KindDirectoryNotFound},
	{ErrNotADirectory, KindDirectoryNotFound},
	{ErrPermissionDenied, KindPermissionDenied},
	{ErrUnsupportedFormat, KindUnsupportedFormat},
	{ErrCorruptData, KindCorruptData},
	{ErrInvalidCropRegion, KindInvalidCropRegion},
	{ErrSaveFailed, KindSaveFailed},
	{ErrIO, KindIO},
}

// KindOf classifies err. Unrecognized non-nil errors are KindOther.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindOther
}

// ioError wraps a filesystem failure so it classifies as KindIO while keeping
// the original cause reachable.
func ioError(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
}
