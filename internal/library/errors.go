package library

import (
	"errors"
	"fmt"

	"musiclib/internal/database"
)

var (
	// ErrNotFound is the repository's not-found error, re-exported so callers
	// of the service need not import the database package.
	ErrNotFound = database.ErrNotFound
	// ErrUnsupportedType is returned for extensions outside the allowed set.
	ErrUnsupportedType = errors.New("file type not allowed")
	// ErrInvalidFilename is returned when nothing usable is left of the
	// client's filename after sanitising.
	ErrInvalidFilename = errors.New("invalid filename")
)

// StorageError reports a failure of the blob store or of staging an upload.
type StorageError struct {
	Op   string // "stage", "store", "remove" or "open"
	Name string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
