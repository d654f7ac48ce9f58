// Package storage holds the bytes of uploaded songs. The database only records
// the object name; a Store maps that name to data on disk or in a bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"musiclib/internal/config"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNotExist is returned when an object is missing.
	ErrNotExist = errors.New("object does not exist")
	// ErrExists is returned by Create when the name is already taken.
	ErrExists = errors.New("object already exists")
	// ErrInvalidName is returned for names that are not a single path element.
	ErrInvalidName = errors.New("invalid object name")
)

// Info describes a stored object.
type Info struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store is a flat namespace of immutable audio objects.
type Store interface {
	// Create writes r under name and returns the number of bytes stored.
	// The object becomes visible only once all bytes are durable; on error
	// nothing is left behind. Fails with ErrExists if name is taken.
	Create(ctx context.Context, name string, r io.Reader) (int64, error)
	// Open returns a seekable reader for name, or ErrNotExist.
	Open(ctx context.Context, name string) (io.ReadSeekCloser, Info, error)
	// Remove deletes name. Removing a missing object is not an error.
	Remove(ctx context.Context, name string) error
	// Exists reports whether name is stored.
	Exists(ctx context.Context, name string) (bool, error)
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
}

// New builds the Store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.UploadDir, logger)
	case "minio":
		return NewMinioStore(ctx, cfg.Minio, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
