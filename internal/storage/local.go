package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"musiclib/internal/logging"

	"github.com/sirupsen/logrus"
)

// TempPrefix marks in-flight uploads inside the upload directory.
const TempPrefix = ".upload-"

// TempSuffix is the extension of in-flight uploads.
const TempSuffix = ".tmp"

// LocalStore keeps objects as files in a single directory.
type LocalStore struct {
	dir    string
	logger *logrus.Logger
}

// NewLocalStore creates dir if needed and returns a store rooted there.
func NewLocalStore(dir string, logger *logrus.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if dir == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{dir: dir, logger: logger}, nil
}

// Dir returns the directory objects are stored in.
func (s *LocalStore) Dir() string {
	return s.dir
}

// IsTempFile reports whether name is an in-flight upload.
func IsTempFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, TempPrefix) && strings.HasSuffix(base, TempSuffix)
}

// linkFile is os.Link; tests replace it to simulate filesystems without
// hard links.
var linkFile = os.Link

// Create writes r to a temp file, syncs it and then links it into place.
func (s *LocalStore) Create(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}
	target := filepath.Join(s.dir, name)
	if _, err := os.Stat(target); err == nil {
		return 0, fmt.Errorf("%s: %w", name, ErrExists)
	}

	tmp, err := os.CreateTemp(s.dir, TempPrefix+"*"+TempSuffix)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful link or rename

	written, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", name, err)
	}

	// Link refuses to replace an existing file, which makes the publish
	// exclusive. Filesystems without hard links claim the name with O_EXCL
	// first and then rename over the claim.
	if err := linkFile(tmpName, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, fmt.Errorf("%s: %w", name, ErrExists)
		}
		if err := publishByRename(tmpName, target); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return 0, fmt.Errorf("%s: %w", name, ErrExists)
			}
			return 0, fmt.Errorf("failed to publish %s: %w", name, err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"file":  name,
		"bytes": written,
	}).Debug("Stored file")
	return written, nil
}

// publishByRename moves tmpName to target without ever replacing a file
// that was not created here.
func publishByRename(tmpName, target string) error {
	claim, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	claim.Close()
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(target)
		return err
	}
	return nil
}

// Open opens the file for reading.
func (s *LocalStore) Open(ctx context.Context, name string) (io.ReadSeekCloser, Info, error) {
	if err := validateName(name); err != nil {
		return nil, Info{}, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Info{}, fmt.Errorf("%s: %w", name, ErrNotExist)
		}
		return nil, Info{}, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Info{}, err
	}
	if stat.IsDir() {
		f.Close()
		return nil, Info{}, fmt.Errorf("%s: %w", name, ErrNotExist)
	}
	return f, Info{Name: name, Size: stat.Size(), ModTime: stat.ModTime()}, nil
}

// Remove deletes the file. A missing file is fine.
func (s *LocalStore) Remove(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether the file is present.
func (s *LocalStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	_, err := os.Stat(filepath.Join(s.dir, name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Ping checks the upload directory is still there.
func (s *LocalStore) Ping(ctx context.Context) error {
	stat, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !stat.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}
