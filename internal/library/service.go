// Package library coordinates the blob store with the song repository so
// that a song row only ever points at bytes that were fully written.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"musiclib/internal/config"
	"musiclib/internal/database"
	"musiclib/internal/logging"
	"musiclib/internal/metadata"
	"musiclib/internal/storage"
	"musiclib/pkg/models"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// maxNameAttempts bounds the _<n> suffixes tried for one upload.
const maxNameAttempts = 100

// Service implements song upload, deletion and playback on top of a
// Database and a Store.
type Service struct {
	db         *database.Database
	store      storage.Store
	prober     metadata.Prober
	cfg        config.MusicConfig
	logger     *logrus.Logger
	now        func() time.Time
	stagingDir string
}

// NewService creates a Service. A nil prober means the stub prober built
// from cfg; HeaderProber is used instead when cfg.ProbeMetadata is set.
func NewService(db *database.Database, store storage.Store, prober metadata.Prober, cfg config.MusicConfig, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	if prober == nil {
		stub := metadata.NewStubProber(cfg.DefaultArtist, cfg.DefaultDurationSeconds)
		if cfg.ProbeMetadata {
			prober = metadata.NewHeaderProber(stub, logger)
		} else {
			prober = stub
		}
	}
	return &Service{
		db:     db,
		store:  store,
		prober: prober,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// UploadSong stores the bytes read from r under a unique sanitized name and
// records the song. The file is durable before the row is inserted, and a
// failed insert removes the file again.
func (s *Service) UploadSong(ctx context.Context, rawFilename string, r io.Reader) (*models.Song, error) {
	if rawFilename == "" {
		return nil, ErrInvalidFilename
	}
	if _, rawExt := splitExt(rawFilename); !s.cfg.IsExtensionAllowed(rawExt) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, rawFilename)
	}

	safe := SecureFilename(rawFilename)
	base, ext := splitExt(safe)
	if base == "" || !s.cfg.IsExtensionAllowed(ext) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilename, rawFilename)
	}

	staged, err := s.stage(ctx, r, ext)
	if err != nil {
		return nil, err
	}
	defer func() {
		staged.Close()
		os.Remove(staged.Name())
	}()

	info, err := s.prober.Probe(staged.Name())
	if err != nil {
		s.logger.WithError(err).WithField("file", safe).Warn("Failed to probe upload, using defaults")
		info, _ = metadata.NewStubProber(s.cfg.DefaultArtist, s.cfg.DefaultDurationSeconds).Probe(staged.Name())
	}

	name, size, err := s.publish(ctx, base, ext, staged)
	if err != nil {
		return nil, err
	}

	title := info.Title
	if title == "" {
		title = titleFromBase(base)
	}

	id, err := s.db.AddSong(ctx, models.Song{
		Title:    title,
		Artist:   info.Artist,
		Album:    info.Album,
		Duration: info.Duration,
		FilePath: name,
		FileSize: size,
		FileType: metadata.ContentType(ext),
	})
	if err != nil {
		if rmErr := s.store.Remove(context.WithoutCancel(ctx), name); rmErr != nil {
			s.logger.WithError(rmErr).WithField("file", name).Error("Failed to remove file after insert failure")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"song_id": id,
		"file":    name,
		"size":    humanize.IBytes(uint64(size)),
	}).Info("Song uploaded")

	return s.db.GetSong(ctx, id)
}

// stage copies the upload into a local temp file so it can be probed and
// replayed if the first stored name is taken. The temp file keeps ext since
// probers pick the decoder by extension.
func (s *Service) stage(ctx context.Context, r io.Reader, ext string) (*os.File, error) {
	staged, err := os.CreateTemp(s.stagingDir, "musiclib-upload-*"+ext)
	if err != nil {
		return nil, &StorageError{Op: "stage", Err: err}
	}

	if _, err := io.Copy(staged, readerWithContext(ctx, r)); err != nil {
		staged.Close()
		os.Remove(staged.Name())
		return nil, &StorageError{Op: "stage", Err: err}
	}
	return staged, nil
}

// publish stores staged under base_<ts>ext, adding _<n> while the name is
// taken. It returns the chosen name and the number of bytes stored.
func (s *Service) publish(ctx context.Context, base, ext string, staged *os.File) (string, int64, error) {
	ts := s.now().Unix()
	for n := 0; n < maxNameAttempts; n++ {
		name := storedName(base, ts, n, ext)
		if _, err := staged.Seek(0, io.SeekStart); err != nil {
			return "", 0, &StorageError{Op: "stage", Err: err}
		}

		size, err := s.store.Create(ctx, name, staged)
		if errors.Is(err, storage.ErrExists) {
			continue
		}
		if err != nil {
			return "", 0, &StorageError{Op: "store", Name: name, Err: err}
		}
		return name, size, nil
	}
	return "", 0, &StorageError{Op: "store", Name: storedName(base, ts, 0, ext), Err: storage.ErrExists}
}

// DeleteSongAndFile removes the stored file and then the song row. When the
// file cannot be removed the row is left alone. It returns ErrNotFound for
// an unknown id.
func (s *Service) DeleteSongAndFile(ctx context.Context, id int64) (bool, error) {
	song, err := s.db.GetSong(ctx, id)
	if err != nil {
		return false, err
	}

	if err := s.store.Remove(ctx, song.FilePath); err != nil {
		return false, &StorageError{Op: "remove", Name: song.FilePath, Err: err}
	}

	// The watcher may have dropped the row already after seeing the file go.
	if _, err := s.db.DeleteSong(ctx, id); err != nil {
		return false, err
	}

	s.logger.WithFields(logrus.Fields{
		"song_id": id,
		"file":    song.FilePath,
	}).Info("Song deleted")
	return true, nil
}

// OpenSongFile opens the stored bytes of song.
func (s *Service) OpenSongFile(ctx context.Context, song *models.Song) (io.ReadSeekCloser, storage.Info, error) {
	rc, info, err := s.store.Open(ctx, song.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, storage.Info{}, err
		}
		return nil, storage.Info{}, &StorageError{Op: "open", Name: song.FilePath, Err: err}
	}
	return rc, info, nil
}

// PlaySong opens a song for streaming and counts the play. Every successful
// open counts, including range requests from the same player.
func (s *Service) PlaySong(ctx context.Context, id int64) (*models.Song, io.ReadSeekCloser, storage.Info, error) {
	song, err := s.db.GetSong(ctx, id)
	if err != nil {
		return nil, nil, storage.Info{}, err
	}

	rc, info, err := s.OpenSongFile(ctx, song)
	if err != nil {
		return nil, nil, storage.Info{}, err
	}

	if err := s.db.UpdatePlayCount(ctx, id); err != nil {
		rc.Close()
		return nil, nil, storage.Info{}, err
	}
	return song, rc, info, nil
}

// Store returns the underlying blob store.
func (s *Service) Store() storage.Store {
	return s.store
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return contextReader{ctx: ctx, r: r}
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
