package library

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"musiclib/internal/database"
	"musiclib/internal/storage"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher keeps the songs table in step with files deleted from the local
// upload directory behind the service's back.
type Watcher struct {
	db      *database.Database
	dir     string
	isAudio func(string) bool
	logger  *logrus.Logger

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher over dir using the service's database and
// extension whitelist.
func (s *Service) NewWatcher(dir string) *Watcher {
	return &Watcher{
		db:      s.db,
		dir:     dir,
		isAudio: func(name string) bool { return s.cfg.IsExtensionAllowed(filepath.Ext(name)) },
		logger:  s.logger,
	}
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go w.watchFiles(ctx)

	w.logger.WithField("upload_dir", w.dir).Info("File watcher started")
	return nil
}

// Stop closes the watcher and waits for the loop to exit. Safe to call more
// than once.
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	w.cancel()
	w.watcher.Close()
	w.wg.Wait()
	w.watcher = nil
}

func (w *Watcher) watchFiles(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFileEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("File watcher error")
		}
	}
}

// handleFileEvent drops the song row of any audio file removed or renamed
// away. In-flight uploads and hidden files are ignored.
func (w *Watcher) handleFileEvent(ctx context.Context, event fsnotify.Event) {
	fileName := filepath.Base(event.Name)
	if strings.HasPrefix(fileName, ".") || storage.IsTempFile(fileName) || !w.isAudio(fileName) {
		return
	}
	if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	deleted, err := w.db.DeleteSongByPath(ctx, fileName)
	if err != nil {
		w.logger.WithError(err).WithField("file", fileName).Error("Error removing song for deleted file")
		return
	}
	if deleted {
		w.logger.WithField("file", fileName).Info("Removed song whose file was deleted")
	}
}
