package server

import (
	"errors"
	"net/http"
	"path/filepath"

	"musiclib/internal/metadata"
	"musiclib/internal/storage"

	"github.com/go-chi/chi/v5"
)

// handleHome serves the browser client.
func (ms *MusicServer) handleHome(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(ms.config.Server.StaticDir, "index.html"))
}

func (ms *MusicServer) staticHandler() http.Handler {
	return http.StripPrefix("/static/", http.FileServer(http.Dir(ms.config.Server.StaticDir)))
}

// handleUploadedFile serves a stored file by name through whichever storage
// backend is configured.
func (ms *MusicServer) handleUploadedFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")

	rc, info, err := ms.library.Store().Open(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotExist), errors.Is(err, storage.ErrInvalidName):
			ms.respondWithError(w, r, http.StatusNotFound, "File not found", nil)
		default:
			ms.respondWithError(w, r, http.StatusInternalServerError, "Error opening file", err)
		}
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", metadata.ContentTypeForFile(name))
	http.ServeContent(w, r, name, info.ModTime, rc)
}
