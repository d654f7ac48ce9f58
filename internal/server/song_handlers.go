package server

import (
	"errors"
	"net/http"

	"musiclib/internal/database"
	"musiclib/internal/library"
	"musiclib/internal/storage"
	"musiclib/pkg/models"

	"github.com/sirupsen/logrus"
)

// songResponse is a song plus the fields the browser client derives from it.
type songResponse struct {
	models.Song
	FileSizeDisplay string `json:"file_size_display"`
	FileURL         string `json:"file_url"`
}

func newSongResponse(song models.Song) songResponse {
	return songResponse{
		Song:            song,
		FileSizeDisplay: library.FormatFileSize(song.FileSize),
		FileURL:         library.FileURL(song.FilePath),
	}
}

func newSongResponses(songs []models.Song) []songResponse {
	out := make([]songResponse, 0, len(songs))
	for _, s := range songs {
		out = append(out, newSongResponse(s))
	}
	return out
}

// handleGetSongs lists songs; sort_by and order default to title/ASC.
func (ms *MusicServer) handleGetSongs(w http.ResponseWriter, r *http.Request) {
	col, order := database.SortByTitle, database.Ascending

	if raw := r.URL.Query().Get("sort_by"); raw != "" {
		parsed, ok := database.ParseSortColumn(raw)
		if !ok {
			ms.respondWithValidationError(w, r, &ValidationError{
				Field:   "sort_by",
				Message: "Invalid sort column",
				Code:    "INVALID_SORT_COLUMN",
			})
			return
		}
		col = parsed
	}

	if raw := r.URL.Query().Get("order"); raw != "" {
		parsed, ok := database.ParseSortOrder(raw)
		if !ok {
			ms.respondWithValidationError(w, r, &ValidationError{
				Field:   "order",
				Message: "Order must be ASC or DESC",
				Code:    "INVALID_SORT_ORDER",
			})
			return
		}
		order = parsed
	}

	songs, err := ms.db.GetAllSongs(r.Context(), col, order)
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving songs", err)
		return
	}
	ms.respondJSON(w, newSongResponses(songs))
}

// handleSearchSongs matches q against title, artist and album.
func (ms *MusicServer) handleSearchSongs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if verr := validateSearchQuery(query); verr != nil {
		ms.respondWithValidationError(w, r, verr)
		return
	}

	songs, err := ms.db.SearchSongs(r.Context(), query)
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error searching songs", err)
		return
	}
	ms.respondJSON(w, newSongResponses(songs))
}

func (ms *MusicServer) handleGetSong(w http.ResponseWriter, r *http.Request) {
	id, verr := parseID(r, "songID", "song_id")
	if verr != nil {
		ms.respondWithValidationError(w, r, verr)
		return
	}

	song, err := ms.db.GetSong(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			ms.respondWithError(w, r, http.StatusNotFound, "Song not found", nil)
			return
		}
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving song", err)
		return
	}
	ms.respondJSON(w, newSongResponse(*song))
}

// handleDeleteSong removes the stored file and then the song.
func (ms *MusicServer) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	id, verr := parseID(r, "songID", "song_id")
	if verr != nil {
		ms.respondWithValidationError(w, r, verr)
		return
	}

	if _, err := ms.library.DeleteSongAndFile(r.Context(), id); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			ms.respondWithError(w, r, http.StatusNotFound, "Song not found", nil)
			return
		}
		ms.respondWithError(w, r, http.StatusInternalServerError, "Failed to delete song", err)
		return
	}
	ms.respondSuccess(w, "Song deleted successfully", nil)
}

// handlePlaySong streams the audio with its stored MIME type and counts the
// play. Range and conditional requests are handled by http.ServeContent.
func (ms *MusicServer) handlePlaySong(w http.ResponseWriter, r *http.Request) {
	id, verr := parseID(r, "songID", "song_id")
	if verr != nil {
		ms.respondWithValidationError(w, r, verr)
		return
	}

	song, rc, info, err := ms.library.PlaySong(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, library.ErrNotFound):
			ms.respondWithError(w, r, http.StatusNotFound, "Song not found", nil)
		case errors.Is(err, storage.ErrNotExist):
			ms.respondWithError(w, r, http.StatusNotFound, "File not found on server", err)
		default:
			ms.respondWithError(w, r, http.StatusInternalServerError, "Error streaming song", err)
		}
		return
	}
	defer rc.Close()

	contentType := song.FileType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")

	ms.logger.WithFields(logrus.Fields{
		"song_id": song.ID,
		"title":   song.Title,
		"range":   r.Header.Get("Range"),
	}).Debug("Streaming song")

	http.ServeContent(w, r, song.FilePath, info.ModTime, rc)
}
