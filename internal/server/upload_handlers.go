package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"musiclib/internal/library"
)

// uploadFormField is the multipart field the client sends the file in.
const uploadFormField = "file"

// handleUploadSong streams the "file" part of a multipart request into the
// library without buffering the whole body in memory.
func (ms *MusicServer) handleUploadSong(w http.ResponseWriter, r *http.Request) {
	maxBytes := ms.config.MaxUploadBytes()
	tooLarge := fmt.Sprintf("File too large. Maximum size is %dMB", ms.config.Server.MaxUploadMB)

	if r.ContentLength > maxBytes {
		ms.respondWithError(w, r, http.StatusRequestEntityTooLarge, tooLarge, nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "No file part", err)
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			ms.respondWithError(w, r, http.StatusBadRequest, "No file part", nil)
			return
		}
		if err != nil {
			if isTooLarge(err) {
				ms.respondWithError(w, r, http.StatusRequestEntityTooLarge, tooLarge, err)
				return
			}
			ms.respondWithError(w, r, http.StatusBadRequest, "Malformed multipart body", err)
			return
		}
		if part.FormName() != uploadFormField {
			part.Close()
			continue
		}

		filename := part.FileName()
		if filename == "" {
			part.Close()
			ms.respondWithError(w, r, http.StatusBadRequest, "No selected file", nil)
			return
		}

		song, err := ms.library.UploadSong(r.Context(), filename, part)
		part.Close()
		if err != nil {
			switch {
			case isTooLarge(err):
				ms.respondWithError(w, r, http.StatusRequestEntityTooLarge, tooLarge, err)
			case errors.Is(err, library.ErrUnsupportedType):
				ms.respondWithError(w, r, http.StatusBadRequest, "File type not allowed", err)
			case errors.Is(err, library.ErrInvalidFilename):
				ms.respondWithError(w, r, http.StatusBadRequest, "Invalid filename", err)
			default:
				ms.respondWithError(w, r, http.StatusInternalServerError, "Internal server error", err)
			}
			return
		}

		ms.respondSuccess(w, "File uploaded successfully", map[string]interface{}{
			"song_id":  song.ID,
			"file_url": library.FileURL(song.FilePath),
			"song":     newSongResponse(*song),
		})
		return
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
