package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"musiclib/internal/database"
	"musiclib/internal/library"
	"musiclib/pkg/models"
)

// playlistRequest is the body of create and update requests.
type playlistRequest struct {
	Name        *string `json:"name"`
	Description string  `json:"description"`
}

// playlistSongResponse is a playlist entry with the derived song fields.
type playlistSongResponse struct {
	models.PlaylistSong
	FileSizeDisplay string `json:"file_size_display"`
	FileURL         string `json:"file_url"`
}

// playlistDetail is a playlist together with its songs in order.
type playlistDetail struct {
	models.Playlist
	Songs []playlistSongResponse `json:"songs"`
}

// decodePlaylistRequest parses and validates the JSON body.
func (ms *MusicServer) decodePlaylistRequest(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	var req playlistRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Playlist name is required", err)
		return "", "", false
	}

	var name string
	if req.Name != nil {
		name = sanitizeInput(*req.Name)
	}
	if verr := validatePlaylistName(name); verr != nil {
		ms.respondWithValidationError(w, r, verr)
		return "", "", false
	}

	description := sanitizeInput(req.Description)
	if verr := validatePlaylistDescription(description); verr != nil {
		ms.respondWithValidationError(w, r, verr)
		return "", "", false
	}
	return name, description, true
}

// handleGetPlaylists returns all playlists (with song counts) as JSON.
func (ms *MusicServer) handleGetPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := ms.db.GetAllPlaylists(r.Context())
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving playlists", err)
		return
	}
	ms.respondJSON(w, playlists)
}

// handleCreatePlaylist creates a new playlist (POST json name/description).
func (ms *MusicServer) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	name, description, ok := ms.decodePlaylistRequest(w, r)
	if !ok {
		return
	}

	id, err := ms.db.CreatePlaylist(r.Context(), name, description)
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error creating playlist", err)
		return
	}

	ms.respondSuccess(w, "Playlist created successfully", map[string]interface{}{
		"playlist_id": id,
	})
}

// handleGetPlaylist returns the playlist and its songs ordered by position.
func (ms *MusicServer) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	id, verr := parseID(r, "playlistID", "playlist_id")
	if verr != nil {
		ms.respondWithValidationError(w, r, verr)
		return
	}

	playlist, err := ms.db.GetPlaylist(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			ms.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
			return
		}
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving playlist", err)
		return
	}

	songs, err := ms.db.GetPlaylistSongs(r.Context(), id)
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving playlist songs", err)
		return
	}

	detail := playlistDetail{Playlist: *playlist, Songs: make([]playlistSongResponse, 0, len(songs))}
	for _, s := range songs {
		detail.Songs = append(detail.Songs, playlistSongResponse{
			PlaylistSong:    s,
			FileSizeDisplay: library.FormatFileSize(s.FileSize),
			FileURL:         library.FileURL(s.FilePath),
		})
	}
	ms.respondJSON(w, detail)
}

// handleUpdatePlaylist renames a playlist or changes its description.
func (ms *MusicServer) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	id, verr := parseID(r, "playlistID", "playlist_id")
	if verr != nil {
		ms.respondWithValidationError(w, r, verr)
		return
	}

	name, description, ok := ms.decodePlaylistRequest(w, r)
	if !ok {
		return
	}

	updated, err := ms.db.UpdatePlaylist(r.Context(), id, name, description)
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error updating playlist", err)
		return
	}
	if !updated {
		ms.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
		return
	}
	ms.respondSuccess(w, "Playlist updated successfully", nil)
}

func (ms *MusicServer) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id, verr := parseID(r, "playlistID", "playlist_id")
	if verr != nil {
		ms.respondWithValidationError(w, r, verr)
		return
	}

	deleted, err := ms.db.DeletePlaylist(r.Context(), id)
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error deleting playlist", err)
		return
	}
	if !deleted {
		ms.respondWithError(w, r, http.StatusNotFound, "Playlist not found", nil)
		return
	}
	ms.respondSuccess(w, "Playlist deleted successfully", nil)
}

func (ms *MusicServer) handleAddSongToPlaylist(w http.ResponseWriter, r *http.Request) {
	playlistID, verr := parseID(r, "playlistID", "playlist_id")
	if verr != nil {
		ms.respondWithValidationError(w, r, verr)
		return
	}
	songID, verr := parseID(r, "songID", "song_id")
	if verr != nil {
		ms.respondWithValidationError(w, r, verr)
		return
	}

	added, err := ms.db.AddSongToPlaylist(r.Context(), playlistID, songID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			ms.respondWithError(w, r, http.StatusNotFound, "Playlist or song not found", nil)
			return
		}
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error adding song to playlist", err)
		return
	}
	if !added {
		ms.respondWithError(w, r, http.StatusBadRequest, "Song already in playlist", nil)
		return
	}
	ms.respondSuccess(w, "Song added to playlist", nil)
}

func (ms *MusicServer) handleRemoveSongFromPlaylist(w http.ResponseWriter, r *http.Request) {
	playlistID, verr := parseID(r, "playlistID", "playlist_id")
	if verr != nil {
		ms.respondWithValidationError(w, r, verr)
		return
	}
	songID, verr := parseID(r, "songID", "song_id")
	if verr != nil {
		ms.respondWithValidationError(w, r, verr)
		return
	}

	removed, err := ms.db.RemoveSongFromPlaylist(r.Context(), playlistID, songID)
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error removing song from playlist", err)
		return
	}
	if !removed {
		ms.respondWithError(w, r, http.StatusNotFound, "Song not in playlist", nil)
		return
	}
	ms.respondSuccess(w, "Song removed from playlist", nil)
}
