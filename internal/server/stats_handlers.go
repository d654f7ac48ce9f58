package server

import (
	"net/http"

	"musiclib/internal/library"
	"musiclib/pkg/models"
)

type statsResponse struct {
	models.LibraryStats
	TotalStorageDisplay string `json:"total_storage_display"`
}

// handleLibraryStats returns song and playlist totals, storage used and the
// five most played songs.
func (ms *MusicServer) handleLibraryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := ms.db.GetLibraryStats(r.Context())
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving library stats", err)
		return
	}
	ms.respondJSON(w, statsResponse{
		LibraryStats:        *stats,
		TotalStorageDisplay: library.FormatFileSize(stats.TotalStorage),
	})
}
