package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// respondWithValidationError sends a 400 with the same body shape as
// respondWithError plus the failing field and code.
func (ms *MusicServer) respondWithValidationError(w http.ResponseWriter, r *http.Request, verr *ValidationError) {
	ms.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"field":  verr.Field,
		"reason": verr.Code,
	}).Warn("Validation failed")

	ms.respondJSONStatus(w, http.StatusBadRequest, map[string]interface{}{
		"error":   verr.Message,
		"code":    http.StatusBadRequest,
		"field":   verr.Field,
		"reason":  verr.Code,
		"success": false,
	})
}

// respondWithError sends a structured error response
func (ms *MusicServer) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logEntry := ms.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"message":     message,
	})

	if err != nil {
		logEntry = logEntry.WithError(err)
	}

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	ms.respondJSONStatus(w, statusCode, map[string]interface{}{
		"error":   message,
		"code":    statusCode,
		"success": false,
	})
}

// respondJSON writes v with status 200.
func (ms *MusicServer) respondJSON(w http.ResponseWriter, v interface{}) {
	ms.respondJSONStatus(w, http.StatusOK, v)
}

func (ms *MusicServer) respondJSONStatus(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ms.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// respondSuccess sends {"success": true, "message": ...} plus extra fields.
func (ms *MusicServer) respondSuccess(w http.ResponseWriter, message string, extra map[string]interface{}) {
	body := map[string]interface{}{
		"success": true,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	ms.respondJSON(w, body)
}

// parseID reads a positive integer URL parameter.
func parseID(r *http.Request, param, field string) (int64, *ValidationError) {
	raw := chi.URLParam(r, param)
	if raw == "" {
		return 0, &ValidationError{
			Field:   field,
			Message: "ID is required",
			Code:    "MISSING_ID",
		}
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &ValidationError{
			Field:   field,
			Message: "ID must be a valid integer",
			Code:    "INVALID_ID_FORMAT",
		}
	}

	if id <= 0 {
		return 0, &ValidationError{
			Field:   field,
			Message: "ID must be positive",
			Code:    "INVALID_ID_VALUE",
		}
	}

	return id, nil
}

// validateSearchQuery validates search query parameters
func validateSearchQuery(query string) *ValidationError {
	if len(query) > 1000 {
		return &ValidationError{
			Field:   "q",
			Message: "Search query too long (max 1000 characters)",
			Code:    "SEARCH_QUERY_TOO_LONG",
		}
	}

	if strings.Contains(query, "\x00") {
		return &ValidationError{
			Field:   "q",
			Message: "Search query contains invalid characters",
			Code:    "INVALID_SEARCH_CHARACTERS",
		}
	}

	return nil
}

// validatePlaylistName validates playlist name
func validatePlaylistName(name string) *ValidationError {
	if name == "" {
		return &ValidationError{
			Field:   "name",
			Message: "Playlist name is required",
			Code:    "MISSING_PLAYLIST_NAME",
		}
	}

	if len(name) > 255 {
		return &ValidationError{
			Field:   "name",
			Message: "Playlist name too long (max 255 characters)",
			Code:    "PLAYLIST_NAME_TOO_LONG",
		}
	}

	if strings.ContainsAny(name, "\x00\n\r") {
		return &ValidationError{
			Field:   "name",
			Message: "Playlist name contains invalid characters",
			Code:    "INVALID_PLAYLIST_NAME_CHARACTERS",
		}
	}

	return nil
}

// validatePlaylistDescription validates playlist description
func validatePlaylistDescription(description string) *ValidationError {
	if len(description) > 1000 {
		return &ValidationError{
			Field:   "description",
			Message: "Playlist description too long (max 1000 characters)",
			Code:    "PLAYLIST_DESCRIPTION_TOO_LONG",
		}
	}

	return nil
}

// sanitizeInput removes null bytes and trims whitespace.
func sanitizeInput(input string) string {
	return strings.TrimSpace(strings.ReplaceAll(input, "\x00", ""))
}
