package models

import "time"

// DefaultArtist is stored when an upload carries no artist information.
const DefaultArtist = "Unknown Artist"

// Song represents one uploaded audio file in the library
type Song struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	Artist     string     `json:"artist"`
	Album      string     `json:"album"`
	Duration   int        `json:"duration"` // in seconds
	FilePath   string     `json:"file_path"` // stored filename, relative to the store
	FileSize   int64      `json:"file_size"`
	FileType   string     `json:"file_type"`
	UploadedAt time.Time  `json:"uploaded_at"`
	PlayCount  int        `json:"play_count"`
	LastPlayed *time.Time `json:"last_played"`
}

// Playlist represents a user-created playlist
type Playlist struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	SongCount   int       `json:"song_count"`
}

// PlaylistSong is a song as it appears inside a playlist
type PlaylistSong struct {
	Song
	Position int       `json:"position"`
	AddedAt  time.Time `json:"added_at"`
}

// PlayedSong is the reduced view used by the most-played rollup
type PlayedSong struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	PlayCount int    `json:"play_count"`
}

// LibraryStats aggregates library-wide counters
type LibraryStats struct {
	TotalSongs     int          `json:"total_songs"`
	TotalPlaylists int          `json:"total_playlists"`
	TotalStorage   int64        `json:"total_storage"`
	MostPlayed     []PlayedSong `json:"most_played"`
}
