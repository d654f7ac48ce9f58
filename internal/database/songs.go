package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"musiclib/pkg/models"
)

const songColumns = `id, title, artist, album, duration, file_path, file_size, file_type, uploaded_at, play_count, last_played`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// AddSong inserts a new song with a zero play count and returns its ID.
// Only ID-independent fields of song are used.
func (db *Database) AddSong(ctx context.Context, song models.Song) (int64, error) {
	artist := song.Artist
	if artist == "" {
		artist = models.DefaultArtist
	}

	result, err := db.conn.ExecContext(ctx, `
		INSERT INTO songs (title, artist, album, duration, file_path, file_size, file_type, uploaded_at, play_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		song.Title, artist, song.Album, song.Duration, song.FilePath, song.FileSize, song.FileType, db.now())
	if err != nil {
		db.logger.WithError(err).WithField("file_path", song.FilePath).Error("Failed to insert song")
		return 0, fmt.Errorf("failed to insert song: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// GetSong returns a single song by its ID, or ErrNotFound.
func (db *Database) GetSong(ctx context.Context, id int64) (*models.Song, error) {
	song, err := scanSong(db.getSongByIDStmt.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("song %d: %w", id, ErrNotFound)
		}
		db.logger.WithError(err).WithField("song_id", id).Error("Failed to get song by ID")
		return nil, err
	}
	return song, nil
}

// GetSongByPath returns the song stored under filePath, or ErrNotFound.
func (db *Database) GetSongByPath(ctx context.Context, filePath string) (*models.Song, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+songColumns+` FROM songs WHERE file_path = ?`, filePath)
	song, err := scanSong(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("song with path %q: %w", filePath, ErrNotFound)
		}
		return nil, err
	}
	return song, nil
}

// GetAllSongs returns every song ordered by the given column and direction.
func (db *Database) GetAllSongs(ctx context.Context, col SortColumn, order SortOrder) ([]models.Song, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+songColumns+` FROM songs `+orderByClause(col, order))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSongRows(rows)
}

// SearchSongs performs a case-insensitive substring search over title, artist
// and album. The query is matched literally; an empty query matches nothing.
func (db *Database) SearchSongs(ctx context.Context, query string) ([]models.Song, error) {
	if query == "" {
		return []models.Song{}, nil
	}

	pattern := "%" + escapeLike(query) + "%"
	rows, err := db.searchSongsStmt.QueryContext(ctx, pattern, pattern, pattern)
	if err != nil {
		db.logger.WithError(err).WithField("query", query).Error("Failed to search songs")
		return nil, err
	}
	defer rows.Close()
	return scanSongRows(rows)
}

// UpdatePlayCount increments the play counter and stamps last_played. A
// missing song is not an error.
func (db *Database) UpdatePlayCount(ctx context.Context, id int64) error {
	if _, err := db.updatePlayCountStmt.ExecContext(ctx, db.now(), id); err != nil {
		db.logger.WithError(err).WithField("song_id", id).Error("Failed to update play count")
		return err
	}
	return nil
}

// DeleteSong removes the song from every playlist (keeping their counts and
// positions consistent) and deletes the song row. It reports whether a song
// row was deleted. Stored files are not touched.
func (db *Database) DeleteSong(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		deleted, err = deleteSongTx(ctx, tx, id)
		return err
	})
	if err != nil {
		db.logger.WithError(err).WithField("song_id", id).Error("Failed to delete song")
		return false, err
	}
	return deleted, nil
}

// DeleteSongByPath is DeleteSong keyed by the stored filename.
func (db *Database) DeleteSongByPath(ctx context.Context, filePath string) (bool, error) {
	var deleted bool
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM songs WHERE file_path = ?`, filePath).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		deleted, err = deleteSongTx(ctx, tx, id)
		return err
	})
	if err != nil {
		db.logger.WithError(err).WithField("file_path", filePath).Error("Failed to delete song by path")
		return false, err
	}
	return deleted, nil
}

func deleteSongTx(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT playlist_id FROM playlist_songs WHERE song_id = ?`, id)
	if err != nil {
		return false, err
	}
	var playlistIDs []int64
	for rows.Next() {
		var playlistID int64
		if err := rows.Scan(&playlistID); err != nil {
			rows.Close()
			return false, err
		}
		playlistIDs = append(playlistIDs, playlistID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return false, err
	}
	rows.Close()

	for _, playlistID := range playlistIDs {
		if _, err := removeMembershipTx(ctx, tx, playlistID, id); err != nil {
			return false, err
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// escapeLike escapes LIKE wildcards so the query matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanSong(row rowScanner) (*models.Song, error) {
	var song models.Song
	var artist, album, fileType sql.NullString
	var duration, fileSize, playCount sql.NullInt64
	var uploadedAt, lastPlayed sql.NullTime

	if err := row.Scan(&song.ID, &song.Title, &artist, &album, &duration,
		&song.FilePath, &fileSize, &fileType, &uploadedAt, &playCount, &lastPlayed); err != nil {
		return nil, err
	}

	song.Artist = nullStringValue(artist)
	song.Album = nullStringValue(album)
	song.FileType = nullStringValue(fileType)
	song.Duration = int(nullInt64Value(duration))
	song.FileSize = nullInt64Value(fileSize)
	song.PlayCount = int(nullInt64Value(playCount))
	if uploadedAt.Valid {
		song.UploadedAt = uploadedAt.Time
	}
	if lastPlayed.Valid {
		t := lastPlayed.Time
		song.LastPlayed = &t
	}
	return &song, nil
}

// scanSongRows scans song result sets. Callers must have already deferred
// rows.Close(). The result is never nil so it encodes as an empty JSON list.
func scanSongRows(rows *sql.Rows) ([]models.Song, error) {
	songs := []models.Song{}
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, *song)
	}
	return songs, rows.Err()
}
