package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"musiclib/pkg/models"

	"github.com/sirupsen/logrus"
)

const playlistColumns = `id, name, description, created_at, song_count`

// CreatePlaylist inserts a new, empty playlist and returns its ID.
func (db *Database) CreatePlaylist(ctx context.Context, name, description string) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `
		INSERT INTO playlists (name, description, created_at, song_count)
		VALUES (?, ?, ?, 0)`, name, description, db.now())
	if err != nil {
		return 0, fmt.Errorf("failed to create playlist: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// GetPlaylist returns a single playlist, or ErrNotFound.
func (db *Database) GetPlaylist(ctx context.Context, id int64) (*models.Playlist, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, id)
	playlist, err := scanPlaylist(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("playlist %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return playlist, nil
}

// GetAllPlaylists returns all playlists ordered by name.
func (db *Database) GetAllPlaylists(ctx context.Context) ([]models.Playlist, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+playlistColumns+` FROM playlists ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	playlists := []models.Playlist{}
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, *playlist)
	}
	return playlists, rows.Err()
}

// UpdatePlaylist changes a playlist's name and description. It reports
// whether the playlist exists.
func (db *Database) UpdatePlaylist(ctx context.Context, id int64, name, description string) (bool, error) {
	result, err := db.conn.ExecContext(ctx, `
		UPDATE playlists SET name = ?, description = ? WHERE id = ?`,
		name, description, id)
	if err != nil {
		return false, fmt.Errorf("failed to update playlist: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeletePlaylist deletes the playlist; its memberships go with it through the
// foreign key cascade. It reports whether a playlist row was deleted.
func (db *Database) DeletePlaylist(ctx context.Context, id int64) (bool, error) {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		db.logger.WithError(err).WithField("playlist_id", id).Error("Failed to delete playlist")
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// AddSongToPlaylist appends a song to the end of a playlist and bumps its
// song count. It returns false without changing anything when the song is
// already in the playlist, and ErrNotFound when either side does not exist.
func (db *Database) AddSongToPlaylist(ctx context.Context, playlistID, songID int64) (bool, error) {
	var added bool
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if ok, err := existsTx(ctx, tx, `SELECT 1 FROM playlists WHERE id = ?`, playlistID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("playlist %d: %w", playlistID, ErrNotFound)
		}
		if ok, err := existsTx(ctx, tx, `SELECT 1 FROM songs WHERE id = ?`, songID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("song %d: %w", songID, ErrNotFound)
		}

		duplicate, err := existsTx(ctx, tx, `
			SELECT 1 FROM playlist_songs WHERE playlist_id = ? AND song_id = ?`,
			playlistID, songID)
		if err != nil {
			return err
		}
		if duplicate {
			return nil
		}

		var position int
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(position), 0) + 1
			FROM playlist_songs WHERE playlist_id = ?`, playlistID).Scan(&position); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO playlist_songs (playlist_id, song_id, position, added_at)
			VALUES (?, ?, ?, ?)`, playlistID, songID, position, db.now()); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE playlists SET song_count = song_count + 1 WHERE id = ?`, playlistID); err != nil {
			return err
		}

		added = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			db.logger.WithError(err).WithFields(logrus.Fields{
				"playlist_id": playlistID,
				"song_id":     songID,
			}).Error("Failed to add song to playlist")
		}
		return false, err
	}
	return added, nil
}

// RemoveSongFromPlaylist removes a song from a playlist, decrements the song
// count and closes the gap in positions. It returns false when the song was
// not in the playlist.
func (db *Database) RemoveSongFromPlaylist(ctx context.Context, playlistID, songID int64) (bool, error) {
	var removed bool
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		removed, err = removeMembershipTx(ctx, tx, playlistID, songID)
		return err
	})
	if err != nil {
		db.logger.WithError(err).WithFields(logrus.Fields{
			"playlist_id": playlistID,
			"song_id":     songID,
		}).Error("Failed to remove song from playlist")
		return false, err
	}
	return removed, nil
}

// removeMembershipTx deletes one membership row and shifts later positions
// down by one so the playlist stays numbered 1..song_count.
func removeMembershipTx(ctx context.Context, tx *sql.Tx, playlistID, songID int64) (bool, error) {
	var position int
	err := tx.QueryRowContext(ctx, `
		SELECT position FROM playlist_songs
		WHERE playlist_id = ? AND song_id = ?`, playlistID, songID).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM playlist_songs
		WHERE playlist_id = ? AND song_id = ?`, playlistID, songID); err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE playlists SET song_count = song_count - 1 WHERE id = ?`, playlistID); err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE playlist_songs
		SET position = position - 1
		WHERE playlist_id = ? AND position > ?`, playlistID, position); err != nil {
		return false, err
	}

	return true, nil
}

// GetPlaylistSongs returns the songs of a playlist ordered by position.
func (db *Database) GetPlaylistSongs(ctx context.Context, playlistID int64) ([]models.PlaylistSong, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT s.id, s.title, s.artist, s.album, s.duration, s.file_path, s.file_size,
		       s.file_type, s.uploaded_at, s.play_count, s.last_played,
		       ps.position, ps.added_at
		FROM songs s
		JOIN playlist_songs ps ON s.id = ps.song_id
		WHERE ps.playlist_id = ?
		ORDER BY ps.position ASC`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	songs := []models.PlaylistSong{}
	for rows.Next() {
		var entry models.PlaylistSong
		var addedAt sql.NullTime
		song, err := scanSong(playlistSongScanner{rows: rows, position: &entry.Position, addedAt: &addedAt})
		if err != nil {
			return nil, err
		}
		entry.Song = *song
		if addedAt.Valid {
			entry.AddedAt = addedAt.Time
		}
		songs = append(songs, entry)
	}
	return songs, rows.Err()
}

// playlistSongScanner appends the membership columns to a song scan.
type playlistSongScanner struct {
	rows     *sql.Rows
	position *int
	addedAt  *sql.NullTime
}

func (s playlistSongScanner) Scan(dest ...any) error {
	return s.rows.Scan(append(dest, s.position, s.addedAt)...)
}

func existsTx(ctx context.Context, tx *sql.Tx, query string, args ...any) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanPlaylist(row rowScanner) (*models.Playlist, error) {
	var playlist models.Playlist
	var description sql.NullString
	var createdAt sql.NullTime
	var songCount sql.NullInt64

	if err := row.Scan(&playlist.ID, &playlist.Name, &description, &createdAt, &songCount); err != nil {
		return nil, err
	}
	playlist.Description = nullStringValue(description)
	playlist.SongCount = int(nullInt64Value(songCount))
	if createdAt.Valid {
		playlist.CreatedAt = createdAt.Time
	}
	return &playlist, nil
}
