package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaVersion is stored in PRAGMA user_version once all migrations ran.
const schemaVersion = 2

// createTables creates tables and indices if they do not already exist, then
// executes any pending migrations. Safe to call on every start.
func (db *Database) createTables() error {
	songsTable := `
	CREATE TABLE IF NOT EXISTS songs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		artist TEXT DEFAULT 'Unknown Artist',
		album TEXT,
		duration INTEGER,
		file_path TEXT NOT NULL,
		file_size INTEGER,
		file_type TEXT,
		uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		play_count INTEGER DEFAULT 0,
		last_played TIMESTAMP
	);`

	playlistsTable := `
	CREATE TABLE IF NOT EXISTS playlists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		song_count INTEGER DEFAULT 0
	);`

	playlistSongsTable := `
	CREATE TABLE IF NOT EXISTS playlist_songs (
		playlist_id INTEGER NOT NULL,
		song_id INTEGER NOT NULL,
		added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		position INTEGER NOT NULL,
		PRIMARY KEY (playlist_id, song_id),
		FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
		FOREIGN KEY (song_id) REFERENCES songs(id) ON DELETE CASCADE
	);`

	for _, table := range []string{songsTable, playlistsTable, playlistSongsTable} {
		if _, err := db.conn.Exec(table); err != nil {
			return err
		}
	}

	return db.runMigrations()
}

// runMigrations brings databases created by older releases up to
// schemaVersion. Each step is idempotent.
func (db *Database) runMigrations() error {
	var version int
	if err := db.conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version < 1 {
		indices := []string{
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_songs_file_path ON songs(file_path);",
			"CREATE INDEX IF NOT EXISTS idx_songs_title ON songs(title);",
			"CREATE INDEX IF NOT EXISTS idx_songs_play_count ON songs(play_count);",
			"CREATE INDEX IF NOT EXISTS idx_playlist_songs_song ON playlist_songs(song_id);",
			"CREATE INDEX IF NOT EXISTS idx_playlist_songs_position ON playlist_songs(playlist_id, position);",
		}
		for _, index := range indices {
			if _, err := db.conn.Exec(index); err != nil {
				return err
			}
		}
	}

	if version < 2 {
		// Earlier releases removed songs without touching playlist counters,
		// so counts and positions from those databases are rebuilt once.
		if err := db.repairPlaylists(); err != nil {
			return fmt.Errorf("failed to repair playlist counters: %w", err)
		}
		db.logger.Info("Playlist counters verified")
	}

	if version < schemaVersion {
		if _, err := db.conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("failed to store schema version: %w", err)
		}
	}

	return nil
}

// repairPlaylists renumbers every playlist's positions 1..n in their current
// order and resets song_count to the number of memberships.
func (db *Database) repairPlaylists() error {
	ctx := context.Background()
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		type membership struct {
			playlistID, songID int64
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM playlist_songs
			WHERE song_id NOT IN (SELECT id FROM songs)
			   OR playlist_id NOT IN (SELECT id FROM playlists)`); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT playlist_id, song_id FROM playlist_songs
			ORDER BY playlist_id, COALESCE(position, 0), added_at, song_id`)
		if err != nil {
			return err
		}
		var memberships []membership
		for rows.Next() {
			var m membership
			if err := rows.Scan(&m.playlistID, &m.songID); err != nil {
				rows.Close()
				return err
			}
			memberships = append(memberships, m)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		var current int64
		position := 0
		for _, m := range memberships {
			if m.playlistID != current {
				current = m.playlistID
				position = 0
			}
			position++
			if _, err := tx.ExecContext(ctx, `
				UPDATE playlist_songs SET position = ?
				WHERE playlist_id = ? AND song_id = ?`, position, m.playlistID, m.songID); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE playlists SET song_count = (
				SELECT COUNT(*) FROM playlist_songs ps WHERE ps.playlist_id = playlists.id
			)`)
		return err
	})
}
