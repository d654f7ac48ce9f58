package database

import (
	"context"
	"database/sql"
	"fmt"

	"musiclib/pkg/models"
)

// mostPlayedLimit is the length of the most-played rollup.
const mostPlayedLimit = 5

// GetLibraryStats returns song, playlist and storage totals plus the most
// played songs. All figures come from one read transaction so they agree
// with each other while uploads and deletes run.
func (db *Database) GetLibraryStats(ctx context.Context) (*models.LibraryStats, error) {
	tx, err := db.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin stats transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only, nothing to commit

	stats := &models.LibraryStats{MostPlayed: []models.PlayedSong{}}

	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM songs`).Scan(&stats.TotalSongs); err != nil {
		return nil, fmt.Errorf("failed to count songs: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM playlists`).Scan(&stats.TotalPlaylists); err != nil {
		return nil, fmt.Errorf("failed to count playlists: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(file_size), 0) FROM songs`).Scan(&stats.TotalStorage); err != nil {
		return nil, fmt.Errorf("failed to sum storage: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT title, COALESCE(artist, ''), COALESCE(play_count, 0)
		FROM songs
		ORDER BY play_count DESC, id ASC
		LIMIT ?`, mostPlayedLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query most played songs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var played models.PlayedSong
		if err := rows.Scan(&played.Title, &played.Artist, &played.PlayCount); err != nil {
			return nil, err
		}
		stats.MostPlayed = append(stats.MostPlayed, played)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
