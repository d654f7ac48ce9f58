package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"musiclib/internal/config"
	"musiclib/internal/logging"
	"musiclib/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(config.DatabaseConfig{
		Path:           filepath.Join(t.TempDir(), "test.db"),
		MaxConnections: 5,
		BusyTimeoutMS:  5000,
	}, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func addSong(t *testing.T, db *Database, title, artist, album string) int64 {
	t.Helper()
	id, err := db.AddSong(context.Background(), models.Song{
		Title:    title,
		Artist:   artist,
		Album:    album,
		Duration: 180,
		FilePath: fmt.Sprintf("%s_%d.mp3", title, nextPathSeq()),
		FileSize: 1024,
		FileType: "mp3",
	})
	require.NoError(t, err)
	return id
}

var pathSeq struct {
	sync.Mutex
	n int64
}

func nextPathSeq() int64 {
	pathSeq.Lock()
	defer pathSeq.Unlock()
	pathSeq.n++
	return pathSeq.n
}

func songIDs(songs []models.Song) []int64 {
	ids := make([]int64, 0, len(songs))
	for _, s := range songs {
		ids = append(ids, s.ID)
	}
	return ids
}

func assertPlaylistConsistent(t *testing.T, db *Database, playlistID int64) []models.PlaylistSong {
	t.Helper()
	ctx := context.Background()

	playlist, err := db.GetPlaylist(ctx, playlistID)
	require.NoError(t, err)
	songs, err := db.GetPlaylistSongs(ctx, playlistID)
	require.NoError(t, err)

	assert.Equal(t, len(songs), playlist.SongCount, "song_count must match memberships")
	for i, s := range songs {
		assert.Equal(t, i+1, s.Position, "positions must be 1..n")
	}
	return songs
}

func TestAddAndGetSong(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.AddSong(ctx, models.Song{
		Title:    "Test Song",
		Album:    "Test Album",
		Duration: 200,
		FilePath: "test_song_1700000000.mp3",
		FileSize: 2048,
		FileType: "mp3",
	})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	song, err := db.GetSong(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Test Song", song.Title)
	assert.Equal(t, models.DefaultArtist, song.Artist)
	assert.Equal(t, "Test Album", song.Album)
	assert.Equal(t, 200, song.Duration)
	assert.Equal(t, int64(2048), song.FileSize)
	assert.Equal(t, 0, song.PlayCount)
	assert.Nil(t, song.LastPlayed)
	assert.False(t, song.UploadedAt.IsZero())

	byPath, err := db.GetSongByPath(ctx, "test_song_1700000000.mp3")
	require.NoError(t, err)
	assert.Equal(t, id, byPath.ID)
}

func TestGetSongNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetSong(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetSongByPath(context.Background(), "missing.mp3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddSongDuplicatePath(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	song := models.Song{Title: "A", FilePath: "a_1.mp3", FileType: "mp3"}
	_, err := db.AddSong(ctx, song)
	require.NoError(t, err)
	_, err = db.AddSong(ctx, song)
	assert.Error(t, err)
}

func TestGetAllSongsOrdering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := addSong(t, db, "Bravo", "Zed", "")
	second := addSong(t, db, "Alpha", "Yan", "")
	third := addSong(t, db, "Bravo", "Xia", "")

	asc, err := db.GetAllSongs(ctx, SortByTitle, Ascending)
	require.NoError(t, err)
	assert.Equal(t, []int64{second, first, third}, songIDs(asc))

	desc, err := db.GetAllSongs(ctx, SortByTitle, Descending)
	require.NoError(t, err)
	assert.Equal(t, []int64{third, first, second}, songIDs(desc))

	byArtist, err := db.GetAllSongs(ctx, SortByArtist, Ascending)
	require.NoError(t, err)
	assert.Equal(t, []int64{third, second, first}, songIDs(byArtist))
}

func TestGetAllSongsEverySortColumn(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	seed := []struct {
		title, artist, album string
		duration             int
		uploadedOffset       int
		plays                int
	}{
		{"Charlie", "Beta", "Gamma", 300, 3, 2},
		{"Alpha", "Alpha", "", 120, 1, 0},
		{"Bravo", "Beta", "", 300, 2, 5}, // album set to NULL below
		{"Alpha", "Delta", "Alpha", 60, 4, 2},
		{"Echo", "Charlie", "Gamma", 240, 0, 1},
	}

	ids := make([]int64, len(seed))
	for i, s := range seed {
		uploaded := base.Add(time.Duration(s.uploadedOffset) * time.Minute)
		db.now = func() time.Time { return uploaded }

		id, err := db.AddSong(ctx, models.Song{
			Title:    s.title,
			Artist:   s.artist,
			Album:    s.album,
			Duration: s.duration,
			FilePath: fmt.Sprintf("sort_%d.mp3", i),
			FileType: "audio/mpeg",
		})
		require.NoError(t, err)
		ids[i] = id

		for p := 0; p < s.plays; p++ {
			require.NoError(t, db.UpdatePlayCount(ctx, id))
		}
	}
	_, err := db.conn.ExecContext(ctx, `UPDATE songs SET album = NULL WHERE id = ?`, ids[2])
	require.NoError(t, err)

	s1, s2, s3, s4, s5 := ids[0], ids[1], ids[2], ids[3], ids[4]
	tests := []struct {
		column string
		asc    []int64
	}{
		{"title", []int64{s2, s4, s3, s1, s5}},
		{"artist", []int64{s2, s1, s3, s5, s4}},
		{"album", []int64{s3, s2, s4, s1, s5}},
		{"duration", []int64{s4, s2, s5, s1, s3}},
		{"uploaded_at", []int64{s5, s2, s3, s1, s4}},
		{"play_count", []int64{s2, s5, s1, s4, s3}},
	}
	require.Len(t, tests, len(sortColumns), "every sort column must be covered")

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			col, ok := ParseSortColumn(tt.column)
			require.True(t, ok)

			asc, err := db.GetAllSongs(ctx, col, Ascending)
			require.NoError(t, err)
			assert.Equal(t, tt.asc, songIDs(asc))

			desc, err := db.GetAllSongs(ctx, col, Descending)
			require.NoError(t, err)
			reversed := make([]int64, 0, len(tt.asc))
			for i := len(tt.asc) - 1; i >= 0; i-- {
				reversed = append(reversed, tt.asc[i])
			}
			assert.Equal(t, reversed, songIDs(desc), "DESC must be the exact reverse of ASC")
			assert.ElementsMatch(t, ids, songIDs(desc))
		})
	}
}

func TestGetAllSongsEmpty(t *testing.T) {
	db := newTestDB(t)

	songs, err := db.GetAllSongs(context.Background(), SortByPlayCount, Descending)
	require.NoError(t, err)
	assert.NotNil(t, songs)
	assert.Empty(t, songs)
}

func TestSearchSongs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	bohemian := addSong(t, db, "Bohemian Rhapsody", "Queen", "A Night at the Opera")
	sale := addSong(t, db, "50% Off", "Discount", "")
	days := addSong(t, db, "500 Days", "Summer", "")
	under := addSong(t, db, "snake_case", "Py", "")
	addSong(t, db, "snakeXcase", "Py", "")

	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{"title is case-insensitive", "bohemian", []int64{bohemian}},
		{"artist matches", "QUEEN", []int64{bohemian}},
		{"album matches", "opera", []int64{bohemian}},
		{"percent is literal", "50%", []int64{sale}},
		{"underscore is literal", "e_c", []int64{under}},
		{"prefix matches many", "50", []int64{sale, days}},
		{"no match", "zzz", []int64{}},
		{"empty query", "", []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			songs, err := db.SearchSongs(ctx, tt.query)
			require.NoError(t, err)
			assert.NotNil(t, songs)
			assert.Equal(t, tt.want, songIDs(songs))
		})
	}
}

func TestUpdatePlayCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id := addSong(t, db, "Loop", "", "")
	for i := 0; i < 3; i++ {
		require.NoError(t, db.UpdatePlayCount(ctx, id))
	}

	song, err := db.GetSong(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, song.PlayCount)
	require.NotNil(t, song.LastPlayed)

	// Unknown IDs are silently ignored
	assert.NoError(t, db.UpdatePlayCount(ctx, 9999))
}

func TestPlaylistLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.CreatePlaylist(ctx, "Road Trip", "Songs for the car")
	require.NoError(t, err)

	playlist, err := db.GetPlaylist(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Road Trip", playlist.Name)
	assert.Equal(t, "Songs for the car", playlist.Description)
	assert.Equal(t, 0, playlist.SongCount)

	ok, err := db.UpdatePlaylist(ctx, id, "Long Road Trip", "")
	require.NoError(t, err)
	assert.True(t, ok)

	playlist, err = db.GetPlaylist(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Long Road Trip", playlist.Name)
	assert.Equal(t, "", playlist.Description)

	ok, err = db.UpdatePlaylist(ctx, 999, "x", "")
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := db.DeletePlaylist(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = db.GetPlaylist(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err = db.DeletePlaylist(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestGetAllPlaylistsOrderedByName(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	empty, err := db.GetAllPlaylists(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, name := range []string{"Workout", "Chill", "Morning"} {
		_, err := db.CreatePlaylist(ctx, name, "")
		require.NoError(t, err)
	}

	playlists, err := db.GetAllPlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, playlists, 3)
	assert.Equal(t, "Chill", playlists[0].Name)
	assert.Equal(t, "Morning", playlists[1].Name)
	assert.Equal(t, "Workout", playlists[2].Name)
}

func TestAddSongToPlaylist(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	playlistID, err := db.CreatePlaylist(ctx, "Mix", "")
	require.NoError(t, err)
	a := addSong(t, db, "A", "", "")
	b := addSong(t, db, "B", "", "")

	added, err := db.AddSongToPlaylist(ctx, playlistID, a)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = db.AddSongToPlaylist(ctx, playlistID, b)
	require.NoError(t, err)
	assert.True(t, added)

	t.Run("duplicate leaves state unchanged", func(t *testing.T) {
		added, err := db.AddSongToPlaylist(ctx, playlistID, a)
		require.NoError(t, err)
		assert.False(t, added)

		songs := assertPlaylistConsistent(t, db, playlistID)
		require.Len(t, songs, 2)
		assert.Equal(t, a, songs[0].ID)
		assert.Equal(t, b, songs[1].ID)
		assert.False(t, songs[0].AddedAt.IsZero())
	})

	t.Run("missing playlist", func(t *testing.T) {
		_, err := db.AddSongToPlaylist(ctx, 999, a)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing song", func(t *testing.T) {
		_, err := db.AddSongToPlaylist(ctx, playlistID, 999)
		assert.ErrorIs(t, err, ErrNotFound)
		assertPlaylistConsistent(t, db, playlistID)
	})
}

func TestRemoveSongFromPlaylistClosesGap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	playlistID, err := db.CreatePlaylist(ctx, "Mix", "")
	require.NoError(t, err)

	var ids []int64
	for _, title := range []string{"One", "Two", "Three", "Four"} {
		id := addSong(t, db, title, "", "")
		ids = append(ids, id)
		_, err := db.AddSongToPlaylist(ctx, playlistID, id)
		require.NoError(t, err)
	}

	removed, err := db.RemoveSongFromPlaylist(ctx, playlistID, ids[1])
	require.NoError(t, err)
	assert.True(t, removed)

	songs := assertPlaylistConsistent(t, db, playlistID)
	require.Len(t, songs, 3)
	assert.Equal(t, ids[0], songs[0].ID)
	assert.Equal(t, ids[2], songs[1].ID)
	assert.Equal(t, ids[3], songs[2].ID)

	removed, err = db.RemoveSongFromPlaylist(ctx, playlistID, ids[1])
	require.NoError(t, err)
	assert.False(t, removed)
	assertPlaylistConsistent(t, db, playlistID)

	// Appending after a removal continues from the new end
	five := addSong(t, db, "Five", "", "")
	_, err = db.AddSongToPlaylist(ctx, playlistID, five)
	require.NoError(t, err)
	songs = assertPlaylistConsistent(t, db, playlistID)
	assert.Equal(t, five, songs[3].ID)
	assert.Equal(t, 4, songs[3].Position)
}

func TestDeleteSongUpdatesPlaylists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, err := db.CreatePlaylist(ctx, "First", "")
	require.NoError(t, err)
	second, err := db.CreatePlaylist(ctx, "Second", "")
	require.NoError(t, err)

	a := addSong(t, db, "A", "", "")
	b := addSong(t, db, "B", "", "")
	c := addSong(t, db, "C", "", "")

	for _, id := range []int64{a, b, c} {
		_, err := db.AddSongToPlaylist(ctx, first, id)
		require.NoError(t, err)
	}
	for _, id := range []int64{b, a} {
		_, err := db.AddSongToPlaylist(ctx, second, id)
		require.NoError(t, err)
	}

	deleted, err := db.DeleteSong(ctx, b)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = db.GetSong(ctx, b)
	assert.ErrorIs(t, err, ErrNotFound)

	songs := assertPlaylistConsistent(t, db, first)
	assert.Len(t, songs, 2)
	songs = assertPlaylistConsistent(t, db, second)
	require.Len(t, songs, 1)
	assert.Equal(t, a, songs[0].ID)

	deleted, err = db.DeleteSong(ctx, b)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteSongByPath(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.AddSong(ctx, models.Song{Title: "Gone", FilePath: "gone_1.mp3", FileType: "mp3"})
	require.NoError(t, err)

	deleted, err := db.DeleteSongByPath(ctx, "gone_1.mp3")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = db.GetSong(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err = db.DeleteSongByPath(ctx, "gone_1.mp3")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeletePlaylistCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	playlistID, err := db.CreatePlaylist(ctx, "Temp", "")
	require.NoError(t, err)
	songID := addSong(t, db, "Kept", "", "")
	_, err = db.AddSongToPlaylist(ctx, playlistID, songID)
	require.NoError(t, err)

	_, err = db.DeletePlaylist(ctx, playlistID)
	require.NoError(t, err)

	songs, err := db.GetPlaylistSongs(ctx, playlistID)
	require.NoError(t, err)
	assert.Empty(t, songs)

	// The song itself survives
	_, err = db.GetSong(ctx, songID)
	assert.NoError(t, err)
}

func TestConcurrentAddsKeepPositionsDense(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	playlistID, err := db.CreatePlaylist(ctx, "Busy", "")
	require.NoError(t, err)

	const n = 12
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = addSong(t, db, fmt.Sprintf("Song %d", i), "", "")
	}

	var wg sync.WaitGroup
	errs := make(chan error, n*2)
	for _, id := range ids {
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				if _, err := db.AddSongToPlaylist(ctx, playlistID, id); err != nil {
					errs <- err
				}
			}(id)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	songs := assertPlaylistConsistent(t, db, playlistID)
	assert.Len(t, songs, n)
}

func TestGetLibraryStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	stats, err := db.GetLibraryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalSongs)
	assert.Equal(t, int64(0), stats.TotalStorage)
	assert.NotNil(t, stats.MostPlayed)
	assert.Empty(t, stats.MostPlayed)

	var ids []int64
	for i := 0; i < 7; i++ {
		ids = append(ids, addSong(t, db, fmt.Sprintf("Track %d", i), "Band", ""))
	}
	plays := []int{1, 5, 0, 5, 2, 3, 9}
	for i, count := range plays {
		for j := 0; j < count; j++ {
			require.NoError(t, db.UpdatePlayCount(ctx, ids[i]))
		}
	}
	_, err = db.CreatePlaylist(ctx, "P", "")
	require.NoError(t, err)

	stats, err = db.GetLibraryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalSongs)
	assert.Equal(t, 1, stats.TotalPlaylists)
	assert.Equal(t, int64(7*1024), stats.TotalStorage)
	require.Len(t, stats.MostPlayed, 5)

	var titles []string
	for _, p := range stats.MostPlayed {
		titles = append(titles, p.Title)
	}
	assert.Equal(t, []string{"Track 6", "Track 1", "Track 3", "Track 5", "Track 4"}, titles)
	assert.Equal(t, 9, stats.MostPlayed[0].PlayCount)
	assert.Equal(t, "Band", stats.MostPlayed[0].Artist)
}

func TestGetLibraryStatsConsistentUnderWrites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	done := make(chan struct{})
	writeErr := make(chan error, 1)
	go func() {
		defer close(writeErr)
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			id, err := db.AddSong(ctx, models.Song{
				Title:    fmt.Sprintf("Churn %d", i),
				FilePath: fmt.Sprintf("churn_%d.mp3", i),
				FileSize: 1024,
			})
			if err == nil && i%2 == 0 {
				_, err = db.DeleteSong(ctx, id)
			}
			if err != nil {
				writeErr <- err
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		stats, err := db.GetLibraryStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(stats.TotalSongs)*1024, stats.TotalStorage, "totals must come from one snapshot")
		expectedTop := stats.TotalSongs
		if expectedTop > mostPlayedLimit {
			expectedTop = mostPlayedLimit
		}
		assert.Len(t, stats.MostPlayed, expectedTop)
	}

	close(done)
	require.NoError(t, <-writeErr)
}

func TestLegacyDatabaseIsRepaired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	statements := []string{
		`CREATE TABLE songs (
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
		)`,
		`CREATE TABLE playlists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			song_count INTEGER DEFAULT 0
		)`,
		`CREATE TABLE playlist_songs (
			playlist_id INTEGER,
			song_id INTEGER,
			added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			position INTEGER,
			PRIMARY KEY (playlist_id, song_id)
		)`,
		`INSERT INTO songs (id, title, file_path) VALUES (1, 'One', 'one.mp3'), (3, 'Three', 'three.mp3')`,
		`INSERT INTO playlists (id, name, song_count) VALUES (1, 'Old', 3)`,
		`INSERT INTO playlist_songs (playlist_id, song_id, position) VALUES (1, 1, 1), (1, 2, 2), (1, 3, 3)`,
	}
	for _, stmt := range statements {
		_, err := legacy.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, legacy.Close())

	db, err := NewDatabase(config.DatabaseConfig{Path: path, MaxConnections: 2}, logging.Discard())
	require.NoError(t, err)
	defer db.Close()

	songs := assertPlaylistConsistent(t, db, 1)
	require.Len(t, songs, 2)
	assert.Equal(t, int64(1), songs[0].ID)
	assert.Equal(t, int64(3), songs[1].ID)

	var version int
	require.NoError(t, db.conn.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, schemaVersion, version)
}

func TestWithTxRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	sentinel := fmt.Errorf("boom")
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO playlists (name) VALUES ('ghost')`); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	playlists, err := db.GetAllPlaylists(ctx)
	require.NoError(t, err)
	assert.Empty(t, playlists)
}

func TestParseSort(t *testing.T) {
	col, ok := ParseSortColumn("play_count")
	assert.True(t, ok)
	assert.Equal(t, SortByPlayCount, col)

	_, ok = ParseSortColumn("title; DROP TABLE songs")
	assert.False(t, ok)

	order, ok := ParseSortOrder("desc")
	assert.True(t, ok)
	assert.Equal(t, Descending, order)

	_, ok = ParseSortOrder("sideways")
	assert.False(t, ok)

	assert.Equal(t, "ORDER BY uploaded_at DESC, id DESC", orderByClause(SortByUploadedAt, Descending))
}
