package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"musiclib/internal/config"
	"musiclib/internal/logging"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a referenced song or playlist does not exist.
var ErrNotFound = errors.New("not found")

// Database wraps a *sql.DB and exposes the song, playlist and stats
// operations of the library. It is safe for concurrent use; multi-statement
// mutations run inside immediate transactions so SQLite serialises writers.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger
	now    func() time.Time

	getSongByIDStmt     *sql.Stmt
	searchSongsStmt     *sql.Stmt
	updatePlayCountStmt *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database described by cfg and
// ensures the schema exists. Caller should Close() it when finished.
func NewDatabase(cfg config.DatabaseConfig, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	conn, err := sql.Open("sqlite3", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns < 1 {
		maxConns = 1
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &Database{
		conn:   conn,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", cfg.Path).Info("Database initialized successfully")
	return db, nil
}

// buildDSN applies connection-level pragmas through the driver's DSN so that
// every pooled connection gets them, not only the first one.
func buildDSN(cfg config.DatabaseConfig) string {
	busy := cfg.BusyTimeoutMS
	if busy <= 0 {
		busy = 5000
	}

	params := url.Values{}
	params.Set("mode", "rwc")
	params.Set("_foreign_keys", "on")
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", strconv.Itoa(busy))
	params.Set("_txlock", "immediate")

	return "file:" + cfg.Path + "?" + params.Encode()
}

// prepareStatements prepares the statements used on every request.
func (db *Database) prepareStatements() error {
	var err error

	db.getSongByIDStmt, err = db.conn.Prepare(`
		SELECT ` + songColumns + `
		FROM songs WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get song by ID statement: %w", err)
	}

	db.searchSongsStmt, err = db.conn.Prepare(`
		SELECT ` + songColumns + `
		FROM songs
		WHERE title LIKE ? ESCAPE '\' OR artist LIKE ? ESCAPE '\' OR album LIKE ? ESCAPE '\'
		ORDER BY title ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("failed to prepare search songs statement: %w", err)
	}

	db.updatePlayCountStmt, err = db.conn.Prepare(`
		UPDATE songs
		SET play_count = COALESCE(play_count, 0) + 1, last_played = ?
		WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare update play count statement: %w", err)
	}

	return nil
}

// WithTx executes fn within a transaction.
// It handles Begin, Rollback on error, and Commit on success.
func (db *Database) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Ping verifies the database is reachable.
func (db *Database) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the prepared statements and the underlying connection pool.
func (db *Database) Close() error {
	statements := []*sql.Stmt{
		db.getSongByIDStmt,
		db.searchSongsStmt,
		db.updatePlayCountStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				db.logger.WithError(err).Error("Failed to close prepared statement")
			}
		}
	}

	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func nullStringValue(n sql.NullString) string {
	if !n.Valid {
		return ""
	}
	return n.String
}

func nullInt64Value(n sql.NullInt64) int64 {
	if !n.Valid {
		return 0
	}
	return n.Int64
}
