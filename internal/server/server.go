package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"musiclib/internal/config"
	"musiclib/internal/database"
	"musiclib/internal/library"
	"musiclib/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// MusicServer serves the JSON API, the browser client and stored audio.
type MusicServer struct {
	db         *database.Database
	library    *library.Service
	config     *config.Config
	logger     *logrus.Logger
	router     chi.Router
	httpServer *http.Server
}

// NewMusicServer wires the routes; call Start to begin listening.
func NewMusicServer(cfg *config.Config, db *database.Database, lib *library.Service, logger *logrus.Logger) *MusicServer {
	if logger == nil {
		logger = logging.Discard()
	}

	ms := &MusicServer{
		db:      db,
		library: lib,
		config:  cfg,
		logger:  logger,
		router:  chi.NewRouter(),
	}
	ms.setupMiddleware()
	ms.setupRoutes()

	ms.httpServer = &http.Server{
		Addr:              cfg.GetAddress(),
		Handler:           ms.router,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return ms
}

// Handler exposes the router, mainly for tests.
func (ms *MusicServer) Handler() http.Handler {
	return ms.router
}

func (ms *MusicServer) setupMiddleware() {
	ms.router.Use(ms.panicRecoveryMiddleware)
	ms.router.Use(requestIDMiddleware)
	ms.router.Use(ms.requestLoggingMiddleware)
	ms.router.Use(ms.corsMiddleware)
}

func (ms *MusicServer) setupRoutes() {
	r := ms.router

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		ms.respondWithError(w, req, http.StatusNotFound, "Resource not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		ms.respondWithError(w, req, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	r.Get("/", ms.handleHome)
	r.Handle("/static/*", ms.staticHandler())
	r.Get("/uploads/{file}", ms.handleUploadedFile)
	r.Get("/health", ms.handleHealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/songs", func(r chi.Router) {
			r.Get("/", ms.handleGetSongs)
			r.Get("/search", ms.handleSearchSongs)
			r.Post("/upload", ms.handleUploadSong)
			r.Get("/{songID}", ms.handleGetSong)
			r.Delete("/{songID}", ms.handleDeleteSong)
			r.Get("/{songID}/play", ms.handlePlaySong)
		})

		r.Route("/playlists", func(r chi.Router) {
			r.Get("/", ms.handleGetPlaylists)
			r.Post("/", ms.handleCreatePlaylist)
			r.Get("/{playlistID}", ms.handleGetPlaylist)
			r.Put("/{playlistID}", ms.handleUpdatePlaylist)
			r.Delete("/{playlistID}", ms.handleDeletePlaylist)
			r.Post("/{playlistID}/songs/{songID}", ms.handleAddSongToPlaylist)
			r.Delete("/{playlistID}/songs/{songID}", ms.handleRemoveSongFromPlaylist)
		})

		r.Get("/library/stats", ms.handleLibraryStats)
	})
}

// Start listens until Shutdown is called. It returns nil after a clean
// shutdown.
func (ms *MusicServer) Start() error {
	ms.logger.WithField("address", ms.httpServer.Addr).Info("Music library server starting")
	if err := ms.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (ms *MusicServer) Shutdown(ctx context.Context) error {
	ms.logger.Info("Shutting down music server...")
	if err := ms.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	ms.logger.Info("Music server shutdown complete")
	return nil
}
