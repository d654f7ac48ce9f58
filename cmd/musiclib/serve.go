package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"musiclib/internal/library"
	"musiclib/internal/ngrok"
	"musiclib/internal/server"
	"musiclib/internal/storage"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the HTTP server with the JSON API, the browser client and stored audio.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, db, err := loadRuntime()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("error initializing storage: %w", err)
	}

	lib := library.NewService(db, store, nil, cfg.Music, logger)

	if cfg.Music.WatchUploads {
		if local, ok := store.(*storage.LocalStore); ok {
			watcher := lib.NewWatcher(local.Dir())
			if err := watcher.Start(); err != nil {
				logger.WithError(err).Warn("Upload directory watcher disabled")
			} else {
				defer watcher.Stop()
			}
		} else {
			logger.WithField("backend", cfg.Storage.Backend).Info("Upload watching only applies to local storage")
		}
	}

	musicServer := server.NewMusicServer(cfg, db, lib, logger)

	tunnel, err := ngrok.NewService(cfg.Ngrok, logger)
	if err != nil {
		return fmt.Errorf("error configuring ngrok: %w", err)
	}
	if err := tunnel.StartTunnel(ctx, "http://"+upstreamAddress(cfg.Server.Host, cfg.Server.Port)); err != nil {
		logger.WithError(err).Warn("Continuing without public tunnel")
	}
	defer tunnel.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- musicServer.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	return musicServer.Shutdown(shutdownCtx)
}

// upstreamAddress is the address the tunnel forwards to. A wildcard listen
// host is reached through loopback.
func upstreamAddress(host, port string) string {
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
