package main

import (
	"fmt"
	"os"

	"musiclib/internal/config"
	"musiclib/internal/database"
	"musiclib/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "musiclib",
	Short: "Personal music library server",
	Long:  `musiclib stores uploaded audio files, serves them to a browser player and manages playlists.`,
	// Running the bare binary starts the server.
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.toml", "path to the TOML configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadRuntime loads the configuration and builds the logger and database
// shared by every subcommand.
func loadRuntime() (*config.Config, *logrus.Logger, *database.Database, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error configuring logging: %w", err)
	}

	db, err := database.NewDatabase(cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error initializing database: %w", err)
	}
	return cfg, logger, db, nil
}
