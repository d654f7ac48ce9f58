package main

import (
	"context"
	"encoding/json"
	"fmt"

	"musiclib/internal/library"
	"musiclib/pkg/models"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print library statistics",
	Long:  `Print song, playlist and storage totals and the most played songs without starting the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, db, err := loadRuntime()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetLibraryStats(context.Background())
		if err != nil {
			return err
		}

		if statsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		printStats(cmd, stats)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print the statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func printStats(cmd *cobra.Command, stats *models.LibraryStats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Songs:     %d\n", stats.TotalSongs)
	fmt.Fprintf(out, "Playlists: %d\n", stats.TotalPlaylists)
	fmt.Fprintf(out, "Storage:   %s\n", library.FormatFileSize(stats.TotalStorage))
	if len(stats.MostPlayed) == 0 {
		return
	}
	fmt.Fprintln(out, "Most played:")
	for i, s := range stats.MostPlayed {
		fmt.Fprintf(out, "  %d. %s - %s (%d plays)\n", i+1, s.Title, s.Artist, s.PlayCount)
	}
}
