// Package cli provides the command-line interface for communitysurf.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	configDir string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:          "communitysurf",
	Short:        "Follow community chatter about a product in one ranked feed",
	Long:         "communitysurf pulls Reddit, social and forum posts, classifies and scores them, and serves one filtered, ranked feed to the terminal or over HTTP.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "communitysurf %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".communitysurf", "config directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(uncompleteCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(doctorCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
