package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "legacy-scrobbler",
	Short: "Audioscrobbler 1.2 submission engine",
	Long: `legacy-scrobbler embeds a client for the Audioscrobbler 1.2 protocol:
the legacy handshake/nowplaying/scrobble exchange understood by Last.fm and
compatible servers.

It runs as a tick-driven daemon that drains a pending queue of scrobbles in
chronological order, with exponential backoff on handshake failures. It also
provides a one-shot importer for replaying an existing play-history log
without re-submitting entries already sent in a prior run.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags can be added here if needed
}
