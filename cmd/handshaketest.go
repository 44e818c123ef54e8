package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jlieth/legacy-scrobbler/internal/config"
	"github.com/jlieth/legacy-scrobbler/pkg/protocol"
)

var handshakeTestCmd = &cobra.Command{
	Use:   "handshake-test",
	Short: "Perform a single handshake and report the result",
	Long: `Perform a single Audioscrobbler 1.2 handshake against the configured
server and print the outcome. Useful for verifying credentials before
starting the daemon, without touching the pending queue or any state file.`,
	RunE: runHandshakeTest,
}

func init() {
	rootCmd.AddCommand(handshakeTestCmd)
}

func runHandshakeTest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateNetwork(); err != nil {
		return err
	}

	executor := protocol.NewHTTPExecutor(nil)
	client := protocol.NewClient(protocol.Config{
		ClientName:     cfg.Network.ClientName,
		ClientVersion:  cfg.Network.ClientVersion,
		Username:       cfg.Network.Username,
		PasswordMD5Hex: cfg.Network.PasswordMD5Hex,
		HandshakeURL:   cfg.Network.HandshakeURL,
	}, executor)

	if err := client.Handshake(context.Background()); err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}

	creds := client.Credentials()
	fmt.Println("Handshake succeeded.")
	fmt.Printf("  session:        %s\n", creds.SessionID)
	fmt.Printf("  nowplaying url: %s\n", creds.NowPlayingURL)
	fmt.Printf("  scrobble url:   %s\n", creds.ScrobbleURL)
	return nil
}
