package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jlieth/legacy-scrobbler/internal/config"
	"github.com/jlieth/legacy-scrobbler/internal/scrobbler"
	"github.com/jlieth/legacy-scrobbler/pkg/protocol"
)

var (
	daemonLogFile  string
	daemonLogLevel string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scrobbling daemon",
	Long: `Run the scrobbling daemon, which calls tick() on its own cadence to drive
the handshake/nowplaying/scrobble state machine.

The daemon runs in the foreground and logs to stderr by default. Use
--log-file to log to a file instead. Shutdown is graceful on SIGINT/SIGTERM;
a second signal forces an immediate exit.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "Log file path (default: stderr)")
	daemonCmd.Flags().StringVar(&daemonLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ValidateNetwork(); err != nil {
		return err
	}

	logFile := daemonLogFile
	if logFile == "" {
		logFile = cfg.Logging.File
	}
	logLevel := daemonLogLevel
	if logLevel == "" {
		logLevel = cfg.Logging.Level
	}

	runID := uuid.NewString()
	logger := setupLogger(logFile, logLevel).With().Str("run_id", runID).Logger()
	logger.Info().Str("version", version).Msg("starting legacy-scrobbler daemon")

	executor := protocol.NewHTTPExecutor(nil)
	client := protocol.NewClient(protocol.Config{
		ClientName:     cfg.Network.ClientName,
		ClientVersion:  cfg.Network.ClientVersion,
		Username:       cfg.Network.Username,
		PasswordMD5Hex: cfg.Network.PasswordMD5Hex,
		HandshakeURL:   cfg.Network.HandshakeURL,
	}, executor)

	engine := scrobbler.New(client, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("shutdown signal received, finishing in-flight tick")
		cancel()

		<-sigChan
		logger.Warn().Msg("second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	return runTickLoop(ctx, engine, cfg.TickInterval, logger)
}

func runTickLoop(ctx context.Context, engine *scrobbler.Engine, interval time.Duration, logger zerolog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("daemon stopped")
			return nil
		case <-ticker.C:
			if err := engine.Tick(ctx); err != nil {
				logger.Error().Err(err).Str("state", engine.State().String()).Msg("fatal engine error, stopping daemon")
				return err
			}
		}
	}
}

func setupLogger(logFile, logLevel string) zerolog.Logger {
	level := zerolog.InfoLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger
}
