package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jlieth/legacy-scrobbler/internal/config"
	"github.com/jlieth/legacy-scrobbler/internal/history"
	"github.com/jlieth/legacy-scrobbler/internal/scrobbler"
	"github.com/jlieth/legacy-scrobbler/pkg/listen"
	"github.com/jlieth/legacy-scrobbler/pkg/protocol"
)

var importSkipHistory bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Submit a newline-delimited JSON log of past plays",
	Long: `Read a newline-delimited JSON log of past plays, feed each entry
through the engine's queue, and tick until the queue drains or a fatal
error occurs.

Each line is a JSON object:

  {"artist":"...", "track":"...", "timestamp":1700000000,
   "album":"...", "length":245, "tracknumber":3, "mbid":"...",
   "source":"P", "rating":""}

Only "artist", "track", and "timestamp" (unix seconds) are required.

Entries already recorded in the history ledger from a prior import run are
skipped, unless --no-history-check is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVar(&importSkipHistory, "no-history-check", false, "submit every entry, ignoring the already-submitted ledger")
}

type importEntry struct {
	Artist      string `json:"artist"`
	Track       string `json:"track"`
	Timestamp   int64  `json:"timestamp"`
	Album       string `json:"album,omitempty"`
	Length      *int   `json:"length,omitempty"`
	TrackNumber *int   `json:"tracknumber,omitempty"`
	MBID        string `json:"mbid,omitempty"`
	Source      string `json:"source,omitempty"`
	Rating      string `json:"rating,omitempty"`
}

func (e importEntry) toListen() (listen.Listen, error) {
	opts := []listen.Option{}
	if e.Album != "" {
		opts = append(opts, listen.WithAlbum(e.Album))
	}
	if e.Length != nil {
		opts = append(opts, listen.WithLength(*e.Length))
	}
	if e.TrackNumber != nil {
		opts = append(opts, listen.WithTrackNumber(*e.TrackNumber))
	}
	if e.MBID != "" {
		opts = append(opts, listen.WithMBTrackID(e.MBID))
	}
	if e.Source != "" {
		opts = append(opts, listen.WithSource(e.Source))
	}
	if e.Rating != "" {
		opts = append(opts, listen.WithRating(e.Rating))
	}
	return listen.New(time.Unix(e.Timestamp, 0), e.Artist, e.Track, opts...)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateNetwork(); err != nil {
		return err
	}

	store, err := history.Open(cfg.History.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open history ledger: %w", err)
	}
	defer store.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	logger := setupLogger(cfg.Logging.File, cfg.Logging.Level)
	executor := protocol.NewHTTPExecutor(nil)
	client := protocol.NewClient(protocol.Config{
		ClientName:     cfg.Network.ClientName,
		ClientVersion:  cfg.Network.ClientVersion,
		Username:       cfg.Network.Username,
		PasswordMD5Hex: cfg.Network.PasswordMD5Hex,
		HandshakeURL:   cfg.Network.HandshakeURL,
	}, executor)
	engine := scrobbler.New(client, logger)

	ctx := context.Background()

	var accepted []listen.Listen
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry importEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("line %d: invalid JSON: %w", lineNo, err)
		}
		l, err := entry.toListen()
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}

		if !importSkipHistory {
			seen, err := store.Seen(ctx, l)
			if err != nil {
				return fmt.Errorf("line %d: history lookup: %w", lineNo, err)
			}
			if seen {
				continue
			}
		}
		accepted = append(accepted, l)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}

	if len(accepted) == 0 {
		fmt.Println("Nothing to import.")
		return nil
	}

	engine.AddListens(accepted...)
	logger.Info().Int("count", len(accepted)).Msg("queued listens for import")

	for engine.QueueLen() > 0 || engine.State() != scrobbler.Idle {
		if err := engine.Tick(ctx); err != nil {
			return fmt.Errorf("import aborted: %w", err)
		}
		if engine.QueueLen() > 0 || engine.State() != scrobbler.Idle {
			time.Sleep(time.Second)
		}
	}

	if err := store.RecordBatch(ctx, accepted); err != nil {
		return fmt.Errorf("failed to update history ledger: %w", err)
	}

	fmt.Printf("Imported %d listens.\n", len(accepted))
	return nil
}
