package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tessaro/memopipe/internal/audit"
	"github.com/tessaro/memopipe/internal/classifier"
	"github.com/tessaro/memopipe/internal/composer"
	"github.com/tessaro/memopipe/internal/config"
	"github.com/tessaro/memopipe/internal/extractor"
	"github.com/tessaro/memopipe/internal/linker"
	"github.com/tessaro/memopipe/internal/pipeline"
	"github.com/tessaro/memopipe/internal/store"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "memopipe",
		Short: "Memopipe — memory extraction pipeline for conversational assistants",
		Long:  "Memopipe turns raw conversation utterances into classified, deduplicated, cross-linked memory records partitioned by sensitivity category.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		processCmd(),
		classifyCmd(),
		extractCmd(),
		listCmd(),
		getCmd(),
		searchCmd(),
		actionsCmd(),
		statsCmd(),
		replayCmd(),
		archiveCmd(),
		mcpCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newStore opens the SQLite store. On failure the returned interface is nil,
// not an interface wrapping a nil *SQLiteStore, so callers can branch on it.
func newStore(logger *slog.Logger) (store.Store, error) {
	st, err := store.NewSQLiteStore(cfg.Store.Path, cfg.Store.EncryptedCapable, logger)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func newClassifier(logger *slog.Logger) *classifier.Service {
	var primary classifier.Classifier
	if cfg.Claude.APIKey != "" {
		primary = classifier.NewClaudeClassifier(cfg.Claude.APIKey, cfg.Claude.Model, cfg.Claude.RequestsPerSecond, logger)
	} else {
		logger.Warn("ANTHROPIC_API_KEY is not set; classification uses the local keyword classifier only")
	}
	return classifier.NewService(primary, logger)
}

func newPendingQueue(logger *slog.Logger) *store.PendingQueue {
	return store.NewPendingQueue(cfg.Store.PendingQueuePath, logger)
}

// newPipeline assembles the full processing pipeline around an open store.
func newPipeline(st store.Store, notifier *audit.Notifier, logger *slog.Logger) (*pipeline.Pipeline, error) {
	index, err := linker.NewRecentIndex(cfg.Pipeline.IndexPartitions, cfg.Pipeline.IndexDepth)
	if err != nil {
		return nil, fmt.Errorf("creating recent-memory index: %w", err)
	}

	queue := newPendingQueue(logger)
	saver := store.NewSaver(st, queue, cfg.Store.MaxRetries, cfg.Store.Backoff, logger)

	return pipeline.New(
		newClassifier(logger),
		extractor.New(logger),
		composer.New(logger),
		saver,
		st,
		linker.New(st, saver, logger),
		index,
		notifier,
		logger,
	), nil
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}
