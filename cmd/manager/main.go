package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/config"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/contract"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/indexer"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/queue"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "manager",
		Short:        "Event-driven yield strategy manager",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(newListenCmd())
	root.AddCommand(newBackfillCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newResolveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addListenerFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "RPC URL (ws:// or wss:// for live subscriptions)")
	cmd.Flags().StringSlice("contract", nil, "watched contracts as name=address (repeatable)")
	cmd.Flags().String("redis-url", "redis://localhost:6379/0", "Redis URL of the job queue")
	cmd.Flags().String("stream", "event-queue", "Redis stream name")
	cmd.Flags().Uint64("from", 0, "first block of history (inclusive)")
	cmd.Flags().Uint64("max-range", indexer.DefaultMaxRange, "blocks per getLogs request")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts per request")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Float64("requests-per-second", 5, "getLogs request rate limit, 0 disables")
	cmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path, ignored with --pg-dsn")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for the checkpoint")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func loadListener(cmd *cobra.Command) (config.ListenerConfig, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadListener(cfgFile, cmd.Flags())
	if err != nil {
		return config.ListenerConfig{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.ListenerConfig{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.ListenerConfig{}, nil, err
	}
	return cfg, logger, nil
}

func buildIngestor(cfg config.ListenerConfig, q queue.Enqueuer, logger *zap.Logger) (*indexer.Ingestor, error) {
	specs := make([]indexer.ContractSpec, 0, len(cfg.Contracts))
	for _, c := range cfg.Contracts {
		spec, err := indexer.ParseContract(c.Name, c.Address, c.Events)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	decoder, err := contract.NewDecoder()
	if err != nil {
		return nil, err
	}
	ingestor, err := indexer.NewIngestor(specs, decoder, q, logger)
	if err != nil {
		return nil, err
	}
	return ingestor.WithEnqueueRetry(cfg.MaxRetries, cfg.RetryBackoff), nil
}

// buildCheckpoint prefers the Postgres indexer_state table when a DSN is set.
func buildCheckpoint(ctx context.Context, cfg config.ListenerConfig) (indexer.CheckpointStore, func(), error) {
	if cfg.PGDSN == "" {
		return indexer.NewFileCheckpointStore(cfg.Checkpoint), func() {}, nil
	}
	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return &indexer.DBCheckpointStore{Store: store, Name: cfg.CheckpointName}, store.Close, nil
}

func backfillConfig(cfg config.ListenerConfig) indexer.BackfillConfig {
	return indexer.BackfillConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		MaxRange:          cfg.MaxRange,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
