package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/chain"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/indexer"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/queue"
)

func newBackfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Replay historical contract events into the job queue",
		RunE:  runBackfill,
	}
	addListenerFlags(cmd)
	cmd.Flags().Uint64("to", 0, "last block (inclusive), 0 means latest")
	return cmd
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadListener(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	redisClient, err := queue.NewRedisClient(ctx, cfg.Queue.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	q := queue.NewRedisQueue(redisClient, queue.Config{Stream: cfg.Queue.Stream}, logger)
	ingestor, err := buildIngestor(cfg, q, logger)
	if err != nil {
		return err
	}

	checkpoint, closeCheckpoint, err := buildCheckpoint(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCheckpoint()

	logger.Info("backfill start",
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("max_range", cfg.MaxRange),
		zap.Float64("rps", cfg.RequestsPerSecond),
	)

	return indexer.NewBackfiller(backfillConfig(cfg), chainClient, ingestor, checkpoint, logger).Run(ctx)
}
