package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/chain"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/indexer"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/queue"
)

func newListenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Subscribe to contract events and enqueue them as jobs",
		RunE:  runListen,
	}
	addListenerFlags(cmd)
	cmd.Flags().Bool("with-history", false, "backfill from --from to head alongside the live subscription")
	return cmd
}

func runListen(cmd *cobra.Command, _ []string) error {
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

	logger.Info("listener start",
		zap.Int("contracts", len(cfg.Contracts)),
		zap.String("stream", cfg.Queue.Stream),
		zap.Bool("with_history", cfg.WithHistory),
	)

	// Logs that fail to enqueue are re-read from the chain after resubscribing.
	gapReplayer := indexer.NewBackfiller(backfillConfig(cfg), chainClient, ingestor, nil, logger)
	listener := indexer.NewListener(indexer.ListenerConfig{RetryBackoff: cfg.RetryBackoff}, chainClient, ingestor, logger).
		WithReplayer(gapReplayer)

	if !cfg.WithHistory {
		return listener.Run(ctx)
	}

	checkpoint, closeCheckpoint, err := buildCheckpoint(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCheckpoint()
	backfiller := indexer.NewBackfiller(backfillConfig(cfg), chainClient, ingestor, checkpoint, logger)

	// Live logs that overlap the history window produce the same jobs, and
	// their steps are skipped by the journal.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listener.Run(gctx) })
	g.Go(func() error {
		if err := backfiller.Run(gctx); err != nil {
			return fmt.Errorf("history: %w", err)
		}
		logger.Info("history caught up")
		return nil
	})
	return g.Wait()
}
