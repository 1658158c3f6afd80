package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/queue"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/storage/postgres"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print queue depth and open recovery tasks",
		RunE:  runStatus,
	}
	cmd.Flags().String("redis-url", "redis://localhost:6379/0", "Redis URL of the job queue")
	cmd.Flags().String("stream", "event-queue", "Redis stream name")
	cmd.Flags().String("group", "strategy-workers", "consumer group")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN holding recovery tasks")
	cmd.Flags().Int("limit", 20, "maximum recovery tasks to list")
	cmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")
	return cmd
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <task-id>",
		Short: "Mark a recovery task resolved",
		Args:  cobra.ExactArgs(1),
		RunE:  runResolve,
	}
	cmd.Flags().String("pg-dsn", "", "Postgres DSN holding recovery tasks")
	cmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadWorker(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	out := cmd.OutOrStdout()

	redisClient, err := queue.NewRedisClient(ctx, cfg.Queue.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	stats, err := queue.NewRedisQueue(redisClient, queue.Config{Stream: cfg.Queue.Stream, Group: cfg.Group}, logger).Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "stream=%s length=%d pending=%d delayed=%d dead=%d\n",
		cfg.Queue.Stream, stats.Stream, stats.Pending, stats.Delayed, stats.DeadLetter)

	if cfg.Storage.PGDSN == "" {
		return nil
	}
	store, err := postgres.NewStore(ctx, cfg.Storage.PGDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	tasks, err := store.OpenRecoveryTasks(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "open recovery tasks: %d\n", len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(out, "%s\t%s\tuser=%s amount=%s\t%s\n",
			t.ID, t.CreatedAt.Format(time.RFC3339), t.User, t.Amount, t.Error)
	}
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadWorker(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Storage.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid task id: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := postgres.NewStore(ctx, cfg.Storage.PGDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	ok, err := store.ResolveRecoveryTask(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no open recovery task %s", id)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "resolved %s\n", id)
	return nil
}
