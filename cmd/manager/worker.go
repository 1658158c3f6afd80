package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/alert"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/chain"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/config"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/dispatcher"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/indexer"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/metrics"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/paper"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/queue"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/storage"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/storage/mongo"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/storage/postgres"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/strategy"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume queued events and run the strategy pipelines",
		RunE:  runWorker,
	}

	cmd.Flags().String("redis-url", "redis://localhost:6379/0", "Redis URL of the job queue")
	cmd.Flags().String("stream", "event-queue", "Redis stream name")
	cmd.Flags().String("group", "strategy-workers", "consumer group")
	cmd.Flags().String("consumer", "worker", "consumer name prefix, unique per process")
	cmd.Flags().Int("concurrency", 4, "concurrent jobs per process")
	cmd.Flags().Int("max-attempts", 5, "attempts before a job is dead-lettered")
	cmd.Flags().Duration("base-backoff", 2*time.Second, "first retry delay")
	cmd.Flags().Duration("max-backoff", 5*time.Minute, "retry delay cap")
	cmd.Flags().Duration("claim-idle", 10*time.Minute, "idle time before a stuck job is reclaimed")
	cmd.Flags().Duration("lock-ttl", 30*time.Minute, "per-user withdrawal lock ttl")
	cmd.Flags().String("metrics-addr", ":9102", "Prometheus listen address, empty disables")
	cmd.Flags().String("hedge-symbol", "AXSUSDT", "exchange symbol of the hedge position")
	cmd.Flags().Bool("paper-exchange", false, "hedge on the simulated exchange")
	cmd.Flags().String("rpc", "", "RPC URL used to read staked balances")
	cmd.Flags().String("staking-contract", "", "staking contract address for live staked balances")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for the step journal, operations and recovery tasks")
	cmd.Flags().String("mongo-uri", "", "MongoDB URI for the operation log")
	cmd.Flags().String("mongo-database", "manager", "MongoDB database of the operation log")
	cmd.Flags().String("mongo-collection", "operations", "MongoDB collection of the operation log")
	cmd.Flags().String("operations-file", "./data/operations.jsonl", "JSONL operation log when no database is set")
	cmd.Flags().String("slack-token", "", "Slack bot token for admin alerts")
	cmd.Flags().String("slack-channel", "", "Slack channel for admin alerts")
	cmd.Flags().StringSlice("email-to", nil, "admin alert recipients")
	cmd.Flags().String("sendgrid-key", "", "SendGrid API key for admin alert emails")
	cmd.Flags().String("email-from", "", "admin alert sender")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func loadWorker(cmd *cobra.Command) (config.WorkerConfig, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWorker(cfgFile, cmd.Flags())
	if err != nil {
		return config.WorkerConfig{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.WorkerConfig{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.WorkerConfig{}, nil, err
	}
	return cfg, logger, nil
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadWorker(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewPrometheusRecorder(prometheus.DefaultRegisterer, logger)
	if cfg.MetricsAddr != "" {
		server := startMetricsServer(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	redisClient, err := queue.NewRedisClient(ctx, cfg.Queue.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	stores, err := openStores(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer stores.close()

	venue, closeVenue, err := buildVenue(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeVenue()

	deps := strategy.Dependencies{
		Bridger:     venue,
		Swapper:     venue,
		Staker:      venue,
		Finalizer:   venue,
		HedgeSymbol: cfg.HedgeSymbol,
		Journal:     stores.journal,
		Metrics:     recorder,
		Operations:  stores.operations,
		Notifier:    buildNotifier(cfg.Alerts, logger),
		Recovery:    stores.recovery,
		Locker:      queue.NewRedisLocker(redisClient, cfg.Queue.Stream+":lock:", cfg.LockTTL, logger),
		Logger:      logger,
	}
	if cfg.PaperExchange {
		deps.Exchange = venue
	}

	deposit, err := strategy.NewDepositPipeline(deps)
	if err != nil {
		return err
	}
	withdrawal, err := strategy.NewWithdrawalPipeline(deps)
	if err != nil {
		return err
	}

	router := dispatcher.NewRouter(recorder, logger)
	dispatcher.Handlers{
		Deposit:    deposit,
		Withdrawal: withdrawal,
		Operations: stores.operations,
		Logger:     logger,
	}.Register(router)

	q := queue.NewRedisQueue(redisClient, queue.Config{
		Stream:      cfg.Queue.Stream,
		Group:       cfg.Group,
		Consumer:    cfg.Consumer,
		Concurrency: cfg.Concurrency,
		MaxAttempts: cfg.MaxAttempts,
		BaseBackoff: cfg.BaseBackoff,
		MaxBackoff:  cfg.MaxBackoff,
		ClaimIdle:   cfg.ClaimIdle,
	}, logger).WithObserver(recorder)

	return q.Run(ctx, router.HandleJob)
}

func startMetricsServer(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return server
}

type workerStores struct {
	journal    strategy.Journal
	operations storage.OperationLog
	recovery   strategy.RecoveryTaskStore
	closers    []func()
}

func (s *workerStores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores picks MongoDB, then Postgres, then a JSONL file for operations.
// The step journal and recovery tasks live in Postgres when configured.
func openStores(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*workerStores, error) {
	stores := &workerStores{journal: strategy.NewMemoryJournal()}

	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		stores.closers = append(stores.closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			stores.close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		stores.journal = pg
		stores.operations = pg
		stores.recovery = pg
	} else {
		logger.Warn("no pg-dsn, step journal is in memory and does not survive restarts")
	}

	if cfg.MongoURI != "" {
		ops, err := mongo.Connect(ctx, mongo.Config{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
		if err != nil {
			stores.close()
			return nil, err
		}
		stores.closers = append(stores.closers, func() { _ = ops.Close(context.Background()) })
		stores.operations = ops
	}

	if stores.operations == nil {
		stores.operations = storage.NewJSONLOperationLog(cfg.OperationsFile)
	}
	if stores.recovery == nil {
		stores.recovery = storage.RecoveryLog{Log: stores.operations}
	}
	return stores, nil
}

func buildVenue(ctx context.Context, cfg config.WorkerConfig, logger *zap.Logger) (*paper.Venue, func(), error) {
	if cfg.StakingContract == "" {
		return paper.NewVenue(nil, logger), func() {}, nil
	}

	staking, err := indexer.ParseAddress(cfg.StakingContract)
	if err != nil {
		return nil, nil, fmt.Errorf("staking contract: %w", err)
	}
	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}
	return paper.NewVenue(chain.NewStakeReader(client, staking), logger), client.Close, nil
}

func buildNotifier(cfg config.AlertConfig, logger *zap.Logger) alert.Notifier {
	notifiers := alert.MultiNotifier{alert.NewLogNotifier(logger)}

	if cfg.SlackToken != "" && cfg.SlackChannel != "" {
		slackNotifier, err := alert.NewSlackNotifier(cfg.SlackToken, cfg.SlackChannel)
		if err != nil {
			logger.Warn("slack alerts disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, slackNotifier)
		}
	}

	if cfg.SendgridKey != "" && len(cfg.EmailTo) > 0 {
		emailNotifier, err := alert.NewEmailNotifier(cfg.SendgridKey, cfg.EmailFrom, cfg.EmailTo)
		if err != nil {
			logger.Warn("email alerts disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, emailNotifier)
		}
	}
	return notifiers
}
