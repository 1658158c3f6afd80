package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultMaxRange is the block span of one getLogs request.
const DefaultMaxRange = 500

// LogSource is the RPC subset used by backfill.
type LogSource interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// BackfillConfig holds runtime settings for historical sync.
type BackfillConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	MaxRange          uint64
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestsPerSecond float64
}

var _ GapReplayer = (*Backfiller)(nil)

// Backfiller replays historical logs through the Ingestor in block order.
type Backfiller struct {
	cfg        BackfillConfig
	source     LogSource
	ingestor   *Ingestor
	checkpoint CheckpointStore
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func NewBackfiller(cfg BackfillConfig, source LogSource, ingestor *Ingestor, checkpoint CheckpointStore, logger *zap.Logger) *Backfiller {
	if cfg.MaxRange == 0 {
		cfg.MaxRange = DefaultMaxRange
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Backfiller{
		cfg:        cfg,
		source:     source,
		ingestor:   ingestor,
		checkpoint: checkpoint,
		limiter:    limiter,
		logger:     logger,
	}
}

// Run syncs [FromBlock, ToBlock], resuming after the checkpoint when one exists.
// A zero ToBlock means the chain head.
func (b *Backfiller) Run(ctx context.Context) error {
	if b.source == nil {
		return fmt.Errorf("log source is nil")
	}
	if b.ingestor == nil {
		return fmt.Errorf("ingestor is nil")
	}

	from := b.cfg.FromBlock
	to := b.cfg.ToBlock
	if to == 0 {
		latest, err := b.source.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if b.checkpoint != nil {
		last, ok, err := b.checkpoint.Load(ctx)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		if ok && last >= from {
			from = last + 1
			b.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	if from > to {
		b.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, b.cfg.MaxRange)
	if err != nil {
		return err
	}

	addresses := b.ingestor.Addresses()
	topics, err := b.ingestor.Topics()
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		logs, err := b.fetch(ctx, blockRange, addresses, topics)
		if err != nil {
			return err
		}

		for _, log := range logs {
			if err := b.ingestor.handle(ctx, log); err != nil {
				return err
			}
		}

		if b.checkpoint != nil {
			if err := b.checkpoint.Save(ctx, blockRange.To); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
		}
		b.logger.Info("batch complete", zap.Stringer("range", blockRange), zap.Int("logs", len(logs)))
	}
	return nil
}

// FetchLogs returns every matching log in [from, to], paginated by MaxRange
// and concatenated in request order.
func (b *Backfiller) FetchLogs(ctx context.Context, from, to uint64) ([]types.Log, error) {
	ranges, err := SplitRange(from, to, b.cfg.MaxRange)
	if err != nil {
		return nil, err
	}
	topics, err := b.ingestor.Topics()
	if err != nil {
		return nil, err
	}
	addresses := b.ingestor.Addresses()

	var out []types.Log
	for _, blockRange := range ranges {
		logs, err := b.fetch(ctx, blockRange, addresses, topics)
		if err != nil {
			return nil, err
		}
		out = append(out, logs...)
	}
	return out, nil
}

// Replay re-ingests the logs of contract c from block from up to the chain
// head. Jobs already enqueued come out identical and are deduplicated
// downstream.
func (b *Backfiller) Replay(ctx context.Context, c ContractSpec, from uint64) error {
	head, err := b.source.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}
	if from > head {
		return nil
	}
	topics, err := b.ingestor.decoder.Topics(c.Events)
	if err != nil {
		return err
	}
	ranges, err := SplitRange(from, head, b.cfg.MaxRange)
	if err != nil {
		return err
	}

	addresses := []common.Address{c.Address}
	for _, blockRange := range ranges {
		logs, err := b.fetch(ctx, blockRange, addresses, topics)
		if err != nil {
			return err
		}
		for _, log := range logs {
			if err := b.ingestor.handle(ctx, log); err != nil {
				return err
			}
		}
	}
	b.logger.Info("replay complete", zap.String("contract", c.Name), zap.Uint64("from", from), zap.Uint64("to", head))
	return nil
}

func (b *Backfiller) fetch(ctx context.Context, blockRange BlockRange, addresses []common.Address, topics []common.Hash) ([]types.Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.logger.Debug("fetch logs", zap.Stringer("range", blockRange), zap.Uint64("blocks", blockRange.Len()))

	var logs []types.Log
	err := withRetry(ctx, b.cfg.MaxRetries, b.cfg.RetryBackoff, func(ctx context.Context) error {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		logs, err = b.source.FilterLogs(ctx, blockRange.From, blockRange.To, addresses, topics)
		if err != nil {
			b.logger.Warn("filter logs failed", zap.Stringer("range", blockRange), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("filter logs %s: %w", blockRange, err)
	}
	return logs, nil
}
