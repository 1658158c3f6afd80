package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LogSubscriber opens live log subscriptions.
type LogSubscriber interface {
	SubscribeLogs(ctx context.Context, addresses []common.Address, topic0 []common.Hash, ch chan<- types.Log) (ethereum.Subscription, error)
}

// GapReplayer re-ingests one contract's logs from a block to the chain head.
// Backfiller implements it.
type GapReplayer interface {
	Replay(ctx context.Context, c ContractSpec, from uint64) error
}

// IngestError reports a live log that could not be enqueued.
type IngestError struct {
	Block uint64
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest log at block %d: %v", e.Block, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// ListenerConfig tunes resubscription.
type ListenerConfig struct {
	BufferSize   int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
}

// Listener keeps one live subscription per contract and feeds the Ingestor.
type Listener struct {
	cfg        ListenerConfig
	subscriber LogSubscriber
	ingestor   *Ingestor
	replayer   GapReplayer
	logger     *zap.Logger
}

// gap is the first block whose logs may not have been enqueued.
type gap struct {
	from uint64
	open bool
}

func (g *gap) mark(block uint64) {
	if !g.open || block < g.from {
		g.from = block
		g.open = true
	}
}

func NewListener(cfg ListenerConfig, subscriber LogSubscriber, ingestor *Ingestor, logger *zap.Logger) *Listener {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 128
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{cfg: cfg, subscriber: subscriber, ingestor: ingestor, logger: logger}
}

// WithReplayer lets the listener recover logs it failed to enqueue. Without
// one, an enqueue failure stops the listener.
func (l *Listener) WithReplayer(r GapReplayer) *Listener {
	l.replayer = r
	return l
}

// Run blocks until ctx is cancelled or a contract cannot be watched.
func (l *Listener) Run(ctx context.Context) error {
	if l.subscriber == nil {
		return fmt.Errorf("log subscriber is nil")
	}
	if l.ingestor == nil {
		return fmt.Errorf("ingestor is nil")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range l.ingestor.Contracts() {
		topics, err := l.ingestor.decoder.Topics(c.Events)
		if err != nil {
			return fmt.Errorf("contract %s: %w", c.Name, err)
		}
		c := c
		g.Go(func() error { return l.watch(gctx, c, topics) })
	}
	return g.Wait()
}

func (l *Listener) watch(ctx context.Context, c ContractSpec, topics []common.Hash) error {
	logger := l.logger.With(zap.String("contract", c.Name), zap.String("address", c.Address.Hex()))
	delay := l.cfg.RetryBackoff
	var missed gap

	for {
		established, err := l.subscribeOnce(ctx, c, topics, &missed, logger)
		if ctx.Err() != nil {
			return nil
		}

		var ingestErr *IngestError
		if errors.As(err, &ingestErr) {
			if l.replayer == nil {
				return fmt.Errorf("contract %s: %w", c.Name, err)
			}
			missed.mark(ingestErr.Block)
		}
		if established && !missed.open {
			delay = l.cfg.RetryBackoff
		}
		logger.Warn("subscription dropped, resubscribing", zap.Error(err), zap.Duration("delay", delay))

		if err := sleep(ctx, delay); err != nil {
			return nil
		}
		delay = nextDelay(delay, l.cfg.MaxBackoff)
	}
}

// subscribeOnce replays any open gap once the new subscription is live, so
// logs emitted during the replay arrive on the channel.
func (l *Listener) subscribeOnce(ctx context.Context, c ContractSpec, topics []common.Hash, missed *gap, logger *zap.Logger) (bool, error) {
	ch := make(chan types.Log, l.cfg.BufferSize)
	sub, err := l.subscriber.SubscribeLogs(ctx, []common.Address{c.Address}, topics, ch)
	if err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()
	logger.Info("subscribed", zap.Strings("events", c.Events))

	if missed.open {
		if err := l.replayer.Replay(ctx, c, missed.from); err != nil {
			return true, fmt.Errorf("replay from block %d: %w", missed.from, err)
		}
		logger.Info("replayed missed logs", zap.Uint64("from", missed.from))
		missed.open = false
	}

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case err := <-sub.Err():
			return true, err
		case log := <-ch:
			if err := l.ingestor.handle(ctx, log); err != nil {
				logger.Error("ingest live log failed", zap.Uint64("block", log.BlockNumber), zap.Error(err))
				return true, &IngestError{Block: log.BlockNumber, Err: err}
			}
		}
	}
}
