package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/contract"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/queue"
)

// Ingestor decodes raw logs of the watched contracts and enqueues them as jobs.
// The live and backfill paths share it so both produce identical jobs.
type Ingestor struct {
	decoder   *contract.Decoder
	queue     queue.Enqueuer
	contracts []ContractSpec
	byAddress map[common.Address]ContractSpec
	events    map[common.Address]map[string]struct{}
	logger    *zap.Logger

	maxRetries   int
	retryBackoff time.Duration
}

func NewIngestor(contracts []ContractSpec, decoder *contract.Decoder, q queue.Enqueuer, logger *zap.Logger) (*Ingestor, error) {
	if decoder == nil {
		return nil, fmt.Errorf("decoder is nil")
	}
	if q == nil {
		return nil, fmt.Errorf("queue is nil")
	}
	if len(contracts) == 0 {
		return nil, fmt.Errorf("at least one contract is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ing := &Ingestor{
		decoder:      decoder,
		queue:        q,
		contracts:    contracts,
		byAddress:    make(map[common.Address]ContractSpec, len(contracts)),
		events:       make(map[common.Address]map[string]struct{}, len(contracts)),
		logger:       logger,
		maxRetries:   3,
		retryBackoff: 500 * time.Millisecond,
	}
	for _, c := range contracts {
		if _, dup := ing.byAddress[c.Address]; dup {
			return nil, fmt.Errorf("contract %s: duplicate address %s", c.Name, c.Address.Hex())
		}
		if _, err := decoder.Topics(c.Events); err != nil {
			return nil, fmt.Errorf("contract %s: %w", c.Name, err)
		}
		ing.byAddress[c.Address] = c
		set := make(map[string]struct{}, len(c.Events))
		for _, e := range c.Events {
			set[contract.NormalizeEventName(e)] = struct{}{}
		}
		ing.events[c.Address] = set
	}
	return ing, nil
}

// WithEnqueueRetry sets how often a failed enqueue is retried.
func (i *Ingestor) WithEnqueueRetry(maxRetries int, backoff time.Duration) *Ingestor {
	i.maxRetries = maxRetries
	i.retryBackoff = backoff
	return i
}

// Contracts returns the watched contracts in configuration order.
func (i *Ingestor) Contracts() []ContractSpec {
	return i.contracts
}

// Addresses returns the watched contract addresses.
func (i *Ingestor) Addresses() []common.Address {
	out := make([]common.Address, 0, len(i.contracts))
	for _, c := range i.contracts {
		out = append(out, c.Address)
	}
	return out
}

// Topics returns the topic0 union of all watched events.
func (i *Ingestor) Topics() ([]common.Hash, error) {
	seen := make(map[common.Hash]struct{})
	var out []common.Hash
	for _, c := range i.contracts {
		topics, err := i.decoder.Topics(c.Events)
		if err != nil {
			return nil, err
		}
		for _, t := range topics {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out, nil
}

// handle decodes one log and enqueues it. Logs that are removed, foreign or
// undecodable are skipped. Only enqueue failures are returned.
func (i *Ingestor) handle(ctx context.Context, log types.Log) error {
	if log.Removed {
		i.logger.Info("skip removed log", zap.String("tx", log.TxHash.Hex()), zap.Uint("log_index", log.Index))
		return nil
	}
	spec, ok := i.byAddress[log.Address]
	if !ok {
		return nil
	}
	if len(log.Topics) == 0 || !i.decoder.CanDecode(log.Topics[0]) {
		return nil
	}

	event, err := i.decoder.Decode(spec.Name, log)
	if err != nil {
		i.logger.Warn("skip undecodable log",
			zap.String("contract", spec.Name),
			zap.Uint64("block", log.BlockNumber),
			zap.String("tx", log.TxHash.Hex()),
			zap.Error(err),
		)
		return nil
	}
	if _, watched := i.events[log.Address][string(event.Name)]; !watched {
		return nil
	}

	var jobID string
	err = withRetry(ctx, i.maxRetries, i.retryBackoff, func(ctx context.Context) error {
		var err error
		jobID, err = i.queue.Enqueue(ctx, model.JobTypeContractEvent, event)
		if err != nil {
			i.logger.Warn("enqueue failed", zap.String("event", string(event.Name)), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("enqueue %s at block %d: %w", event.Name, event.BlockNumber, err)
	}

	i.logger.Info("event enqueued",
		zap.String("contract", spec.Name),
		zap.String("event", string(event.Name)),
		zap.Uint64("block", event.BlockNumber),
		zap.String("job_id", jobID),
		zap.String("correlation_id", event.CorrelationID()),
	)
	return nil
}
