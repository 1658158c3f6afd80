package dispatcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/storage"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/strategy"
)

// Pipeline is a strategy run, satisfied by the deposit and withdrawal pipelines.
type Pipeline interface {
	Run(ctx context.Context, rc strategy.RunContext) error
}

// Handlers are the pipelines and sinks bound to the vault events.
type Handlers struct {
	Deposit    Pipeline
	Withdrawal Pipeline
	Operations storage.OperationLog
	Logger     *zap.Logger
}

// Register binds the vault events on r. Nil pipelines leave their event unbound.
func (h Handlers) Register(r *Router) {
	if h.Deposit != nil {
		r.Handle(model.EventDeposited, DepositHandler(h.Deposit))
	}
	if h.Withdrawal != nil {
		r.Handle(model.EventWithdrawn, WithdrawalHandler(h.Withdrawal))
	}
	r.Handle(model.EventProfitAdded, ProfitHandler(h.Operations, h.Logger))
}

// DepositHandler runs the deposit pipeline on the USDT amount of a Deposited event.
func DepositHandler(p Pipeline) EventHandler {
	return func(ctx context.Context, event model.ContractEvent) error {
		if event.Deposited == nil {
			return fmt.Errorf("%s: missing deposit payload", event.Name)
		}
		return p.Run(ctx, strategy.RunContext{
			User:          event.Deposited.User,
			Amount:        event.Deposited.AmountUSDT,
			CorrelationID: event.CorrelationID(),
		})
	}
}

// WithdrawalHandler runs the withdrawal pipeline on the MMM amount of a Withdrawn event.
func WithdrawalHandler(p Pipeline) EventHandler {
	return func(ctx context.Context, event model.ContractEvent) error {
		if event.Withdrawn == nil {
			return fmt.Errorf("%s: missing withdrawal payload", event.Name)
		}
		return p.Run(ctx, strategy.RunContext{
			User:          event.Withdrawn.User,
			Amount:        event.Withdrawn.AmountMMM,
			CorrelationID: event.CorrelationID(),
		})
	}
}

// ProfitHandler journals a ProfitAdded event.
func ProfitHandler(ops storage.OperationLog, logger *zap.Logger) EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, event model.ContractEvent) error {
		if event.ProfitAdded == nil {
			return fmt.Errorf("%s: missing profit payload", event.Name)
		}
		amount := event.ProfitAdded.AmountUSDT.String()
		logger.Info("profit added",
			zap.String("contract", event.Contract),
			zap.String("amount_usdt", amount),
			zap.Uint64("block", event.BlockNumber),
		)
		if ops == nil {
			return nil
		}
		err := ops.RecordOperation(ctx, "profit_added", map[string]any{
			"correlation_id": event.CorrelationID(),
			"contract":       event.Contract,
			"amount_usdt":    amount,
			"block":          event.BlockNumber,
			"tx_hash":        event.TxHash,
		})
		if err != nil {
			return fmt.Errorf("record profit: %w", err)
		}
		return nil
	}
}
