package strategy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/allocation"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/metrics"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/queue"
)

const stepAllocate = "allocate"

// WithdrawalPipeline unwinds a user's share: unstake, close the hedge,
// swap and bridge back, then complete the request on chain.
type WithdrawalPipeline struct {
	deps        Dependencies
	runner      stepRunner
	compensator *Compensator
	now         func() time.Time
}

// NewWithdrawalPipeline validates the collaborators a withdrawal needs.
func NewWithdrawalPipeline(deps Dependencies) (*WithdrawalPipeline, error) {
	if deps.Bridger == nil || deps.Swapper == nil || deps.Staker == nil || deps.Finalizer == nil {
		return nil, fmt.Errorf("withdrawal pipeline requires bridger, swapper, staker and finalizer")
	}
	if err := deps.validateHedge(); err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	return &WithdrawalPipeline{
		deps:   deps,
		runner: deps.runner(),
		compensator: &Compensator{
			metrics:  deps.Metrics,
			notifier: deps.Notifier,
			recovery: deps.Recovery,
			logger:   deps.Logger,
		},
		now: time.Now,
	}, nil
}

// Run executes the withdrawal identified by rc.CorrelationID. Any failure runs
// compensation once and the original error is returned.
func (p *WithdrawalPipeline) Run(ctx context.Context, rc RunContext) error {
	if p.deps.Locker != nil {
		unlock, err := p.deps.Locker.Lock(ctx, "withdrawal:"+rc.User.Hex())
		if errors.Is(err, queue.ErrLocked) {
			return fmt.Errorf("%w: %s", ErrUserBusy, rc.User.Hex())
		}
		if err != nil {
			return fmt.Errorf("lock user %s: %w", rc.User.Hex(), err)
		}
		defer unlock()
	}

	start := p.now()
	if err := p.execute(ctx, rc); err != nil {
		p.compensator.Compensate(ctx, rc, err, p.now().Sub(start))
		return err
	}

	p.deps.Metrics.WriteWithdrawalMetrics(metrics.WithdrawalInfo{
		User:         rc.User.Hex(),
		MMMAmount:    rc.Amount,
		WithdrawalID: rc.CorrelationID,
		Status:       metrics.WithdrawalCompleted,
		Duration:     p.now().Sub(start),
	})
	p.deps.recordOutcome(ctx, "withdrawal_completed", rc, nil)
	return nil
}

func (p *WithdrawalPipeline) execute(ctx context.Context, rc RunContext) error {
	logger := p.deps.Logger.With(
		zap.String("pipeline", "withdrawal"),
		zap.String("user", rc.User.Hex()),
		zap.String("withdrawal_id", rc.CorrelationID),
	)
	logger.Info("withdrawal pipeline start", zap.Stringer("amount", rc.Amount))

	plan, err := p.allocate(ctx, rc)
	if err != nil {
		return err
	}
	logger.Info("withdrawal allocation",
		zap.String("stake_leg", plan.StakeLeg.String()),
		zap.String("position_leg", plan.PositionLeg.String()),
		zap.Stringer("unstake_mode", plan.Unstake.Mode),
		zap.String("unstake_percent", plan.Unstake.Percent.String()),
		zap.Stringer("close_mode", plan.Close.Mode),
		zap.String("close_percent", plan.Close.Percent.String()),
	)

	if plan.Unstake.Mode != allocation.UnstakeSkip {
		res, err := p.runner.run(ctx, unstakeStep{staker: p.deps.Staker, order: plan.Unstake}, rc.withAmount(plan.StakeLeg))
		if err != nil {
			return err
		}
		p.deps.Metrics.WriteUnstakingInfo(metrics.UnstakingInfo{
			User:          rc.User.Hex(),
			Mode:          plan.Unstake.Mode.String(),
			Percent:       plan.Unstake.Percent.String(),
			Amount:        plan.Unstake.Amount,
			TxHash:        res.ExternalID,
			CorrelationID: rc.CorrelationID,
		})
	} else {
		logger.Info("unstake skipped")
	}

	if plan.Close.Mode != allocation.CloseSkip {
		step := closePositionStep{exchange: p.deps.Exchange, symbol: p.deps.HedgeSymbol, order: plan.Close}
		if _, err := p.runner.run(ctx, step, rc.withAmount(plan.PositionLeg)); err != nil {
			return err
		}
	} else {
		logger.Info("position close skipped")
	}

	swapRes, err := p.runner.run(ctx, swapBackStep{swapper: p.deps.Swapper}, rc)
	if err != nil {
		return err
	}
	p.deps.Metrics.WriteSwapInfo(metrics.SwapInfo{
		User:          rc.User.Hex(),
		Direction:     metrics.SwapOut,
		TxHash:        swapRes.ExternalID,
		CorrelationID: rc.CorrelationID,
	})

	if _, err := p.runner.run(ctx, bridgeBackStep{bridger: p.deps.Bridger}, rc); err != nil {
		return err
	}
	if _, err := p.runner.run(ctx, completeWithdrawalStep{finalizer: p.deps.Finalizer}, rc); err != nil {
		return err
	}

	logger.Info("withdrawal pipeline completed")
	return nil
}

// allocate reads current totals and plans both legs. The totals are not
// re-validated later in the run.
func (p *WithdrawalPipeline) allocate(ctx context.Context, rc RunContext) (allocation.WithdrawalPlan, error) {
	stakedTotal, err := p.deps.Staker.StakedTotal(ctx, rc.User)
	if err != nil {
		return allocation.WithdrawalPlan{}, &StepError{Step: stepAllocate, Cause: fmt.Errorf("read staked total: %w", err)}
	}

	var positionValue *big.Int
	if p.deps.Exchange != nil {
		positionValue, err = p.deps.Exchange.PositionValue(ctx, p.deps.HedgeSymbol)
		if err != nil {
			return allocation.WithdrawalPlan{}, &StepError{Step: stepAllocate, Cause: fmt.Errorf("read position value: %w", err)}
		}
	}

	return allocation.PlanWithdrawal(rc.Amount, stakedTotal, positionValue)
}
