package strategy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/allocation"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/metrics"
)

// DepositPipeline runs Bridge, Swap, optional OpenPosition and Stake for a deposit.
type DepositPipeline struct {
	deps   Dependencies
	runner stepRunner
}

// NewDepositPipeline validates the collaborators a deposit needs.
func NewDepositPipeline(deps Dependencies) (*DepositPipeline, error) {
	if deps.Bridger == nil || deps.Swapper == nil || deps.Staker == nil {
		return nil, fmt.Errorf("deposit pipeline requires bridger, swapper and staker")
	}
	if err := deps.validateHedge(); err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	return &DepositPipeline{deps: deps, runner: deps.runner()}, nil
}

// Run executes the deposit. The first failing step aborts the run and its
// StepError is returned; completed steps are not compensated.
func (p *DepositPipeline) Run(ctx context.Context, rc RunContext) error {
	logger := p.deps.Logger.With(
		zap.String("pipeline", "deposit"),
		zap.String("user", rc.User.Hex()),
		zap.String("correlation_id", rc.CorrelationID),
	)

	split, err := allocation.SplitDeposit(rc.Amount)
	if err != nil {
		return err
	}
	stakeLeg, hedgeLeg := split.Legs[0], split.Legs[1]
	logger.Info("deposit pipeline start",
		zap.String("amount", rc.Amount.String()),
		zap.String("stake_leg", stakeLeg.String()),
		zap.String("hedge_leg", hedgeLeg.String()),
	)

	legCtx := rc.withAmount(stakeLeg)

	if _, err := p.runner.run(ctx, bridgeStep{bridger: p.deps.Bridger}, legCtx); err != nil {
		return err
	}

	swapRes, err := p.runner.run(ctx, swapStep{swapper: p.deps.Swapper}, legCtx)
	if err != nil {
		return err
	}
	p.deps.Metrics.WriteSwapInfo(metrics.SwapInfo{
		User:          rc.User.Hex(),
		Direction:     metrics.SwapIn,
		Amount:        stakeLeg,
		TxHash:        swapRes.ExternalID,
		CorrelationID: rc.CorrelationID,
	})

	if p.deps.Exchange != nil && hedgeLeg.Sign() > 0 {
		step := openPositionStep{exchange: p.deps.Exchange, symbol: p.deps.HedgeSymbol, size: hedgeLeg}
		if _, err := p.runner.run(ctx, step, rc.withAmount(hedgeLeg)); err != nil {
			return err
		}
	} else {
		logger.Info("hedge position skipped", zap.Bool("exchange_configured", p.deps.Exchange != nil))
	}

	stakeRes, err := p.runner.run(ctx, stakeStep{staker: p.deps.Staker}, legCtx)
	if err != nil {
		return err
	}
	p.deps.Metrics.WriteStakingInfo(metrics.StakingInfo{
		User:          rc.User.Hex(),
		Amount:        stakeLeg,
		TxHash:        stakeRes.ExternalID,
		CorrelationID: rc.CorrelationID,
	})

	p.deps.recordOutcome(ctx, "deposit_completed", rc, map[string]any{
		"stake_leg": stakeLeg.String(),
		"hedge_leg": hedgeLeg.String(),
	})
	logger.Info("deposit pipeline completed")
	return nil
}
