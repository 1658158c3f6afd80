package strategy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/allocation"
)

const (
	StepBridge             = "bridge"
	StepSwap               = "swap"
	StepOpenPosition       = "open_position"
	StepStake              = "stake"
	StepUnstake            = "unstake"
	StepClosePosition      = "close_position"
	StepSwapBack           = "swap_back"
	StepBridgeBack         = "bridge_back"
	StepCompleteWithdrawal = "complete_withdrawal"
)

type bridgeStep struct{ bridger Bridger }

func (s bridgeStep) Name() string { return StepBridge }

func (s bridgeStep) Execute(ctx context.Context, rc RunContext) (StepResult, error) {
	res, err := s.bridger.Bridge(ctx, rc.User, rc.Amount)
	return txStepResult(res, err)
}

type swapStep struct{ swapper Swapper }

func (s swapStep) Name() string { return StepSwap }

func (s swapStep) Execute(ctx context.Context, rc RunContext) (StepResult, error) {
	res, err := s.swapper.Swap(ctx, rc.User, rc.Amount)
	return txStepResult(res, err)
}

type stakeStep struct{ staker Staker }

func (s stakeStep) Name() string { return StepStake }

func (s stakeStep) Execute(ctx context.Context, rc RunContext) (StepResult, error) {
	res, err := s.staker.Stake(ctx, rc.User, rc.Amount)
	return txStepResult(res, err)
}

// openPositionStep shorts the hedge leg.
type openPositionStep struct {
	exchange Exchange
	symbol   string
	size     *big.Int
}

func (s openPositionStep) Name() string { return StepOpenPosition }

func (s openPositionStep) Execute(ctx context.Context, _ RunContext) (StepResult, error) {
	res, err := s.exchange.CreateMarketOrder(ctx, OrderParams{
		Symbol: s.symbol,
		Side:   SideSell,
		Size:   s.size,
	})
	return orderStepResult(res, err)
}

type unstakeStep struct {
	staker Staker
	order  allocation.UnstakeOrder
}

func (s unstakeStep) Name() string { return StepUnstake }

func (s unstakeStep) Execute(ctx context.Context, rc RunContext) (StepResult, error) {
	var (
		res TxResult
		err error
	)
	switch s.order.Mode {
	case allocation.UnstakeAll:
		res, err = s.staker.UnstakeAll(ctx, rc.User)
	case allocation.UnstakePercent:
		res, err = s.staker.Unstake(ctx, UnstakeRequest{User: rc.User, Percent: s.order.Percent, IsPercent: true})
	case allocation.UnstakeAmount:
		res, err = s.staker.Unstake(ctx, UnstakeRequest{User: rc.User, Amount: s.order.Amount})
	default:
		return StepResult{}, fmt.Errorf("unexpected unstake mode %s", s.order.Mode)
	}

	result, err := txStepResult(res, err)
	if err != nil {
		return result, err
	}
	result.Details["mode"] = s.order.Mode.String()
	if s.order.Mode == allocation.UnstakeAmount {
		result.Details["unstake_amount"] = s.order.Amount.String()
	} else {
		result.Details["percent"] = s.order.Percent.String()
	}
	return result, nil
}

type closePositionStep struct {
	exchange Exchange
	symbol   string
	order    allocation.CloseOrder
}

func (s closePositionStep) Name() string { return StepClosePosition }

func (s closePositionStep) Execute(ctx context.Context, _ RunContext) (StepResult, error) {
	var (
		res OrderResult
		err error
	)
	switch s.order.Mode {
	case allocation.CloseAll:
		res, err = s.exchange.ClosePosition(ctx, s.symbol)
	case allocation.ClosePartial:
		res, err = s.exchange.CreateMarketOrder(ctx, OrderParams{
			Symbol:     s.symbol,
			Side:       SideBuy,
			Size:       s.order.Size,
			ReduceOnly: true,
		})
	default:
		return StepResult{}, fmt.Errorf("unexpected close mode %s", s.order.Mode)
	}

	result, err := orderStepResult(res, err)
	if err != nil {
		return result, err
	}
	result.Details["mode"] = s.order.Mode.String()
	result.Details["percent"] = s.order.Percent.String()
	return result, nil
}

type swapBackStep struct{ swapper Swapper }

func (s swapBackStep) Name() string { return StepSwapBack }

func (s swapBackStep) Execute(ctx context.Context, rc RunContext) (StepResult, error) {
	res, err := s.swapper.SwapBack(ctx, rc.User)
	return txStepResult(res, err)
}

type bridgeBackStep struct{ bridger Bridger }

func (s bridgeBackStep) Name() string { return StepBridgeBack }

func (s bridgeBackStep) Execute(ctx context.Context, rc RunContext) (StepResult, error) {
	res, err := s.bridger.BridgeBack(ctx, rc.User)
	return txStepResult(res, err)
}

type completeWithdrawalStep struct{ finalizer Finalizer }

func (s completeWithdrawalStep) Name() string { return StepCompleteWithdrawal }

func (s completeWithdrawalStep) Execute(ctx context.Context, rc RunContext) (StepResult, error) {
	res, err := s.finalizer.CompleteWithdrawal(ctx, rc.User, rc.Amount, rc.CorrelationID)
	return txStepResult(res, err)
}

func txStepResult(res TxResult, err error) (StepResult, error) {
	if err != nil {
		return StepResult{}, err
	}
	if !res.Success {
		return StepResult{}, fmt.Errorf("transaction %q reported failure", res.TxHash)
	}
	return StepResult{Success: true, ExternalID: res.TxHash, Details: copyDetails(res.Details)}, nil
}

func orderStepResult(res OrderResult, err error) (StepResult, error) {
	if err != nil {
		return StepResult{}, err
	}
	if res.Status == OrderRejected {
		return StepResult{}, fmt.Errorf("order %s rejected", res.OrderID)
	}
	return StepResult{
		Success:    true,
		ExternalID: res.OrderID,
		Details: map[string]string{
			"order_type":  res.OrderType,
			"status":      string(res.Status),
			"filled_size": res.FilledSize.String(),
		},
	}, nil
}

func copyDetails(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
