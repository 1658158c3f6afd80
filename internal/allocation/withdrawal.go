package allocation

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// UnstakeMode selects the unstake operation.
type UnstakeMode int

const (
	UnstakeSkip UnstakeMode = iota
	UnstakePercent
	UnstakeAmount
	UnstakeAll
)

func (m UnstakeMode) String() string {
	switch m {
	case UnstakePercent:
		return "percent"
	case UnstakeAmount:
		return "amount"
	case UnstakeAll:
		return "all"
	default:
		return "skip"
	}
}

// UnstakeOrder describes the unstake leg of a withdrawal.
type UnstakeOrder struct {
	Mode    UnstakeMode
	Percent decimal.Decimal
	Amount  *big.Int
}

// CloseMode selects the hedge close operation.
type CloseMode int

const (
	CloseSkip CloseMode = iota
	ClosePartial
	CloseAll
)

func (m CloseMode) String() string {
	switch m {
	case ClosePartial:
		return "partial"
	case CloseAll:
		return "all"
	default:
		return "skip"
	}
}

// CloseOrder describes the position leg of a withdrawal.
type CloseOrder struct {
	Mode    CloseMode
	Percent decimal.Decimal
	Size    *big.Int
}

// WithdrawalPlan is the allocation of one withdrawal across stake and hedge.
type WithdrawalPlan struct {
	StakeLeg    *big.Int
	PositionLeg *big.Int
	Unstake     UnstakeOrder
	Close       CloseOrder
}

// PlanWithdrawal splits amount in half and converts each leg into an
// operation against the current staked total and position value.
func PlanWithdrawal(amount, stakedTotal, positionValue *big.Int) (WithdrawalPlan, error) {
	split, err := SplitEven(amount, 2)
	if err != nil {
		return WithdrawalPlan{}, err
	}

	plan := WithdrawalPlan{
		StakeLeg:    split.Legs[0],
		PositionLeg: split.Legs[1],
	}
	if plan.Unstake, err = planUnstake(plan.StakeLeg, stakedTotal); err != nil {
		return WithdrawalPlan{}, err
	}
	if plan.Close, err = planClose(plan.PositionLeg, positionValue); err != nil {
		return WithdrawalPlan{}, err
	}
	return plan, nil
}

func planUnstake(leg, stakedTotal *big.Int) (UnstakeOrder, error) {
	pct, ok := Percentage(leg, stakedTotal)
	if !ok || leg.Sign() == 0 {
		return UnstakeOrder{Mode: UnstakeSkip}, nil
	}
	if pct.GreaterThanOrEqual(UnstakeAllThreshold) {
		return UnstakeOrder{Mode: UnstakeAll, Percent: hundred}, nil
	}
	if pct.IsPositive() {
		if err := ValidatePercent(pct); err != nil {
			return UnstakeOrder{}, err
		}
		return UnstakeOrder{Mode: UnstakePercent, Percent: pct}, nil
	}

	amount := new(big.Int).Set(leg)
	if amount.Cmp(stakedTotal) > 0 {
		amount.Set(stakedTotal)
	}
	return UnstakeOrder{Mode: UnstakeAmount, Amount: amount}, nil
}

func planClose(leg, positionValue *big.Int) (CloseOrder, error) {
	pct, ok := Percentage(leg, positionValue)
	if !ok || !pct.IsPositive() {
		return CloseOrder{Mode: CloseSkip}, nil
	}
	if pct.GreaterThanOrEqual(CloseAllThreshold) {
		return CloseOrder{Mode: CloseAll, Percent: hundred, Size: new(big.Int).Set(positionValue)}, nil
	}
	if err := ValidatePercent(pct); err != nil {
		return CloseOrder{}, err
	}
	return CloseOrder{Mode: ClosePartial, Percent: pct, Size: PercentOf(positionValue, pct)}, nil
}
