package allocation

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	// UnstakeAllThreshold is the dust cutoff above which everything is unstaked.
	UnstakeAllThreshold = decimal.RequireFromString("99.9")
	// CloseAllThreshold is the cutoff above which the hedge position is closed in full.
	CloseAllThreshold = decimal.NewFromInt(99)

	hundred = decimal.NewFromInt(100)
	bpsUnit = big.NewInt(10000)
)

// AllocationError reports invalid split parameters.
type AllocationError struct {
	Reason string
}

func (e *AllocationError) Error() string {
	return "allocation: " + e.Reason
}

// Split holds leg amounts that always sum to the input amount.
type Split struct {
	Legs []*big.Int
}

// Total returns the sum of all legs.
func (s Split) Total() *big.Int {
	total := new(big.Int)
	for _, leg := range s.Legs {
		total.Add(total, leg)
	}
	return total
}

// SplitEven divides amount into n equal legs; the remainder goes to the first leg.
func SplitEven(amount *big.Int, n int) (Split, error) {
	if amount == nil {
		return Split{}, &AllocationError{Reason: "amount is required"}
	}
	if amount.Sign() < 0 {
		return Split{}, &AllocationError{Reason: fmt.Sprintf("negative amount %s", amount)}
	}
	if n < 1 {
		return Split{}, &AllocationError{Reason: fmt.Sprintf("leg count must be positive, got %d", n)}
	}

	share, rem := new(big.Int).QuoRem(amount, big.NewInt(int64(n)), new(big.Int))
	legs := make([]*big.Int, n)
	for i := range legs {
		legs[i] = new(big.Int).Set(share)
	}
	legs[0].Add(legs[0], rem)
	return Split{Legs: legs}, nil
}

// SplitDeposit splits a deposit into the stake leg and the hedge leg.
func SplitDeposit(amount *big.Int) (Split, error) {
	if amount != nil && amount.Sign() == 0 {
		return Split{}, &AllocationError{Reason: "deposit amount must be positive"}
	}
	return SplitEven(amount, 2)
}

// Percentage returns floor(leg*10000/total)/100 clamped to [0,100].
// ok is false when total is zero and the leg should be skipped.
func Percentage(leg, total *big.Int) (pct decimal.Decimal, ok bool) {
	if total == nil || total.Sign() <= 0 {
		return decimal.Zero, false
	}
	if leg == nil || leg.Sign() <= 0 {
		return decimal.Zero, true
	}
	bps := new(big.Int).Mul(leg, bpsUnit)
	bps.Quo(bps, total)
	if bps.Cmp(bpsUnit) > 0 {
		bps.Set(bpsUnit)
	}
	return decimal.NewFromBigInt(bps, -2), true
}

// ValidatePercent rejects percentages outside (0,100].
func ValidatePercent(pct decimal.Decimal) error {
	if !pct.IsPositive() || pct.GreaterThan(hundred) {
		return &AllocationError{Reason: fmt.Sprintf("percentage %s outside (0,100]", pct)}
	}
	return nil
}

// PercentOf returns floor(value * pct / 100).
func PercentOf(value *big.Int, pct decimal.Decimal) *big.Int {
	if value == nil {
		return new(big.Int)
	}
	return decimal.NewFromBigInt(value, 0).Mul(pct).Div(hundred).Floor().BigInt()
}
