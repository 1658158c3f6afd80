package allocation

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wei(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestSplitDepositLegsSumToAmount(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	amounts := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3), wei(1000), new(big.Int).Add(wei(1000), big.NewInt(1))}
	for i := 0; i < 500; i++ {
		amounts = append(amounts, new(big.Int).Add(new(big.Int).Rand(rng, wei(1_000_000)), big.NewInt(1)))
	}

	for _, amount := range amounts {
		split, err := SplitDeposit(amount)
		require.NoError(t, err)
		require.Len(t, split.Legs, 2)
		assert.Zero(t, split.Total().Cmp(amount), "legs must sum to %s", amount)
		for _, leg := range split.Legs {
			assert.GreaterOrEqual(t, leg.Sign(), 0)
		}
		assert.GreaterOrEqual(t, split.Legs[0].Cmp(split.Legs[1]), 0, "remainder belongs to the first leg")
	}
}

func TestSplitEvenRemainderToFirstLeg(t *testing.T) {
	t.Parallel()

	split, err := SplitEven(big.NewInt(11), 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 3, 3}, []int64{split.Legs[0].Int64(), split.Legs[1].Int64(), split.Legs[2].Int64()})

	half, err := SplitDeposit(wei(1000))
	require.NoError(t, err)
	assert.Zero(t, half.Legs[0].Cmp(wei(500)))
	assert.Zero(t, half.Legs[1].Cmp(wei(500)))
}

func TestSplitRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	var allocErr *AllocationError
	_, err := SplitEven(nil, 2)
	require.ErrorAs(t, err, &allocErr)
	_, err = SplitEven(big.NewInt(-1), 2)
	require.ErrorAs(t, err, &allocErr)
	_, err = SplitEven(big.NewInt(10), 0)
	require.ErrorAs(t, err, &allocErr)
	_, err = SplitDeposit(big.NewInt(0))
	require.ErrorAs(t, err, &allocErr)
}

func TestPercentage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		leg   *big.Int
		total *big.Int
		want  string
		ok    bool
	}{
		{name: "five percent", leg: wei(50), total: wei(1000), want: "5", ok: true},
		{name: "floors to two decimals", leg: big.NewInt(1), total: big.NewInt(3), want: "33.33", ok: true},
		{name: "clamped", leg: wei(2000), total: wei(1000), want: "100", ok: true},
		{name: "tiny leg", leg: big.NewInt(50), total: wei(1000), want: "0", ok: true},
		{name: "zero total", leg: big.NewInt(50), total: big.NewInt(0), want: "0", ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Percentage(tt.leg, tt.total)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestValidatePercent(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidatePercent(decimal.NewFromInt(100)))
	require.NoError(t, ValidatePercent(decimal.RequireFromString("0.01")))

	var allocErr *AllocationError
	require.ErrorAs(t, ValidatePercent(decimal.Zero), &allocErr)
	require.ErrorAs(t, ValidatePercent(decimal.RequireFromString("100.01")), &allocErr)
}

func TestPlanWithdrawalPartialUnstake(t *testing.T) {
	t.Parallel()

	plan, err := PlanWithdrawal(wei(100), wei(1000), wei(1000))
	require.NoError(t, err)

	assert.Zero(t, plan.StakeLeg.Cmp(wei(50)))
	assert.Zero(t, plan.PositionLeg.Cmp(wei(50)))
	assert.Equal(t, UnstakePercent, plan.Unstake.Mode)
	assert.True(t, plan.Unstake.Percent.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, ClosePartial, plan.Close.Mode)
	assert.Zero(t, plan.Close.Size.Cmp(wei(50)))
}

func TestPlanWithdrawalDustThresholds(t *testing.T) {
	t.Parallel()

	// 999 of 1000 staked is 99.9%
	plan, err := PlanWithdrawal(wei(1998), wei(1000), wei(1000))
	require.NoError(t, err)
	assert.Equal(t, UnstakeAll, plan.Unstake.Mode)
	assert.Equal(t, CloseAll, plan.Close.Mode)

	// 99.8% stays partial for unstake but closes the position in full
	plan, err = PlanWithdrawal(wei(1996), wei(1000), wei(1000))
	require.NoError(t, err)
	assert.Equal(t, UnstakePercent, plan.Unstake.Mode)
	assert.True(t, plan.Unstake.Percent.Equal(decimal.RequireFromString("99.8")))
	assert.Equal(t, CloseAll, plan.Close.Mode)
}

func TestPlanWithdrawalSkipsEmptyTotals(t *testing.T) {
	t.Parallel()

	plan, err := PlanWithdrawal(wei(100), big.NewInt(0), nil)
	require.NoError(t, err)
	assert.Equal(t, UnstakeSkip, plan.Unstake.Mode)
	assert.Equal(t, CloseSkip, plan.Close.Mode)
}

func TestPlanWithdrawalRawAmountCappedAtStake(t *testing.T) {
	t.Parallel()

	plan, err := PlanWithdrawal(big.NewInt(100), wei(1000), wei(1000))
	require.NoError(t, err)
	assert.Equal(t, UnstakeAmount, plan.Unstake.Mode)
	assert.Zero(t, plan.Unstake.Amount.Cmp(big.NewInt(50)))

	plan, err = PlanWithdrawal(big.NewInt(3), big.NewInt(1), big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, UnstakeAll, plan.Unstake.Mode)
}

func TestPlanWithdrawalNeverOverUnstakes(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 1000; i++ {
		staked := new(big.Int).Add(new(big.Int).Rand(rng, wei(10_000)), big.NewInt(1))
		amount := new(big.Int).Rand(rng, new(big.Int).Mul(staked, big.NewInt(2)))

		plan, err := PlanWithdrawal(amount, staked, staked)
		require.NoError(t, err)

		switch plan.Unstake.Mode {
		case UnstakePercent:
			assert.True(t, plan.Unstake.Percent.LessThan(UnstakeAllThreshold))
			requested := PercentOf(staked, plan.Unstake.Percent)
			assert.LessOrEqual(t, requested.Cmp(staked), 0)
			assert.LessOrEqual(t, requested.Cmp(plan.StakeLeg), 0, "rounding must favor the protocol")
		case UnstakeAmount:
			assert.LessOrEqual(t, plan.Unstake.Amount.Cmp(staked), 0)
		case UnstakeAll:
			pct, _ := Percentage(plan.StakeLeg, staked)
			assert.True(t, pct.GreaterThanOrEqual(UnstakeAllThreshold))
		}
	}
}
