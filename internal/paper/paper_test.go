package paper

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/strategy"
)

var user = common.HexToAddress("0x00000000000000000000000000000000000000a1")

type fixedReader struct{ amount *big.Int }

func (r fixedReader) StakedAmount(context.Context, common.Address) (*big.Int, error) {
	return r.amount, nil
}

func TestVenueStakeAndUnstake(t *testing.T) {
	v := NewVenue(nil, nil)
	ctx := context.Background()

	res, err := v.Stake(ctx, user, big.NewInt(1000))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.TxHash)

	res, err = v.Unstake(ctx, strategy.UnstakeRequest{User: user, Percent: decimal.NewFromInt(25), IsPercent: true})
	require.NoError(t, err)
	assert.True(t, res.Success)

	total, err := v.StakedTotal(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "750", total.String())

	res, err = v.Unstake(ctx, strategy.UnstakeRequest{User: user, Amount: big.NewInt(751)})
	require.NoError(t, err)
	assert.False(t, res.Success, "unstake above the stake fails")

	_, err = v.UnstakeAll(ctx, user)
	require.NoError(t, err)
	total, err = v.StakedTotal(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, total.Sign())
}

func TestVenueStakedTotalFromReader(t *testing.T) {
	v := NewVenue(fixedReader{amount: big.NewInt(42)}, nil)
	total, err := v.StakedTotal(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "42", total.String())
}

func TestVenuePosition(t *testing.T) {
	v := NewVenue(nil, nil)
	ctx := context.Background()

	res, err := v.CreateMarketOrder(ctx, strategy.OrderParams{Symbol: "AXSUSDT", Side: strategy.SideSell, Size: big.NewInt(500)})
	require.NoError(t, err)
	assert.Equal(t, strategy.OrderFilled, res.Status)

	res, err = v.CreateMarketOrder(ctx, strategy.OrderParams{Symbol: "AXSUSDT", Side: strategy.SideBuy, Size: big.NewInt(600), ReduceOnly: true})
	require.NoError(t, err)
	assert.Equal(t, strategy.OrderRejected, res.Status)

	res, err = v.CreateMarketOrder(ctx, strategy.OrderParams{Symbol: "AXSUSDT", Side: strategy.SideBuy, Size: big.NewInt(200), ReduceOnly: true})
	require.NoError(t, err)
	assert.Equal(t, strategy.OrderFilled, res.Status)

	value, err := v.PositionValue(ctx, "AXSUSDT")
	require.NoError(t, err)
	assert.Equal(t, "300", value.String())

	res, err = v.ClosePosition(ctx, "AXSUSDT")
	require.NoError(t, err)
	assert.True(t, res.FilledSize.Equal(decimal.NewFromInt(300)))
}

func TestVenueRunsDepositAndWithdrawal(t *testing.T) {
	v := NewVenue(nil, nil)
	deps := strategy.Dependencies{
		Bridger: v, Swapper: v, Staker: v, Exchange: v, Finalizer: v,
		HedgeSymbol: "AXSUSDT",
	}
	deposit, err := strategy.NewDepositPipeline(deps)
	require.NoError(t, err)
	withdrawal, err := strategy.NewWithdrawalPipeline(deps)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, deposit.Run(ctx, strategy.RunContext{User: user, Amount: big.NewInt(1000), CorrelationID: "d1"}))
	require.NoError(t, withdrawal.Run(ctx, strategy.RunContext{User: user, Amount: big.NewInt(1000), CorrelationID: "w1"}))

	staked, err := v.StakedTotal(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, staked.Sign())
	pos, err := v.PositionValue(ctx, "AXSUSDT")
	require.NoError(t, err)
	assert.Zero(t, pos.Sign())
}
