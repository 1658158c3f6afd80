package strategy

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
)

// TxResult is returned by on-chain collaborators once the transaction is confirmed.
type TxResult struct {
	Success bool
	TxHash  string
	Details map[string]string
}

// Bridger moves funds between the origin chain and the staking chain.
type Bridger interface {
	Bridge(ctx context.Context, user common.Address, amount *big.Int) (TxResult, error)
	BridgeBack(ctx context.Context, user common.Address) (TxResult, error)
}

// Swapper converts between the deposit asset and the staking asset.
type Swapper interface {
	Swap(ctx context.Context, user common.Address, amount *big.Int) (TxResult, error)
	SwapBack(ctx context.Context, user common.Address) (TxResult, error)
}

// UnstakeRequest is a partial unstake, either a percentage of the stake or a raw amount.
type UnstakeRequest struct {
	User      common.Address
	Amount    *big.Int
	Percent   decimal.Decimal
	IsPercent bool
}

// Staker manages the yield-bearing stake.
type Staker interface {
	Stake(ctx context.Context, user common.Address, amount *big.Int) (TxResult, error)
	Unstake(ctx context.Context, req UnstakeRequest) (TxResult, error)
	UnstakeAll(ctx context.Context, user common.Address) (TxResult, error)
	StakedTotal(ctx context.Context, user common.Address) (*big.Int, error)
}

// Finalizer completes a withdrawal request in the vault contract.
type Finalizer interface {
	CompleteWithdrawal(ctx context.Context, user common.Address, amount *big.Int, withdrawalID string) (TxResult, error)
}

// OrderSide of an exchange order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderStatus reported by the exchange.
type OrderStatus string

const (
	OrderOpen     OrderStatus = "open"
	OrderFilled   OrderStatus = "filled"
	OrderRejected OrderStatus = "rejected"
)

// OrderParams describes a market order.
type OrderParams struct {
	Symbol     string
	Side       OrderSide
	Size       *big.Int
	ReduceOnly bool
}

// OrderResult is the exchange response to an order.
type OrderResult struct {
	OrderID    string
	OrderType  string
	Status     OrderStatus
	FilledSize decimal.Decimal
}

// Exchange holds the hedge position.
type Exchange interface {
	CreateMarketOrder(ctx context.Context, params OrderParams) (OrderResult, error)
	ClosePosition(ctx context.Context, symbol string) (OrderResult, error)
	PositionValue(ctx context.Context, symbol string) (*big.Int, error)
}

// RecoveryTaskStore persists recovery tasks for failed withdrawals.
type RecoveryTaskStore interface {
	CreateRecoveryTask(ctx context.Context, task model.RecoveryTask) error
}

// UserLocker serializes pipeline runs per user across workers.
type UserLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
