// Package paper provides collaborators that log every call and report
// success without moving funds. The worker uses them when no live adapters
// are configured.
package paper

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/allocation"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/strategy"
)

// StakeReader reads a live staked balance.
type StakeReader interface {
	StakedAmount(ctx context.Context, account common.Address) (*big.Int, error)
}

// Venue implements every strategy collaborator in memory.
type Venue struct {
	mu       sync.Mutex
	logger   *zap.Logger
	reader   StakeReader
	staked   map[common.Address]*big.Int
	position map[string]*big.Int
}

var (
	_ strategy.Bridger   = (*Venue)(nil)
	_ strategy.Swapper   = (*Venue)(nil)
	_ strategy.Staker    = (*Venue)(nil)
	_ strategy.Exchange  = (*Venue)(nil)
	_ strategy.Finalizer = (*Venue)(nil)
)

// NewVenue returns an empty venue. When reader is set, StakedTotal reports
// the on-chain balance instead of the simulated one.
func NewVenue(reader StakeReader, logger *zap.Logger) *Venue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Venue{
		logger:   logger,
		reader:   reader,
		staked:   make(map[common.Address]*big.Int),
		position: make(map[string]*big.Int),
	}
}

func txHash() string {
	return crypto.Keccak256Hash([]byte(uuid.NewString())).Hex()
}

func (v *Venue) ok(action string, fields ...zap.Field) strategy.TxResult {
	hash := txHash()
	v.logger.Info("paper "+action, append(fields, zap.String("tx", hash))...)
	return strategy.TxResult{Success: true, TxHash: hash}
}

func (v *Venue) Bridge(_ context.Context, user common.Address, amount *big.Int) (strategy.TxResult, error) {
	return v.ok("bridge", zap.String("user", user.Hex()), zap.String("amount", amount.String())), nil
}

func (v *Venue) BridgeBack(_ context.Context, user common.Address) (strategy.TxResult, error) {
	return v.ok("bridge back", zap.String("user", user.Hex())), nil
}

func (v *Venue) Swap(_ context.Context, user common.Address, amount *big.Int) (strategy.TxResult, error) {
	return v.ok("swap", zap.String("user", user.Hex()), zap.String("amount", amount.String())), nil
}

func (v *Venue) SwapBack(_ context.Context, user common.Address) (strategy.TxResult, error) {
	return v.ok("swap back", zap.String("user", user.Hex())), nil
}

func (v *Venue) Stake(_ context.Context, user common.Address, amount *big.Int) (strategy.TxResult, error) {
	if amount == nil || amount.Sign() <= 0 {
		return strategy.TxResult{}, fmt.Errorf("stake amount must be positive")
	}
	v.mu.Lock()
	total := v.balance(user)
	total.Add(total, amount)
	v.mu.Unlock()
	return v.ok("stake", zap.String("user", user.Hex()), zap.String("amount", amount.String())), nil
}

func (v *Venue) Unstake(_ context.Context, req strategy.UnstakeRequest) (strategy.TxResult, error) {
	v.mu.Lock()
	total := v.balance(req.User)
	amount := req.Amount
	if req.IsPercent {
		if err := allocation.ValidatePercent(req.Percent); err != nil {
			v.mu.Unlock()
			return strategy.TxResult{}, err
		}
		amount = allocation.PercentOf(total, req.Percent)
	}
	if amount == nil || amount.Sign() <= 0 || amount.Cmp(total) > 0 {
		v.mu.Unlock()
		return strategy.TxResult{Success: false}, nil
	}
	total.Sub(total, amount)
	v.mu.Unlock()
	return v.ok("unstake", zap.String("user", req.User.Hex()), zap.String("amount", amount.String())), nil
}

func (v *Venue) UnstakeAll(_ context.Context, user common.Address) (strategy.TxResult, error) {
	v.mu.Lock()
	v.staked[user] = new(big.Int)
	v.mu.Unlock()
	return v.ok("unstake all", zap.String("user", user.Hex())), nil
}

func (v *Venue) StakedTotal(ctx context.Context, user common.Address) (*big.Int, error) {
	if v.reader != nil {
		return v.reader.StakedAmount(ctx, user)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.balance(user)), nil
}

func (v *Venue) CreateMarketOrder(_ context.Context, params strategy.OrderParams) (strategy.OrderResult, error) {
	if params.Size == nil || params.Size.Sign() <= 0 {
		return strategy.OrderResult{Status: strategy.OrderRejected}, nil
	}
	v.mu.Lock()
	pos := v.positionOf(params.Symbol)
	switch {
	case params.Side == strategy.SideSell:
		pos.Add(pos, params.Size)
	case params.ReduceOnly && params.Size.Cmp(pos) > 0:
		v.mu.Unlock()
		return strategy.OrderResult{Status: strategy.OrderRejected}, nil
	default:
		pos.Sub(pos, params.Size)
	}
	v.mu.Unlock()

	id := uuid.NewString()
	v.logger.Info("paper order",
		zap.String("order_id", id),
		zap.String("symbol", params.Symbol),
		zap.String("side", string(params.Side)),
		zap.String("size", params.Size.String()),
		zap.Bool("reduce_only", params.ReduceOnly),
	)
	return strategy.OrderResult{
		OrderID:    id,
		OrderType:  "market",
		Status:     strategy.OrderFilled,
		FilledSize: decimal.NewFromBigInt(params.Size, 0),
	}, nil
}

func (v *Venue) ClosePosition(_ context.Context, symbol string) (strategy.OrderResult, error) {
	v.mu.Lock()
	size := new(big.Int).Set(v.positionOf(symbol))
	v.position[symbol] = new(big.Int)
	v.mu.Unlock()

	id := uuid.NewString()
	v.logger.Info("paper close position", zap.String("order_id", id), zap.String("symbol", symbol), zap.String("size", size.String()))
	return strategy.OrderResult{
		OrderID:    id,
		OrderType:  "market",
		Status:     strategy.OrderFilled,
		FilledSize: decimal.NewFromBigInt(size, 0),
	}, nil
}

func (v *Venue) PositionValue(_ context.Context, symbol string) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.positionOf(symbol)), nil
}

func (v *Venue) CompleteWithdrawal(_ context.Context, user common.Address, amount *big.Int, withdrawalID string) (strategy.TxResult, error) {
	return v.ok("complete withdrawal",
		zap.String("user", user.Hex()),
		zap.String("amount", amount.String()),
		zap.String("withdrawal_id", withdrawalID),
	), nil
}

func (v *Venue) balance(user common.Address) *big.Int {
	b, ok := v.staked[user]
	if !ok {
		b = new(big.Int)
		v.staked[user] = b
	}
	return b
}

func (v *Venue) positionOf(symbol string) *big.Int {
	p, ok := v.position[symbol]
	if !ok {
		p = new(big.Int)
		v.position[symbol] = p
	}
	return p
}
