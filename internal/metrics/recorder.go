package metrics

import (
	"math/big"
	"time"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
)

// WithdrawalStatus is the terminal state of a withdrawal pipeline run.
type WithdrawalStatus string

const (
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalFailed    WithdrawalStatus = "failed"
)

// StakingInfo describes a completed stake.
type StakingInfo struct {
	User          string
	Amount        *big.Int
	TxHash        string
	CorrelationID string
}

// UnstakingInfo describes a completed unstake.
type UnstakingInfo struct {
	User          string
	Mode          string
	Percent       string
	Amount        *big.Int
	TxHash        string
	CorrelationID string
}

// SwapDirection labels swaps into and out of the staking asset.
type SwapDirection string

const (
	SwapIn  SwapDirection = "in"
	SwapOut SwapDirection = "out"
)

// SwapInfo describes a completed swap.
type SwapInfo struct {
	User          string
	Direction     SwapDirection
	Amount        *big.Int
	TxHash        string
	CorrelationID string
}

// WithdrawalInfo describes the outcome of a withdrawal run.
type WithdrawalInfo struct {
	User         string
	MMMAmount    *big.Int
	WithdrawalID string
	Status       WithdrawalStatus
	Error        string
	Duration     time.Duration
}

// Recorder receives strategy metrics.
// All methods are fire-and-forget and must not block the caller.
type Recorder interface {
	WriteContractEvent(event model.ContractEvent)
	WriteStakingInfo(info StakingInfo)
	WriteUnstakingInfo(info UnstakingInfo)
	WriteSwapInfo(info SwapInfo)
	WriteWithdrawalMetrics(info WithdrawalInfo)
}

// JobObserver receives queue job outcomes.
type JobObserver interface {
	ObserveJob(event string, outcome string, duration time.Duration)
}
