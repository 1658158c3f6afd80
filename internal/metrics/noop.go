package metrics

import (
	"time"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
)

// NoopRecorder discards all metrics.
type NoopRecorder struct{}

var (
	_ Recorder    = NoopRecorder{}
	_ JobObserver = NoopRecorder{}
)

func (NoopRecorder) WriteContractEvent(model.ContractEvent)   {}
func (NoopRecorder) WriteStakingInfo(StakingInfo)             {}
func (NoopRecorder) WriteUnstakingInfo(UnstakingInfo)         {}
func (NoopRecorder) WriteSwapInfo(SwapInfo)                   {}
func (NoopRecorder) WriteWithdrawalMetrics(WithdrawalInfo)    {}
func (NoopRecorder) ObserveJob(string, string, time.Duration) {}
