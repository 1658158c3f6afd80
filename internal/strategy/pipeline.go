package strategy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/alert"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/metrics"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/storage"
)

// Dependencies wires collaborators and infrastructure into the pipelines.
// Exchange, Operations and Locker are optional.
type Dependencies struct {
	Bridger   Bridger
	Swapper   Swapper
	Staker    Staker
	Exchange  Exchange
	Finalizer Finalizer

	HedgeSymbol string

	Journal    Journal
	Metrics    metrics.Recorder
	Operations storage.OperationLog
	Notifier   alert.Notifier
	Recovery   RecoveryTaskStore
	Locker     UserLocker
	Logger     *zap.Logger
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NoopRecorder{}
	}
	if d.Journal == nil {
		d.Journal = NewMemoryJournal()
	}
	if d.Notifier == nil {
		d.Notifier = alert.NewLogNotifier(d.Logger)
	}
	if d.Recovery == nil && d.Operations != nil {
		d.Recovery = storage.RecoveryLog{Log: d.Operations}
	}
	return d
}

func (d Dependencies) runner() stepRunner {
	return stepRunner{journal: d.Journal, operations: d.Operations, logger: d.Logger}
}

func (d Dependencies) validateHedge() error {
	if d.Exchange != nil && d.HedgeSymbol == "" {
		return fmt.Errorf("hedge symbol is required when an exchange is configured")
	}
	return nil
}

func (d Dependencies) recordOutcome(ctx context.Context, kind string, rc RunContext, extra map[string]any) {
	if d.Operations == nil {
		return
	}
	payload := map[string]any{
		"correlation_id": rc.CorrelationID,
		"user":           rc.User.Hex(),
	}
	if rc.Amount != nil {
		payload["amount"] = rc.Amount.String()
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := d.Operations.RecordOperation(ctx, kind, payload); err != nil {
		d.Logger.Error("record operation", zap.String("kind", kind), zap.Error(err))
	}
}
