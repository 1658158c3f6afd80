package strategy

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/storage"
)

// RunContext is the input of one pipeline run.
type RunContext struct {
	User          common.Address
	Amount        *big.Int
	CorrelationID string
}

func (rc RunContext) withAmount(amount *big.Int) RunContext {
	rc.Amount = amount
	return rc
}

// StepResult is the outcome of a successful step.
type StepResult struct {
	Success    bool              `json:"success"`
	ExternalID string            `json:"external_id,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// Step wraps one external collaborator call.
type Step interface {
	Name() string
	Execute(ctx context.Context, rc RunContext) (StepResult, error)
}

// IdempotencyKey identifies one step of one pipeline run.
func IdempotencyKey(correlationID, step string) string {
	return correlationID + ":" + step
}

type stepRunner struct {
	journal    Journal
	operations storage.OperationLog
	logger     *zap.Logger
}

// run executes a step at most once per idempotency key. A completed entry
// short-circuits to the stored result; a started entry without outcome fails.
func (r stepRunner) run(ctx context.Context, step Step, rc RunContext) (StepResult, error) {
	name := step.Name()
	key := IdempotencyKey(rc.CorrelationID, name)
	logger := r.logger.With(zap.String("step", name), zap.String("correlation_id", rc.CorrelationID))

	entry, acquired, err := r.journal.Begin(ctx, key)
	if err != nil {
		return StepResult{}, &StepError{Step: name, Cause: err}
	}
	if !acquired {
		if entry.Status == JournalCompleted {
			logger.Info("step already completed, skipping", zap.String("external_id", entry.Result.ExternalID))
			return entry.Result, nil
		}
		return StepResult{}, &StepError{Step: name, Cause: ErrAmbiguousStep}
	}

	result, err := step.Execute(ctx, rc)
	if err == nil && !result.Success {
		err = errors.New("collaborator reported failure")
	}
	if err != nil {
		if ferr := r.journal.Fail(ctx, key, err); ferr != nil {
			logger.Error("journal fail", zap.Error(ferr))
		}
		logger.Warn("step failed", zap.Error(err))
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			return StepResult{}, err
		}
		return StepResult{}, &StepError{Step: name, Cause: err}
	}

	if cerr := r.complete(ctx, key, result); cerr != nil {
		// The entry stays started and redeliveries will report the step as
		// ambiguous until it is marked completed by hand.
		logger.Error("journal complete failed, step succeeded",
			zap.String("idempotency_key", key),
			zap.String("external_id", result.ExternalID),
			zap.Error(cerr),
		)
	}
	r.record(ctx, name, rc, result, logger)

	logger.Info("step completed", zap.String("external_id", result.ExternalID))
	return result, nil
}

// complete stores the outcome, retrying once.
func (r stepRunner) complete(ctx context.Context, key string, result StepResult) error {
	err := r.journal.Complete(ctx, key, result)
	if err == nil {
		return nil
	}
	r.logger.Warn("journal complete failed, retrying", zap.String("idempotency_key", key), zap.Error(err))
	return r.journal.Complete(ctx, key, result)
}

func (r stepRunner) record(ctx context.Context, name string, rc RunContext, result StepResult, logger *zap.Logger) {
	if r.operations == nil {
		return
	}
	payload := map[string]any{
		"correlation_id": rc.CorrelationID,
		"user":           rc.User.Hex(),
		"external_id":    result.ExternalID,
	}
	if rc.Amount != nil {
		payload["amount"] = rc.Amount.String()
	}
	for k, v := range result.Details {
		payload[k] = v
	}
	if err := r.operations.RecordOperation(ctx, name, payload); err != nil {
		logger.Error("record operation", zap.Error(err))
	}
}
