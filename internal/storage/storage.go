package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
)

// OperationLog is the append-only journal of strategy operations.
type OperationLog interface {
	RecordOperation(ctx context.Context, kind string, payload map[string]any) error
}

// NewOperation builds a journal entry and lifts the correlation id out of the payload.
func NewOperation(kind string, payload map[string]any, at time.Time) model.Operation {
	op := model.Operation{
		Kind:       kind,
		Payload:    payload,
		RecordedAt: at.UTC(),
	}
	if id, ok := payload["correlation_id"].(string); ok {
		op.CorrelationID = id
	}
	return op
}

// RecoveryLog stores recovery tasks as journal entries.
type RecoveryLog struct {
	Log OperationLog
}

// CreateRecoveryTask appends a recovery_task operation.
func (r RecoveryLog) CreateRecoveryTask(ctx context.Context, task model.RecoveryTask) error {
	if r.Log == nil {
		return fmt.Errorf("operation log is nil")
	}
	return r.Log.RecordOperation(ctx, "recovery_task", map[string]any{
		"id":             task.ID.String(),
		"correlation_id": task.CorrelationID,
		"user":           task.User,
		"amount":         task.Amount,
		"withdrawal_id":  task.WithdrawalID,
		"error":          task.Error,
		"status":         string(task.Status),
	})
}
