package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/alert"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/metrics"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
)

// Compensator records a failed withdrawal: failure metric, admin alert and
// recovery task. Completed legs are not reversed.
type Compensator struct {
	metrics  metrics.Recorder
	notifier alert.Notifier
	recovery RecoveryTaskStore
	logger   *zap.Logger
}

// Compensate never returns an error; its own failures are logged as CompensationError.
func (c *Compensator) Compensate(ctx context.Context, rc RunContext, cause error, elapsed time.Duration) {
	ctx = context.WithoutCancel(ctx)
	logger := c.logger.With(zap.String("user", rc.User.Hex()), zap.String("withdrawal_id", rc.CorrelationID))
	logger.Error("withdrawal pipeline failed", zap.Error(cause))

	amount := "0"
	if rc.Amount != nil {
		amount = rc.Amount.String()
	}

	c.metrics.WriteWithdrawalMetrics(metrics.WithdrawalInfo{
		User:         rc.User.Hex(),
		MMMAmount:    rc.Amount,
		WithdrawalID: rc.CorrelationID,
		Status:       metrics.WithdrawalFailed,
		Error:        cause.Error(),
		Duration:     elapsed,
	})

	if c.notifier != nil {
		err := c.notifier.Notify(ctx, alert.Alert{
			Severity: alert.SeverityCritical,
			Title:    "Withdrawal pipeline failed",
			Message:  cause.Error(),
			Fields: map[string]string{
				"user":          rc.User.Hex(),
				"amount":        amount,
				"withdrawal_id": rc.CorrelationID,
			},
		})
		if err != nil {
			logger.Error("compensation failed", zap.Error(&CompensationError{Action: "alert", Cause: err}))
		}
	}

	if c.recovery == nil {
		logger.Warn("no recovery task store configured")
		return
	}
	task := model.RecoveryTask{
		ID:            uuid.New(),
		CorrelationID: rc.CorrelationID,
		User:          rc.User.Hex(),
		Amount:        amount,
		WithdrawalID:  rc.CorrelationID,
		Error:         cause.Error(),
		Status:        model.RecoveryOpen,
		CreatedAt:     time.Now().UTC(),
	}
	if err := c.recovery.CreateRecoveryTask(ctx, task); err != nil {
		logger.Error("compensation failed", zap.Error(&CompensationError{Action: "recovery_task", Cause: err}))
		return
	}
	logger.Info("recovery task created", zap.String("task_id", task.ID.String()))
}
